package snapshot

import (
	"testing"
	"time"

	"instructorscan-backend/lib/timezone"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, timezone.Location)
}

func day(d time.Time, instructors ...InstructorAvailability) Day {
	return Day{Date: d, Instructors: instructors}
}

func TestDiffNoChange(t *testing.T) {
	set := Set{
		day(date(2024, 5, 1),
			InstructorAvailability{Instructor: "AB", Slots: []Slot{
				{Time: "09:00", Status: StatusFree},
				{Time: "09:30", Status: StatusBooked},
			}},
		),
		day(date(2024, 5, 2),
			InstructorAvailability{Instructor: "CD", Slots: []Slot{
				{Time: "14:00", Status: StatusFree},
			}},
		),
	}

	notices, err := Diff(set, set)
	require.NoError(t, err)
	require.Empty(t, notices)
}

func TestDiffBookedBecomesFree(t *testing.T) {
	d := date(2024, 5, 1)
	previous := Set{day(d, InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "09:00", Status: StatusBooked},
	}})}
	current := Set{day(d, InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "09:00", Status: StatusFree},
	}})}

	notices, err := Diff(previous, current)
	require.NoError(t, err)

	expected := []Notice{{
		Instructor: "AB",
		Date:       d,
		Time:       "09:00",
		Message:    "09:00 is available",
	}}
	if diff := cmp.Diff(expected, notices); diff != "" {
		t.Fatalf("unexpected notices (-want +got):\n%s", diff)
	}
}

func TestDiffFreeBecomesBooked(t *testing.T) {
	d := date(2024, 5, 1)
	previous := Set{day(d, InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "09:00", Status: StatusFree},
		{Time: "09:30", Status: StatusFree},
	}})}
	current := Set{day(d, InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "09:00", Status: StatusBooked},
		{Time: "09:30", Status: StatusFree},
	}})}

	notices, err := Diff(previous, current)
	require.NoError(t, err)
	// the regression at 09:00 is not reported, and 09:30 did not change
	require.Empty(t, notices)
}

func TestDiffMissingPreviousDay(t *testing.T) {
	d := date(2024, 5, 3)
	current := Set{day(d, InstructorAvailability{Instructor: "CD", Slots: []Slot{
		{Time: "14:00", Status: StatusFree},
	}})}

	notices, err := Diff(Set{}, current)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	require.Equal(t, "CD", notices[0].Instructor)
	require.Equal(t, "14:00", notices[0].Time)
	require.True(t, notices[0].Date.Equal(d))
}

func TestDiffMissingPreviousInstructor(t *testing.T) {
	d := date(2024, 5, 3)
	previous := Set{day(d, InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "10:00", Status: StatusFree},
	}})}
	current := Set{day(d,
		InstructorAvailability{Instructor: "AB", Slots: []Slot{
			{Time: "10:00", Status: StatusFree},
		}},
		InstructorAvailability{Instructor: "EF", Slots: []Slot{
			{Time: "11:00", Status: StatusFree},
		}},
	)}

	notices, err := Diff(previous, current)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	require.Equal(t, "EF", notices[0].Instructor)
}

func TestDiffGroupsByInstructorThenDate(t *testing.T) {
	d1 := date(2024, 5, 1)
	d2 := date(2024, 5, 2)
	current := Set{
		day(d1,
			InstructorAvailability{Instructor: "AB", Slots: []Slot{
				{Time: "09:00", Status: StatusFree},
				{Time: "09:30", Status: StatusFree},
			}},
			InstructorAvailability{Instructor: "CD", Slots: []Slot{
				{Time: "15:00", Status: StatusFree},
			}},
		),
		day(d2,
			InstructorAvailability{Instructor: "AB", Slots: []Slot{
				{Time: "10:00", Status: StatusFree},
			}},
		),
	}

	notices, err := Diff(Set{}, current)
	require.NoError(t, err)

	var got [][3]string
	for _, n := range notices {
		got = append(got, [3]string{n.Instructor, n.Date.Format("20060102"), n.Time})
	}
	expected := [][3]string{
		{"AB", "20240501", "09:00"},
		{"AB", "20240501", "09:30"},
		{"AB", "20240502", "10:00"},
		{"CD", "20240501", "15:00"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("unexpected grouping (-want +got):\n%s", diff)
	}
}

func TestDiffDeterministic(t *testing.T) {
	previous := Set{day(date(2024, 5, 1), InstructorAvailability{Instructor: "AB", Slots: []Slot{
		{Time: "09:00", Status: StatusBooked},
	}})}
	current := Set{day(date(2024, 5, 1),
		InstructorAvailability{Instructor: "AB", Slots: []Slot{
			{Time: "09:00", Status: StatusFree},
		}},
		InstructorAvailability{Instructor: "CD", Slots: []Slot{
			{Time: "09:00", Status: StatusFree},
		}},
	)}

	first, err := Diff(previous, current)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Diff(previous, current)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("diff output not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestNewlyFreeSlotsMismatch(t *testing.T) {
	_, err := newlyFreeSlots(
		InstructorAvailability{Instructor: "AB"},
		InstructorAvailability{Instructor: "CD", Slots: []Slot{{Time: "09:00", Status: StatusFree}}},
	)
	var mismatch MismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "AB", mismatch.Previous)
	require.Equal(t, "CD", mismatch.Current)
}

func TestNoticeLines(t *testing.T) {
	d1 := date(2024, 5, 1)
	d2 := date(2024, 5, 2)
	notices := []Notice{
		{Instructor: "AB", Date: d1, Time: "09:00", Message: "09:00 is available"},
		{Instructor: "AB", Date: d2, Time: "10:00", Message: "10:00 is available"},
		{Instructor: "CD", Date: d1, Time: "15:00", Message: "15:00 is available"},
	}

	lines := NoticeLines(notices)
	expected := []string{
		"",
		"<b>Instructor: AB</b>",
		"",
		"<b>Wed 01-May</b>",
		"09:00 is available",
		"",
		"<b>Thu 02-May</b>",
		"10:00 is available",
		"",
		"<b>Instructor: CD</b>",
		"",
		"<b>Wed 01-May</b>",
		"15:00 is available",
	}
	if diff := cmp.Diff(expected, lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
}
