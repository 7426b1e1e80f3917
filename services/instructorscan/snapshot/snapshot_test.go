package snapshot

import (
	"testing"
	"time"

	"instructorscan-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestNewDayRetention(t *testing.T) {
	future := timezone.Midnight(timezone.Now()).AddDate(0, 0, 5)
	d := NewDay(future, nil)
	require.Equal(t, time.Hour*24*5, d.ExpiresAfter)
	require.True(t, d.Date.Equal(timezone.Midnight(future)))
	require.False(t, d.CreatedAt.IsZero())

	past := timezone.Midnight(timezone.Now()).AddDate(0, 0, -3)
	d = NewDay(past, nil)
	require.Equal(t, time.Duration(0), d.ExpiresAfter)
}

func TestDayKey(t *testing.T) {
	d := NewDay(date(2024, 5, 1), nil)
	require.Equal(t, "20240501", d.Key())
}

func TestSetAccounting(t *testing.T) {
	set := Set{
		day(date(2024, 5, 1),
			InstructorAvailability{Instructor: "AB", Slots: []Slot{
				{Time: "09:00", Status: StatusFree},
				{Time: "09:30", Status: StatusBooked},
			}},
			InstructorAvailability{Instructor: "CD", Slots: []Slot{
				{Time: "09:00", Status: StatusFree},
			}},
		),
		day(date(2024, 5, 2),
			InstructorAvailability{Instructor: "AB", Slots: []Slot{
				{Time: "10:00", Status: StatusFree},
			}},
		),
	}

	require.Equal(t, []string{"AB", "CD"}, set.DistinctInstructors())
	require.Equal(t, 2, set.FreeSlotCount("AB"))
	require.Equal(t, 1, set.FreeSlotCount("CD"))
	require.Equal(t, 0, set.FreeSlotCount("ZZ"))
	require.Equal(t, 3, set.TotalFreeSlots())
}
