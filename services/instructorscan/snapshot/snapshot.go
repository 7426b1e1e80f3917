// Package snapshot holds the recorded availability state for a range of
// days and the diffing algorithm that turns two recordings into
// "slot became available" notices.
package snapshot

import (
	"time"

	"instructorscan-backend/lib/timezone"
)

type SlotStatus string

const (
	StatusFree        SlotStatus = "free"
	StatusBooked      SlotStatus = "booked"
	StatusUnavailable SlotStatus = "unavailable"
	StatusUnknown     SlotStatus = "unknown"
)

// Slot is the smallest schedulable unit for one instructor on one day,
// labelled by its time of day ("09:00", "09:30", ...).
type Slot struct {
	Time   string     `json:"time"`
	Status SlotStatus `json:"status"`
}

// InstructorAvailability is one instructor's slots for one day, ordered
// by time of day. Instructor is the club's short code for them,
// usually initials.
type InstructorAvailability struct {
	Instructor string `json:"instructor"`
	Slots      []Slot `json:"slots"`
}

func (ia InstructorAvailability) HasFreeSlot() bool {
	for _, s := range ia.Slots {
		if s.Status == StatusFree {
			return true
		}
	}
	return false
}

func (ia InstructorAvailability) slotAt(timeOfDay string) (Slot, bool) {
	for _, s := range ia.Slots {
		if s.Time == timeOfDay {
			return s, true
		}
	}
	return Slot{}, false
}

// Day is one calendar day's availability state. Date carries no time
// component beyond midnight in the club's timezone. ExpiresAfter is a
// retention hint: snapshots of far-future days stay useful for longer.
type Day struct {
	Date         time.Time                `json:"date"`
	Instructors  []InstructorAvailability `json:"instructors"`
	CreatedAt    time.Time                `json:"created_at"`
	ExpiresAfter time.Duration            `json:"expires_after"`
}

// NewDay stamps a day snapshot for the given date, deriving the
// retention hint from how far in the future the date is.
func NewDay(date time.Time, instructors []InstructorAvailability) Day {
	now := timezone.Now()
	date = timezone.Midnight(date)
	ttl := date.Sub(timezone.Midnight(now))
	if ttl < 0 {
		ttl = 0
	}
	return Day{
		Date:         date,
		Instructors:  instructors,
		CreatedAt:    now,
		ExpiresAfter: ttl,
	}
}

// Key is the day's identity within a set, "20060102".
func (d Day) Key() string {
	return d.Date.Format("20060102")
}

func (d Day) instructor(code string) (InstructorAvailability, bool) {
	for _, ia := range d.Instructors {
		if ia.Instructor == code {
			return ia, true
		}
	}
	return InstructorAvailability{}, false
}

// Set is an ordered collection of day snapshots covering a scan's date
// range, at most one entry per date.
type Set []Day

func (s Set) dayAt(date time.Time) (Day, bool) {
	for _, d := range s {
		if d.Date.Equal(date) {
			return d, true
		}
	}
	return Day{}, false
}

// DistinctInstructors lists every instructor code appearing anywhere in
// the set, in first-appearance order.
func (s Set) DistinctInstructors() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range s {
		for _, ia := range d.Instructors {
			if seen[ia.Instructor] {
				continue
			}
			seen[ia.Instructor] = true
			out = append(out, ia.Instructor)
		}
	}
	return out
}

// FreeSlotCount totals the free slots recorded for one instructor
// across the whole set.
func (s Set) FreeSlotCount(instructor string) int {
	count := 0
	for _, d := range s {
		for _, ia := range d.Instructors {
			if ia.Instructor != instructor {
				continue
			}
			for _, slot := range ia.Slots {
				if slot.Status == StatusFree {
					count++
				}
			}
		}
	}
	return count
}

// TotalFreeSlots totals the free slots across every instructor and day.
func (s Set) TotalFreeSlots() int {
	count := 0
	for _, d := range s {
		for _, ia := range d.Instructors {
			for _, slot := range ia.Slots {
				if slot.Status == StatusFree {
					count++
				}
			}
		}
	}
	return count
}
