package snapshot

import (
	"fmt"
	"time"
)

// Notice is a single "slot became available" fact. Notices are built
// for presentation: consumed once by the notification email, never
// persisted.
type Notice struct {
	Instructor string
	Date       time.Time
	Time       string
	Message    string
}

// MismatchError reports an attempt to compare availability records of
// two different instructors. It guards call sites that are supposed to
// match records by instructor code before comparing.
type MismatchError struct {
	Previous, Current string
}

func (e MismatchError) Error() string {
	return fmt.Sprintf(
		"previous instructor %q does not match current instructor %q",
		e.Previous, e.Current,
	)
}

// Diff reports every slot that is free in current but was not free (or
// not recorded at all) in previous. The comparison is one-directional:
// a slot regressing from free to booked produces nothing, since the
// point is alerting on new opportunities, not change tracking.
//
// Days missing from previous are treated as empty, as are instructors
// missing from a previous day, so a first run against an empty previous
// set reports every free slot.
//
// Notices come back grouped by instructor (in order of first
// appearance), then by ascending date and time of day. Diff performs no
// I/O and never mutates its inputs.
func Diff(previous, current Set) ([]Notice, error) {
	perInstructor := map[string][]Notice{}
	var order []string

	for _, curDay := range current {
		prevDay, ok := previous.dayAt(curDay.Date)
		if !ok {
			prevDay = Day{Date: curDay.Date}
		}

		for _, curInstructor := range curDay.Instructors {
			if !curInstructor.HasFreeSlot() {
				continue
			}

			prevInstructor, ok := prevDay.instructor(curInstructor.Instructor)
			if !ok {
				prevInstructor = InstructorAvailability{
					Instructor: curInstructor.Instructor,
				}
			}

			opened, err := newlyFreeSlots(prevInstructor, curInstructor)
			if err != nil {
				return nil, err
			}
			if len(opened) == 0 {
				continue
			}

			if _, seen := perInstructor[curInstructor.Instructor]; !seen {
				order = append(order, curInstructor.Instructor)
			}
			for _, slot := range opened {
				perInstructor[curInstructor.Instructor] = append(
					perInstructor[curInstructor.Instructor],
					Notice{
						Instructor: curInstructor.Instructor,
						Date:       curDay.Date,
						Time:       slot.Time,
						Message:    fmt.Sprintf("%s is available", slot.Time),
					},
				)
			}
		}
	}

	var notices []Notice
	for _, code := range order {
		notices = append(notices, perInstructor[code]...)
	}
	return notices, nil
}

// newlyFreeSlots returns current's free slots that previous either did
// not record or recorded with a different status.
func newlyFreeSlots(previous, current InstructorAvailability) ([]Slot, error) {
	if previous.Instructor != current.Instructor {
		return nil, MismatchError{
			Previous: previous.Instructor,
			Current:  current.Instructor,
		}
	}

	var opened []Slot
	for _, slot := range current.Slots {
		if slot.Status != StatusFree {
			continue
		}
		prevSlot, ok := previous.slotAt(slot.Time)
		if !ok || prevSlot.Status != StatusFree {
			opened = append(opened, slot)
		}
	}
	return opened, nil
}

// NoticeLines renders notices as the html lines the notification email
// is built from: an instructor header per group, a date header per day
// within the group, then one line per opened slot.
func NoticeLines(notices []Notice) []string {
	var lines []string

	var lastInstructor string
	var lastDate time.Time
	for _, n := range notices {
		if n.Instructor != lastInstructor {
			lines = append(lines, "", fmt.Sprintf("<b>Instructor: %s</b>", n.Instructor))
			lastInstructor = n.Instructor
			lastDate = time.Time{}
		}
		if !n.Date.Equal(lastDate) {
			lines = append(lines, "", fmt.Sprintf("<b>%s</b>", n.Date.Format("Mon 02-Jan")))
			lastDate = n.Date
		}
		lines = append(lines, n.Message)
	}

	return lines
}
