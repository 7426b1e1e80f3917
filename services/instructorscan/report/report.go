// Package report renders the static slot-summary page published after
// every scan.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"instructorscan-backend/lib/timezone"
	"instructorscan-backend/services/instructorscan/snapshot"
)

// FileName is where the summary is published; the notification footer
// links to it.
const FileName = "instructors-and-slots.html"

// ArtifactStore uploads rendered artifacts somewhere public.
type ArtifactStore interface {
	Save(ctx context.Context, name, contentType string, contents []byte) error
}

// Publish renders the slot summary for the set and uploads it.
func Publish(ctx context.Context, artifacts ArtifactStore, set snapshot.Set) error {
	page := Render(set, timezone.Now())
	err := artifacts.Save(ctx, FileName, "text/html", []byte(page))
	if err != nil {
		return fmt.Errorf("upload slot summary: %w", err)
	}
	return nil
}

// Render builds the summary page: one row per day that has at least one
// free slot, one column per time of day, instructor initials in the
// cells, and a grand total underneath.
func Render(set snapshot.Set, now time.Time) string {
	times := distinctSlotTimes(set)
	timeIndex := map[string]int{}
	for i, ts := range times {
		timeIndex[ts] = i
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n")
	page.WriteString("<html>\n<head>\n<style>\n")
	page.WriteString("body { font-family: Arial, sans-serif; padding: 1rem; } table { font-size: 0.8rem; width: 100%; margin: 1.4rem auto; }\n")
	page.WriteString("table,td,th { border-collapse: collapse; } th,td { padding: 0.5rem; border: solid 1px; } td { text-align: center; }\n")
	page.WriteString(".bold { font-weight: bold; }\n")
	page.WriteString("</style>\n</head>\n<body>\n")
	page.WriteString("<h1>FI Available Slots</h1>\n")
	fmt.Fprintf(&page, "<div><span class='bold'>Generated: </span><span>%s</span></div>\n", now.Format("02-Jan-2006 15:04:05"))
	page.WriteString("<br><br>\n")

	page.WriteString("<table>\n<thead>\n<tr>\n<th>Date</th>")
	for _, ts := range times {
		fmt.Fprintf(&page, "<th>%s</th>", ts)
	}
	page.WriteString("\n</tr>\n</thead>\n<tbody>\n")

	for _, day := range set {
		hasFree := false
		for _, ia := range day.Instructors {
			if ia.HasFreeSlot() {
				hasFree = true
				break
			}
		}
		if !hasFree {
			continue
		}

		page.WriteString("<tr>")
		fmt.Fprintf(&page, "<td>%s<br>%s</td>", day.Date.Format("Mon"), day.Date.Format("02-Jan"))

		cells := make([]string, len(times))
		for _, ia := range day.Instructors {
			for _, slot := range ia.Slots {
				if slot.Status != snapshot.StatusFree {
					continue
				}
				idx := timeIndex[slot.Time]
				if cells[idx] == "" {
					cells[idx] = ia.Instructor
				} else {
					cells[idx] += "<br>" + ia.Instructor
				}
			}
		}
		for _, cell := range cells {
			fmt.Fprintf(&page, "<td>%s</td>", cell)
		}
		page.WriteString("</tr>\n")
	}

	page.WriteString("</tbody>\n</table>\n<br>\n")
	fmt.Fprintf(&page, "<div><span class='bold'>Total free slots: </span><span>%d</span></div>\n", set.TotalFreeSlots())
	page.WriteString("</body>\n</html>\n")

	return page.String()
}

// distinctSlotTimes lists every time-of-day label in the set, in first
// appearance order.
func distinctSlotTimes(set snapshot.Set) []string {
	seen := map[string]bool{}
	var times []string
	for _, day := range set {
		for _, ia := range day.Instructors {
			for _, slot := range ia.Slots {
				if seen[slot.Time] {
					continue
				}
				seen[slot.Time] = true
				times = append(times, slot.Time)
			}
		}
	}
	return times
}
