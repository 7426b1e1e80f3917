package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"instructorscan-backend/lib/timezone"
	"instructorscan-backend/services/instructorscan/snapshot"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/codes"
)

// Instructor is one configured instructor: the short code notices are
// keyed by and the display name the roster endpoint knows them under.
type Instructor struct {
	Initials string `json:"initials"`
	Name     string `json:"name"`
}

type FetcherOptions struct {
	Instructors []Instructor
	// form-encoded POST taking a start_date field
	RosterEndpoint string
	// URL template containing [start-date] and [end-date] placeholders
	BookingsEndpoint string
	// pause between per-date roster requests
	RequestDelay time.Duration
	// venue operating hours, "15:04" labels; slots run from opening
	// (inclusive) to closing (exclusive) at 30 minute granularity
	OpeningTime string
	ClosingTime string
}

// Fetcher produces availability snapshots for a date range using one
// authenticated client. It guarantees correctness only for the single
// range it is given; splitting a horizon into polite chunks is the
// caller's job.
type Fetcher struct {
	client *Client
	opts   FetcherOptions
}

func NewFetcher(client *Client, opts FetcherOptions) Fetcher {
	return Fetcher{
		client: client,
		opts:   opts,
	}
}

type rosterEntry struct {
	Id    int64  `json:"id"`
	Title string `json:"title"`
}

type bookingEvent struct {
	// nil for walk-in bookings with no instructor attached
	ResourceId *int64 `json:"resource_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

const eventTimeLayout = "2006-01-02T15:04:05"

// FetchRange returns one day snapshot per date from start to end
// inclusive. Roster membership can change per date upstream, so the
// roster endpoint is polled once per date (paced by RequestDelay) and
// merged left to right, later dates overriding earlier ones. Bookings
// for the whole range come from a single call.
//
// Calling FetchRange twice against unchanged upstream state yields
// structurally equal sets, which is what makes diffing deterministic.
func (f Fetcher) FetchRange(ctx context.Context, start, end time.Time) (snapshot.Set, error) {
	ctx, span := tracer.Start(ctx, "fetcher:FetchRange")
	defer span.End()

	err := f.client.EnsureLogin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	start = timezone.Midnight(start)
	end = timezone.Midnight(end)

	roster := map[int64]string{}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)

		entries, err := f.fetchRoster(ctx, d)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "roster fetch failed")
			return nil, fmt.Errorf("fetch roster for %s: %w", d.Format("2006-01-02"), err)
		}
		for id, title := range entries {
			roster[id] = title
		}

		err = sleep(ctx, f.opts.RequestDelay)
		if err != nil {
			return nil, err
		}
	}

	events, err := f.fetchBookings(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bookings fetch failed")
		return nil, fmt.Errorf(
			"fetch bookings %s to %s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), err,
		)
	}

	resources := matchInstructors(f.opts.Instructors, roster)
	for _, inst := range f.opts.Instructors {
		if _, ok := resources[inst.Initials]; !ok {
			slog.WarnContext(ctx, "instructor not found in roster",
				"initials", inst.Initials, "name", inst.Name)
		}
	}

	labels := slotTimes(f.opts.OpeningTime, f.opts.ClosingTime)

	byResource := map[int64][]bookingEvent{}
	for _, ev := range events {
		if ev.ResourceId == nil {
			// walk-in bookings are not tracked
			continue
		}
		byResource[*ev.ResourceId] = append(byResource[*ev.ResourceId], ev)
	}

	set := make(snapshot.Set, 0, len(dates))
	for _, d := range dates {
		var instructors []snapshot.InstructorAvailability
		for _, inst := range f.opts.Instructors {
			resource, ok := resources[inst.Initials]
			if !ok {
				continue
			}
			slots, err := buildSlots(labels, d, byResource[resource])
			if err != nil {
				return nil, fmt.Errorf("bookings for %s: %w", inst.Initials, err)
			}
			instructors = append(instructors, snapshot.InstructorAvailability{
				Instructor: inst.Initials,
				Slots:      slots,
			})
		}
		set = append(set, snapshot.NewDay(d, instructors))
	}

	return set, nil
}

func (f Fetcher) fetchRoster(ctx context.Context, date time.Time) (map[int64]string, error) {
	body, err := f.client.PostForm(ctx, f.opts.RosterEndpoint, map[string]string{
		"start_date": timezone.FormatStamp(date),
	})
	if err != nil {
		return nil, err
	}

	var entries []rosterEntry
	err = json.Unmarshal(body, &entries)
	if err != nil {
		return nil, fmt.Errorf("parse roster response: %w", err)
	}

	out := make(map[int64]string, len(entries))
	for _, e := range entries {
		if e.Title == "" {
			continue
		}
		out[e.Id] = e.Title
	}
	return out, nil
}

func (f Fetcher) fetchBookings(ctx context.Context, start, end time.Time) ([]bookingEvent, error) {
	endpoint := f.opts.BookingsEndpoint
	endpoint = strings.ReplaceAll(endpoint, "[start-date]", url.QueryEscape(timezone.FormatStamp(start)))
	// the upstream end bound is exclusive, so ask one day past the
	// final date of the range
	endpoint = strings.ReplaceAll(endpoint, "[end-date]", url.QueryEscape(timezone.FormatStamp(end.AddDate(0, 0, 1))))

	body, err := f.client.PostEmpty(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var events []bookingEvent
	err = json.Unmarshal(body, &events)
	if err != nil {
		return nil, fmt.Errorf("parse bookings response: %w", err)
	}
	return events, nil
}

// matchInstructors links configured instructors to roster resource ids
// by display name: exact case-insensitive matches first, then the most
// similar remaining roster entry when the site renames someone slightly
// ("Jim Smith" vs "James Smith").
func matchInstructors(instructors []Instructor, roster map[int64]string) map[string]int64 {
	out := map[string]int64{}
	claimed := map[int64]bool{}

	for _, inst := range instructors {
		for id, title := range roster {
			if claimed[id] {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(inst.Name)) {
				out[inst.Initials] = id
				claimed[id] = true
				break
			}
		}
	}

	for _, inst := range instructors {
		if _, done := out[inst.Initials]; done {
			continue
		}

		var bestSimilarity float64
		var bestId int64
		for id, title := range roster {
			if claimed[id] {
				continue
			}
			similarity := matchr.JaroWinkler(strings.ToLower(title), strings.ToLower(inst.Name), false)
			if similarity > bestSimilarity {
				bestSimilarity = similarity
				bestId = id
			}
		}

		if bestSimilarity > 0.9 {
			out[inst.Initials] = bestId
			claimed[bestId] = true
		}
	}

	return out
}

// slotTimes builds the universe of time-of-day labels within operating
// hours. Labels outside them are never emitted.
func slotTimes(opening, closing string) []string {
	open, err := time.Parse("15:04", opening)
	if err != nil {
		open, _ = time.Parse("15:04", "09:00")
	}
	until, err := time.Parse("15:04", closing)
	if err != nil {
		until, _ = time.Parse("15:04", "18:00")
	}

	var labels []string
	for t := open; t.Before(until); t = t.Add(30 * time.Minute) {
		labels = append(labels, t.Format("15:04"))
	}
	return labels
}

// buildSlots folds an instructor's booking events into one slot per
// label: covered labels are booked, the rest are free.
func buildSlots(labels []string, day time.Time, events []bookingEvent) ([]snapshot.Slot, error) {
	type window struct {
		start, end time.Time
	}
	var windows []window
	for _, ev := range events {
		start, err := time.ParseInLocation(eventTimeLayout, ev.Start, timezone.Location)
		if err != nil {
			return nil, fmt.Errorf("parse event start %q: %w", ev.Start, err)
		}
		end, err := time.ParseInLocation(eventTimeLayout, ev.End, timezone.Location)
		if err != nil {
			return nil, fmt.Errorf("parse event end %q: %w", ev.End, err)
		}
		windows = append(windows, window{start, end})
	}

	slots := make([]snapshot.Slot, 0, len(labels))
	for _, label := range labels {
		t, err := time.Parse("15:04", label)
		if err != nil {
			return nil, fmt.Errorf("parse slot label %q: %w", label, err)
		}
		slotStart := time.Date(
			day.Year(), day.Month(), day.Day(),
			t.Hour(), t.Minute(), 0, 0, timezone.Location,
		)

		status := snapshot.StatusFree
		for _, w := range windows {
			if !slotStart.Before(w.start) && slotStart.Before(w.end) {
				status = snapshot.StatusBooked
				break
			}
		}
		slots = append(slots, snapshot.Slot{Time: label, Status: status})
	}

	return slots, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
