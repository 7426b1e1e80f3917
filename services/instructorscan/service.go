// Package instructorscan drives one full scan cycle: fetch the horizon
// in polite chunks, diff against the previous snapshot, persist,
// publish the summary page and decide whether the changes are worth an
// email.
package instructorscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"instructorscan-backend/lib/timezone"
	"instructorscan-backend/services/instructorscan/report"
	"instructorscan-backend/services/instructorscan/scraper"
	"instructorscan-backend/services/instructorscan/snapshot"

	"go.opentelemetry.io/otel/codes"
)

const noticeSubject = "FI Booking Scan Results"
const statusSubject = "Instructor Scan Status"

type Fetcher interface {
	FetchRange(ctx context.Context, start, end time.Time) (snapshot.Set, error)
}

type SnapshotStore interface {
	Retrieve(ctx context.Context) (snapshot.Set, error)
	Store(ctx context.Context, set snapshot.Set) error
}

type Notifier interface {
	SendHtml(ctx context.Context, subject string, lines []string) error
}

type Options struct {
	Instructors []scraper.Instructor
	// how many days ahead to scan, starting tomorrow
	HorizonDays int
	// maximum days per upstream request
	ChunkDays int
	// pause between chunk fetches
	ChunkDelay time.Duration
	// linked in email footers
	PublicReportUrl string
}

type Service struct {
	fetcher   Fetcher
	store     SnapshotStore
	artifacts report.ArtifactStore
	notifier  Notifier
	opts      Options
}

func NewService(fetcher Fetcher, store SnapshotStore, artifacts report.ArtifactStore, notifier Notifier, opts Options) Service {
	return Service{
		fetcher:   fetcher,
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		opts:      opts,
	}
}

// Scan runs one full cycle. Individual chunk failures are logged and
// skipped; a rejected login or a cancelled context aborts the whole
// scan, and nothing is persisted in that case.
func (s Service) Scan(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "service:Scan")
	defer span.End()

	started := timezone.Now()
	slog.InfoContext(ctx, "starting scan",
		"instructors", len(s.opts.Instructors),
		"horizon_days", s.opts.HorizonDays)

	previous, err := s.store.Retrieve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// a broken store should not stop the scan itself; diffing
		// against empty means a noisier email at worst
		slog.ErrorContext(ctx, "failed to retrieve previous snapshots", "err", err)
		previous = nil
	}

	current, err := s.fetchHorizon(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan aborted")
		return err
	}

	notices, err := snapshot.Diff(previous, current)
	if err != nil {
		// a mismatch here is a programming error, not an upstream one
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff failed")
		return err
	}

	err = s.store.Store(ctx, current)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist snapshots", "err", err)
	}
	err = report.Publish(ctx, s.artifacts, current)
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish slot summary", "err", err)
	}

	s.maybeNotify(ctx, notices)

	slog.InfoContext(ctx, "scan completed", "elapsed", timezone.Now().Sub(started).Round(time.Second))
	return nil
}

// fetchHorizon fetches tomorrow through tomorrow+HorizonDays-1 in
// chunks of at most ChunkDays, sequentially and with a pause between
// chunks regardless of outcome, because the upstream rate-limits. One
// bad chunk does not abort the scan.
func (s Service) fetchHorizon(ctx context.Context) (snapshot.Set, error) {
	tomorrow := timezone.Midnight(timezone.Now()).AddDate(0, 0, 1)

	var current snapshot.Set
	for _, chunk := range chunkRanges(tomorrow, s.opts.HorizonDays, s.opts.ChunkDays) {
		slog.InfoContext(ctx, "fetching bookings",
			"start", chunk.start.Format("2006-01-02"),
			"end", chunk.end.Format("2006-01-02"))

		days, err := s.fetcher.FetchRange(ctx, chunk.start, chunk.end)
		switch {
		case err == nil:
			current = append(current, days...)
		case errors.Is(err, scraper.ErrLoginFailed):
			return nil, err
		case ctx.Err() != nil:
			// partially fetched data is discarded, never persisted
			return nil, ctx.Err()
		default:
			slog.ErrorContext(ctx, "failed to fetch chunk",
				"start", chunk.start.Format("2006-01-02"),
				"end", chunk.end.Format("2006-01-02"),
				"err", err)
		}

		err = sleep(ctx, s.opts.ChunkDelay)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// maybeNotify emails the notices only when their volume clears twice
// the configured instructor count. The threshold is a noise filter:
// trivial scans should not page anyone.
func (s Service) maybeNotify(ctx context.Context, notices []snapshot.Notice) {
	threshold := 2 * len(s.opts.Instructors)
	if len(notices) <= threshold {
		slog.InfoContext(ctx, "not sending an email",
			"notices", len(notices), "threshold", threshold)
		return
	}

	slog.InfoContext(ctx, "new availability found, sending an email", "notices", len(notices))

	lines := snapshot.NoticeLines(notices)
	lines = append(lines, "", fmt.Sprintf("Slot summary: %s", s.opts.PublicReportUrl))

	err := s.notifier.SendHtml(ctx, noticeSubject, lines)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send notification", "err", err)
	}
}

type dateRange struct {
	start, end time.Time
}

// chunkRanges splits `days` consecutive dates beginning at start into
// inclusive ranges of at most chunkSize days; the last one may be
// shorter.
func chunkRanges(start time.Time, days, chunkSize int) []dateRange {
	if days <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = days
	}

	var ranges []dateRange
	for offset := 0; offset < days; offset += chunkSize {
		size := chunkSize
		if offset+size > days {
			size = days - offset
		}
		ranges = append(ranges, dateRange{
			start: start.AddDate(0, 0, offset),
			end:   start.AddDate(0, 0, offset+size-1),
		})
	}
	return ranges
}

// InstructorStatus is one instructor's free-slot count in the stored
// snapshot.
type InstructorStatus struct {
	Instructor string
	FreeSlots  int
}

// Status summarizes what the stored snapshot is currently tracking.
func (s Service) Status(ctx context.Context) ([]InstructorStatus, error) {
	set, err := s.store.Retrieve(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []InstructorStatus
	for _, code := range set.DistinctInstructors() {
		statuses = append(statuses, InstructorStatus{
			Instructor: code,
			FreeSlots:  set.FreeSlotCount(code),
		})
	}
	return statuses, nil
}

// SendStatusEmail delivers the daily tracking summary.
func (s Service) SendStatusEmail(ctx context.Context) error {
	statuses, err := s.Status(ctx)

	var lines []string
	if err != nil {
		slog.ErrorContext(ctx, "failed to retrieve snapshots for status email", "err", err)
		lines = append(lines, "Unable to retrieve previous calendar days.")
	} else {
		lines = append(lines, "Currently tracking the following instructors/slots:", "")
		for _, st := range statuses {
			lines = append(lines, fmt.Sprintf("    %s: %d slots", st.Instructor, st.FreeSlots))
		}
	}
	lines = append(lines, "", fmt.Sprintf("Slot summary: %s", s.opts.PublicReportUrl))

	return s.notifier.SendHtml(ctx, statusSubject, lines)
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
