// Package store persists day snapshots between scans. Each row carries
// an absolute expiry derived from the snapshot's retention hint, so
// already-passed and stale records age out on their own; sqlite has no
// server-side TTL, so expired rows are purged on retrieve.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"instructorscan-backend/lib/timezone"
	"instructorscan-backend/services/instructorscan/snapshot"
	"instructorscan-backend/services/instructorscan/store/db"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens (creating if needed) the snapshot database at the given
// path and applies the schema.
func Open(file string) (*sql.DB, error) {
	if file == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}

	_, statErr := os.Stat(file)
	if os.IsNotExist(statErr) {
		f, err := os.Create(file)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	database, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	_, err = database.Exec(db.Schema)
	if err != nil {
		return nil, err
	}

	return database, nil
}

// Retrieve returns the previously stored snapshot set in ascending date
// order, purging expired rows first. An empty database yields an empty
// set, which is what a first run diffs against.
func (s Store) Retrieve(ctx context.Context) (snapshot.Set, error) {
	now := timezone.Now().Unix()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM day_snapshots WHERE expires_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("purge expired snapshots: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, created_at, expires_at, instructors
		FROM day_snapshots
		ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var set snapshot.Set
	for rows.Next() {
		var date, createdAt, expiresAt int64
		var instructorsJson string
		err = rows.Scan(&date, &createdAt, &expiresAt, &instructorsJson)
		if err != nil {
			return nil, err
		}

		var instructors []snapshot.InstructorAvailability
		err = json.Unmarshal([]byte(instructorsJson), &instructors)
		if err != nil {
			return nil, fmt.Errorf("unmarshal stored snapshot: %w", err)
		}

		created := time.Unix(createdAt, 0).In(timezone.Location)
		set = append(set, snapshot.Day{
			Date:         time.Unix(date, 0).In(timezone.Location),
			Instructors:  instructors,
			CreatedAt:    created,
			ExpiresAfter: time.Unix(expiresAt, 0).Sub(created),
		})
	}
	return set, rows.Err()
}

// Store upserts every day in the set, keyed by date.
func (s Store) Store(ctx context.Context, set snapshot.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range set {
		instructorsJson, err := json.Marshal(d.Instructors)
		if err != nil {
			return fmt.Errorf("marshal snapshot for %s: %w", d.Key(), err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO day_snapshots (id, date, created_at, expires_at, instructors)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				date = excluded.date,
				created_at = excluded.created_at,
				expires_at = excluded.expires_at,
				instructors = excluded.instructors`,
			d.Key(),
			d.Date.Unix(),
			d.CreatedAt.Unix(),
			d.CreatedAt.Add(d.ExpiresAfter).Unix(),
			string(instructorsJson),
		)
		if err != nil {
			return fmt.Errorf("store snapshot for %s: %w", d.Key(), err)
		}
	}

	return tx.Commit()
}
