// Package sqlite provides the SQLite-backed fact store. Timestamps are
// stored exactly as parsed (unix seconds); the non-overlap invariant is
// enforced on minute-clipped intervals, matching the comparison semantics
// of the reconciliation engine.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/facts"
	"github.com/tallyhq/tally/pkg/store"
)

// Schema creates the facts table and its start-time index.
const Schema = `
CREATE TABLE IF NOT EXISTS facts (
	id          TEXT PRIMARY KEY,
	activity    TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	start_time  INTEGER NOT NULL,
	end_time    INTEGER NOT NULL,
	CHECK (end_time > start_time)
);

CREATE INDEX IF NOT EXISTS idx_facts_start ON facts(start_time);
`

// factStore implements store.Store on a SQLite database.
type factStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// New opens (creating if necessary) a SQLite fact store at the given path.
func New(path string) (store.Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapStore("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapStore("sqlite", "open", err)
	}

	// SQLite supports a single concurrent writer. One open connection
	// serialises writes and avoids SQLITE_BUSY under load; WAL mode keeps
	// readers from blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.WrapStore("sqlite", "open", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.WrapStore("sqlite", "open", err)
	}

	return &factStore{db: db}, nil
}

// Fetch returns stored facts whose clipped intervals intersect [from, to],
// sorted ascending by start time.
func (s *factStore) Fetch(ctx context.Context, from, to utc.Time) ([]*facts.Fact, error) {
	if s.closed.Load() {
		return nil, errors.WrapStore("sqlite", "fetch", errors.ErrStoreClosed)
	}

	lo := facts.Clip(from).Unix()
	hi := facts.Clip(to).Unix()

	// Clip column values to the minute in SQL so the window test matches
	// the engine's comparison semantics.
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity, category, description, tags, start_time, end_time
		FROM facts
		WHERE (end_time - (end_time % 60)) > ?
		  AND (start_time - (start_time % 60)) <= ?
		ORDER BY start_time ASC`,
		lo, hi)
	if err != nil {
		return nil, errors.WrapStore("sqlite", "fetch", err)
	}
	defer rows.Close()

	var out []*facts.Fact
	for rows.Next() {
		var (
			activity, category, description, tags string
			startSec, endSec                      int64
		)
		if err := rows.Scan(&activity, &category, &description, &tags, &startSec, &endSec); err != nil {
			return nil, errors.WrapStore("sqlite", "fetch", err)
		}
		end := utc.New(time.Unix(endSec, 0).UTC())
		out = append(out, &facts.Fact{
			Activity:    activity,
			Category:    category,
			Description: description,
			Tags:        splitTags(tags),
			Start:       utc.New(time.Unix(startSec, 0).UTC()),
			End:         &end,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore("sqlite", "fetch", err)
	}
	return out, nil
}

// Persist inserts a fact, refusing intervals that clash with a stored row.
// The overlap re-check is the store's own invariant: the engine prevents
// collisions with facts that existed when the batch started, but not
// between two facts accepted within the same batch.
func (s *factStore) Persist(ctx context.Context, f *facts.Fact) error {
	if s.closed.Load() {
		return errors.WrapStore("sqlite", "persist", errors.ErrStoreClosed)
	}
	if f == nil || f.End == nil {
		return errors.NewValidationError("end", nil, "fact must have an end time")
	}

	startClip := f.ClippedStart().Unix()
	endClip := f.ClippedEnd().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStore("sqlite", "persist", err)
	}
	defer tx.Rollback()

	var clashes int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM facts
		WHERE (start_time - (start_time % 60)) < ?
		  AND (end_time - (end_time % 60)) > ?`,
		endClip, startClip).Scan(&clashes)
	if err != nil {
		return errors.WrapStore("sqlite", "persist", err)
	}
	if clashes > 0 {
		return errors.WrapStore("sqlite", "persist", errors.ErrOverlapExists)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (id, activity, category, description, tags, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		f.Activity,
		f.Category,
		f.Description,
		strings.Join(f.Tags, ","),
		f.Start.Unix(),
		f.End.Unix(),
	)
	if err != nil {
		return errors.WrapStore("sqlite", "persist", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStore("sqlite", "persist", err)
	}
	return nil
}

// Close closes the underlying database. Further operations fail with
// ErrStoreClosed; closing twice is a no-op.
func (s *factStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.WrapStore("sqlite", "close", err)
	}
	return nil
}

// splitTags undoes the comma join used for the tags column. Tags are
// comma-split at parse time and can never contain commas themselves.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
