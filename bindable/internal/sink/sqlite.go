package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/dbopen"
)

// Schema creates the event log tables.
const Schema = `
CREATE TABLE IF NOT EXISTS bind_events (
	id         TEXT PRIMARY KEY,
	binder     TEXT NOT NULL,
	selector   TEXT NOT NULL,
	page_url   TEXT DEFAULT '',
	element    TEXT NOT NULL,
	html       TEXT DEFAULT '',
	markdown   TEXT DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bind_events_binder ON bind_events(binder, created_at);

CREATE TABLE IF NOT EXISTS scan_events (
	id          TEXT PRIMARY KEY,
	binder      TEXT NOT NULL,
	passes      INTEGER NOT NULL,
	matched     INTEGER NOT NULL,
	bound       INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	coalesced   INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL,
	failures    TEXT DEFAULT '[]',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_events_binder ON scan_events(binder, created_at);
`

// SQLite appends events to the bind_events and scan_events tables.
type SQLite struct {
	db    *sql.DB
	owned bool
}

// NewSQLite wraps an open database. The schema must already be applied.
// Close does not close db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// OpenSQLite opens (or creates) the database at path with the schema
// applied. A positive busyTimeout overrides the dbopen default. Close
// closes it.
func OpenSQLite(path string, busyTimeout time.Duration) (*SQLite, error) {
	opts := []dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}
	if busyTimeout > 0 {
		opts = append(opts, dbopen.WithBusyTimeout(int(busyTimeout/time.Millisecond)))
	}
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: %w", err)
	}
	return &SQLite{db: db, owned: true}, nil
}

func (s *SQLite) SendBound(ctx context.Context, ev event.Bound) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bind_events (id, binder, selector, page_url, element, html, markdown, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			ev.ID, ev.Binder, ev.Selector, ev.PageURL, ev.Element, ev.HTML, ev.Markdown, ev.Timestamp)
		return err
	})
}

func (s *SQLite) SendScan(ctx context.Context, ev event.Scan) error {
	failures, err := json.Marshal(ev.Failures)
	if err != nil {
		return fmt.Errorf("sqlite sink: marshal failures: %w", err)
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_events (id, binder, passes, matched, bound, failed, skipped,
			                         coalesced, duration_ms, failures, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			ev.ID, ev.Binder, ev.Passes, ev.Matched, ev.Bound, ev.Failed, ev.Skipped,
			ev.Coalesced, ev.DurationMS, string(failures), ev.Timestamp)
		return err
	})
}

// RecentScans returns the latest scan events of binder, newest first.
func (s *SQLite) RecentScans(ctx context.Context, binder string, limit int) ([]event.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, binder, passes, matched, bound, failed, skipped,
		       coalesced, duration_ms, failures, created_at
		FROM scan_events
		WHERE binder = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, binder, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Scan
	for rows.Next() {
		var (
			ev           event.Scan
			failuresJSON string
		)
		if err := rows.Scan(&ev.ID, &ev.Binder, &ev.Passes, &ev.Matched, &ev.Bound,
			&ev.Failed, &ev.Skipped, &ev.Coalesced, &ev.DurationMS, &failuresJSON, &ev.Timestamp); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(failuresJSON), &ev.Failures)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountBound returns the number of bound events recorded for binder.
func (s *SQLite) CountBound(ctx context.Context, binder string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bind_events WHERE binder = ?`, binder).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
