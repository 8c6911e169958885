package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Archive records every delivered event in a SQLite history table, for
// after-the-fact inspection of what flowed through a subtree. It is an
// outbound sink; the live index never reads from it.
type Archive struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewArchive opens (or creates) the archive database. The path should
// be a file path or ":memory:" for testing.
func NewArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive sink: open database: %w", err)
	}
	// One connection: sqlite serializes writers anyway, and :memory:
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	// WAL keeps concurrent readers cheap while the worker writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive sink: enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			service TEXT NOT NULL,
			state TEXT NOT NULL,
			description TEXT NOT NULL,
			metric REAL,
			tags TEXT NOT NULL,
			ttl_seconds REAL NOT NULL,
			time TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive sink: create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_service_time
		ON events(service, time)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive sink: create index: %w", err)
	}

	return &Archive{db: db}, nil
}

// Send inserts one batch in a single transaction. Re-delivered event
// IDs overwrite their previous row.
func (a *Archive) Send(ctx context.Context, events []event.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("archive sink: closed")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive sink: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO events
			(id, host, service, state, description, metric, tags, ttl_seconds, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("archive sink: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		tags, err := json.Marshal(e.Tags)
		if err != nil {
			return fmt.Errorf("archive sink: marshal tags: %w", err)
		}
		var metric any
		if e.Metric != nil {
			metric = *e.Metric
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Host, e.Service, e.State, e.Description,
			metric, string(tags), e.TTL.Seconds(),
			e.Time.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("archive sink: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive sink: commit: %w", err)
	}
	return nil
}

// History returns up to limit archived events for a service, newest
// first.
func (a *Archive) History(ctx context.Context, service string, limit int) ([]event.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("archive sink: closed")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, host, service, state, description, metric, tags, ttl_seconds, time
		FROM events
		WHERE service = ?
		ORDER BY time DESC
		LIMIT ?
	`, service, limit)
	if err != nil {
		return nil, fmt.Errorf("archive sink: query history: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			e       event.Event
			metric  sql.NullFloat64
			tags    string
			ttlSecs float64
			ts      string
		)
		if err := rows.Scan(&e.ID, &e.Host, &e.Service, &e.State, &e.Description,
			&metric, &tags, &ttlSecs, &ts); err != nil {
			return nil, fmt.Errorf("archive sink: scan row: %w", err)
		}
		if metric.Valid {
			e.Metric = event.Float(metric.Float64)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("archive sink: decode tags: %w", err)
		}
		e.TTL = time.Duration(ttlSecs * float64(time.Second))
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Time = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}
