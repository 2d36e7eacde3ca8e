package db

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeFormat is how timestamps are stored; it sorts lexically.
const TimeFormat = "2006-01-02T15:04:05Z"

// StatusWrite represents a row in the status_writes table: one status write
// decision, performed or skipped.
type StatusWrite struct {
	ID          int    `json:"id"`
	RunID       string `json:"run_id"`
	SHA         string `json:"sha"`
	Context     string `json:"context"`
	State       string `json:"state"`
	Written     bool   `json:"written"`
	Reason      string `json:"reason,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// DocsEvent represents a row in the docs_events table.
type DocsEvent struct {
	ID        int    `json:"id"`
	RunID     string `json:"run_id"`
	Issue     int    `json:"issue"`
	SHA       string `json:"sha"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Doc-build actions recorded in docs_events.
const (
	DocsActionQueued  = "queued"
	DocsActionCurrent = "current"
	DocsActionDone    = "done"
)

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(TimeFormat)
}

// LogStatusWrite inserts a status write decision. An empty Timestamp means now.
func (d *DB) LogStatusWrite(w StatusWrite) error {
	ts := w.Timestamp
	if ts == "" {
		ts = stamp(time.Time{})
	}
	_, err := d.conn.Exec(d.rebind(
		`INSERT INTO status_writes (run_id, sha, context, state, written, reason, description, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		w.RunID, w.SHA, w.Context, w.State, w.Written, w.Reason, w.Description, ts,
	)
	if err != nil {
		return fmt.Errorf("log status write: %w", err)
	}
	return nil
}

// ListStatusWrites returns status writes, newest first. An empty sha lists
// every commit; limit <= 0 means no limit.
func (d *DB) ListStatusWrites(sha string, limit int) ([]StatusWrite, error) {
	query := `SELECT id, run_id, sha, context, state, written, reason, description, timestamp FROM status_writes`
	var args []any
	if sha != "" {
		query += ` WHERE sha = ?`
		args = append(args, sha)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list status writes: %w", err)
	}
	defer rows.Close()

	var writes []StatusWrite
	for rows.Next() {
		var w StatusWrite
		var reason, desc sql.NullString
		if err := rows.Scan(&w.ID, &w.RunID, &w.SHA, &w.Context, &w.State, &w.Written, &reason, &desc, &w.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status write: %w", err)
		}
		w.Reason = reason.String
		w.Description = desc.String
		writes = append(writes, w)
	}
	return writes, rows.Err()
}

// LogDocsEvent inserts a doc-build queue event. An empty Timestamp means now.
func (d *DB) LogDocsEvent(e DocsEvent) error {
	ts := e.Timestamp
	if ts == "" {
		ts = stamp(time.Time{})
	}
	_, err := d.conn.Exec(d.rebind(
		`INSERT INTO docs_events (run_id, issue, sha, action, detail, timestamp) VALUES (?, ?, ?, ?, ?, ?)`),
		e.RunID, e.Issue, e.SHA, e.Action, e.Detail, ts,
	)
	if err != nil {
		return fmt.Errorf("log docs event: %w", err)
	}
	return nil
}

// ListDocsEvents returns doc-build events, newest first. issue 0 lists every
// issue; limit <= 0 means no limit.
func (d *DB) ListDocsEvents(issue int, limit int) ([]DocsEvent, error) {
	query := `SELECT id, run_id, issue, sha, action, detail, timestamp FROM docs_events`
	var args []any
	if issue > 0 {
		query += ` WHERE issue = ?`
		args = append(args, issue)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list docs events: %w", err)
	}
	defer rows.Close()

	var events []DocsEvent
	for rows.Next() {
		var e DocsEvent
		var sha, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Issue, &sha, &e.Action, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan docs event: %w", err)
		}
		e.SHA = sha.String
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
