// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Flush states stored in the catalog.
const (
	StatusFlushing = "flushing"
	StatusSaved    = "saved"
	StatusFailed   = "failed"
)

// Entry is one catalogued recording.
type Entry struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Dir       string    `json:"dir"`
	Records   int       `json:"records"`
	Missing   int       `json:"missing"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// Catalog indexes recordings in a SQLite database so they can be listed
// without walking the output tree.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	session_id TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	dir        TEXT NOT NULL DEFAULT '',
	records    INTEGER NOT NULL DEFAULT 0,
	missing    INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	stopped_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	error      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS recordings_started ON recordings(started_at);
`

// OpenCatalog opens (creating if needed) the catalog at path.
func OpenCatalog(path string) (*Catalog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put inserts or replaces the entry for e.SessionID.
func (c *Catalog) Put(e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := c.db.Exec(`
		INSERT INTO recordings (session_id, kind, status, dir, records, missing, started_at, stopped_at, updated_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			kind = excluded.kind, status = excluded.status, dir = excluded.dir,
			records = excluded.records, missing = excluded.missing,
			started_at = excluded.started_at, stopped_at = excluded.stopped_at,
			updated_at = excluded.updated_at, error = excluded.error
	`, e.SessionID, e.Kind, e.Status, e.Dir, e.Records, e.Missing,
		e.StartedAt.UnixNano(), e.StoppedAt.UnixNano(), e.UpdatedAt.UnixNano(), e.Error)
	if err != nil {
		return fmt.Errorf("put recording %s: %w", e.SessionID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (c *Catalog) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.Query(`
		SELECT session_id, kind, status, dir, records, missing, started_at, stopped_at, updated_at, error
		FROM recordings
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, stopped, updated int64
		if err := rows.Scan(&e.SessionID, &e.Kind, &e.Status, &e.Dir, &e.Records, &e.Missing,
			&started, &stopped, &updated, &e.Error); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.StoppedAt = time.Unix(0, stopped)
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
