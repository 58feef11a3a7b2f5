// Package history provides the SQLite upload journal for pasteup.
//
// Every upload attempt lands here exactly once, success or failure.
// The journal is advisory: callers treat write errors as log-worthy,
// never as upload failures.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the upload journal.
const schema = `
CREATE TABLE IF NOT EXISTS uploads (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id      TEXT NOT NULL,
    kind          TEXT NOT NULL,
    file_name     TEXT NOT NULL,
    content_type  TEXT NOT NULL,
    size_bytes    INTEGER NOT NULL,
    sha256        TEXT NOT NULL,
    provider      TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    error         TEXT NOT NULL DEFAULT '',
    started_at    INTEGER NOT NULL,
    finished_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_event ON uploads(event_id);
CREATE INDEX IF NOT EXISTS idx_uploads_started ON uploads(started_at);
`

// defaultListLimit bounds List when the caller passes no limit.
const defaultListLimit = 50

// Record is one upload attempt. Error is empty on success and URL is
// empty on failure.
type Record struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	Provider    string    `json:"provider"`
	URL         string    `json:"url"`
	Error       string    `json:"error"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Succeeded reports whether this attempt produced a URL.
func (r *Record) Succeeded() bool {
	return r.Error == ""
}

// Stats summarizes the journal.
type Stats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// Store is the SQLite-backed upload journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database at the given path and
// applies the schema.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts one upload attempt and returns its row ID.
func (s *Store) Record(rec *Record) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO uploads (event_id, kind, file_name, content_type, size_bytes, sha256, provider, url, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID, rec.Kind, rec.FileName, rec.ContentType, rec.SizeBytes, rec.SHA256,
		rec.Provider, rec.URL, rec.Error, rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// List returns the most recent attempts, newest first. A limit of zero
// or less uses the default.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(`
		SELECT id, event_id, kind, file_name, content_type, size_bytes, sha256, provider, url, error, started_at, finished_at
		FROM uploads
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ByEvent returns every attempt recorded for one editor event, in
// insertion order. No attempts means a nil slice, not an error.
func (s *Store) ByEvent(eventID string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, event_id, kind, file_name, content_type, size_bytes, sha256, provider, url, error, started_at, finished_at
		FROM uploads
		WHERE event_id = ?
		ORDER BY id ASC`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query uploads by event: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Stats returns journal totals.
func (s *Store) Stats() (*Stats, error) {
	var st Stats

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error = '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(size_bytes), 0)
		FROM uploads`,
	).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.Bytes)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	return &st, nil
}

// scanRecords is a helper to scan upload rows into a slice.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var r Record
		var startedNs, finishedNs int64

		if err := rows.Scan(&r.ID, &r.EventID, &r.Kind, &r.FileName, &r.ContentType, &r.SizeBytes,
			&r.SHA256, &r.Provider, &r.URL, &r.Error, &startedNs, &finishedNs); err != nil {
			return nil, fmt.Errorf("scan upload record: %w", err)
		}

		r.StartedAt = time.Unix(0, startedNs)
		r.FinishedAt = time.Unix(0, finishedNs)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload records: %w", err)
	}

	return records, nil
}
