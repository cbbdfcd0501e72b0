// Package journal keeps an optional SQLite audit trail of dashboard visits.
//
// The journal is append-only from the server's point of view: it is never
// read back into the in-memory visitor store.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rampantspark/gridwatch/internal/visitor"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Journal handles SQLite persistence for visits.
type Journal struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

// Entry is one journaled visit.
type Entry struct {
	ID             int64     `json:"id"`
	Address        string    `json:"ip"`
	Browser        string    `json:"browser"`
	BrowserVersion string    `json:"browser_version"`
	Device         string    `json:"device"`
	DeviceType     string    `json:"device_type"`
	OS             string    `json:"os"`
	UserAgent      string    `json:"user_agent"`
	Path           string    `json:"path"`
	RequestID      string    `json:"request_id,omitempty"`
	VisitedAt      time.Time `json:"time"`
}

// CountEntry is the lifetime visit count of one (address, browser) pair.
type CountEntry struct {
	Address   string    `json:"ip"`
	Browser   string    `json:"browser"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Timestamps are stored as unix nanoseconds so ordering is numeric.
const schema = `
CREATE TABLE IF NOT EXISTS visit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip TEXT NOT NULL CHECK(length(ip) <= 255 AND length(ip) > 0),
    browser TEXT NOT NULL,
    browser_version TEXT NOT NULL DEFAULT '',
    device TEXT NOT NULL,
    device_type TEXT NOT NULL DEFAULT '',
    os TEXT NOT NULL,
    user_agent TEXT CHECK(user_agent IS NULL OR length(user_agent) <= 512),
    path TEXT CHECK(path IS NULL OR length(path) <= 2048),
    request_id TEXT NOT NULL DEFAULT '',
    visited_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visit_log_visited_at ON visit_log(visited_at DESC);
CREATE INDEX IF NOT EXISTS idx_visit_log_ip ON visit_log(ip);

CREATE TABLE IF NOT EXISTS visitor_counts (
    ip TEXT NOT NULL,
    browser TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 1 CHECK(count > 0),
    first_seen INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    PRIMARY KEY (ip, browser)
);
CREATE INDEX IF NOT EXISTS idx_visitor_counts_count ON visitor_counts(count DESC);
`

// Column limits enforced before insert so oversize input is truncated rather
// than rejected by the CHECK constraints.
const (
	maxAddressLen   = 255
	maxUserAgentLen = 512
	maxPathLen      = 2048
)

// Open opens (creating if needed) the journal database at path.
//
// Parameters:
//   - path: path to the SQLite database file
//   - logger: structured logger instance
//
// Returns a new Journal instance or an error if initialization fails.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debug("Journal initialized", "path", path)

	return &Journal{
		db:     db,
		logger: logger,
	}, nil
}

// Append records a visit.
//
// The log row and the per-visitor count are written in one transaction.
func (j *Journal) Append(ctx context.Context, event visitor.VisitEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ts := event.Timestamp.UnixNano()
	browser := string(event.Facts.Browser)
	address := journalAddress(event.Address)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visit_log (ip, browser, browser_version, device, device_type, os, user_agent, path, request_id, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, address, browser, event.Facts.BrowserVersion, string(event.Facts.Device),
		event.Facts.DeviceType, string(event.Facts.OS),
		truncate(event.Facts.RawAgent, maxUserAgentLen), truncate(event.Path, maxPathLen),
		event.RequestID, ts)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visitor_counts (ip, browser, count, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(ip, browser) DO UPDATE SET
			count = count + 1,
			last_seen = excluded.last_seen
	`, address, browser, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to update visitor count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit visits, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ip, browser, browser_version, device, device_type, os, user_agent, path, request_id, visited_at
		FROM visit_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent visits: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// TopVisitors returns the limit busiest (address, browser) pairs.
func (j *Journal) TopVisitors(ctx context.Context, limit int) ([]CountEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT ip, browser, count, first_seen, last_seen
		FROM visitor_counts
		ORDER BY count DESC, last_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top visitors: %w", err)
	}
	defer rows.Close()

	var result []CountEntry
	for rows.Next() {
		var entry CountEntry
		var first, last int64
		if err := rows.Scan(&entry.Address, &entry.Browser, &entry.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan visitor count: %w", err)
		}
		entry.FirstSeen = time.Unix(0, first)
		entry.LastSeen = time.Unix(0, last)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visitor counts: %w", err)
	}
	return result, nil
}

// Count returns the number of journaled visits.
func (j *Journal) Count(ctx context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var ua, path sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.Address, &e.Browser, &e.BrowserVersion, &e.Device,
			&e.DeviceType, &e.OS, &ua, &path, &e.RequestID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		e.UserAgent = ua.String
		e.Path = path.String
		e.VisitedAt = time.Unix(0, ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}
	return entries, nil
}

// journalAddress fits a client-supplied address into the ip column, which
// must be non-empty and at most maxAddressLen bytes.
func journalAddress(address string) string {
	if address == "" {
		return visitor.UnknownAgent
	}
	return truncate(address, maxAddressLen)
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
