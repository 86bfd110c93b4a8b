// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry persists which exports have been processed so repeat
// conversion runs only pick up new drops. The registry is a single sqlite
// database; the CLI keeps it next to the tool by default.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/notemill/pkg/types"
)

// schemaStatements define the registry schema. Statements must be idempotent
// so reopening an existing registry is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS processed_exports (
		key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		date TEXT NOT NULL,
		processed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_processed_provider ON processed_exports(provider)`,
}

// Entry is one processed-export record.
type Entry struct {
	Key         string
	Provider    types.Provider
	Date        string
	ProcessedAt time.Time
}

// Registry wraps the sqlite database holding processed-export records.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating registry schema: %w", err)
		}
	}

	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// IsProcessed reports whether the export identified by key has already been
// converted.
func (r *Registry) IsProcessed(key string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM processed_exports WHERE key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying registry: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records exp as converted. Re-marking an export refreshes its
// processed_at timestamp.
func (r *Registry) MarkProcessed(exp types.Export) error {
	_, err := r.db.Exec(
		`INSERT INTO processed_exports (key, provider, date, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET processed_at = excluded.processed_at`,
		exp.Key(), string(exp.Provider), exp.Date, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking %s processed: %w", exp.Key(), err)
	}
	return nil
}

// List returns every processed-export record keyed by export key.
func (r *Registry) List() (map[string]Entry, error) {
	rows, err := r.db.Query(
		`SELECT key, provider, date, processed_at FROM processed_exports`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing registry: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var e Entry
		var provider, processedAt string
		if err := rows.Scan(&e.Key, &provider, &e.Date, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning registry row: %w", err)
		}
		e.Provider = types.Provider(provider)
		if ts, err := time.Parse(time.RFC3339, processedAt); err == nil {
			e.ProcessedAt = ts
		}
		entries[e.Key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading registry rows: %w", err)
	}
	return entries, nil
}
