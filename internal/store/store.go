// Package store provides the embedded SQLite store holding the
// authoritative, inheritance-aware copies of workspace entities.
//
// Every templated entity exists at two levels: a master record (one per
// entity name, the globally visible default) and zero-or-more override
// records (at most one per entity name per scope). Effective content for a
// (scope, name) pair is the override when present, else the master.
// Plugin fragments are a simpler one-level map keyed by (owner, name).
//
// The database runs in embedded mode with WAL for concurrent reads.
// Every row carries a monotonically comparable modification marker
// (UnixNano at write time) used by the export path for change detection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrUnknownScope is returned when an operation names a scope that has not
// been created. Recognized paths referencing an unknown scope are a hard
// error for that item, never silently ignored.
var ErrUnknownScope = errors.New("store: unknown scope")

// Store wraps the SQLite connection with the master/override schema.
type Store struct {
	conn *sql.DB
	path string

	// now assigns modification markers; overridable in tests.
	now func() int64
}

// Open creates a store connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created; call InitSchema before first use.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
		now:  func() int64 { return time.Now().UnixNano() },
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// SetClock replaces the modification-marker source. Intended for tests that
// need deterministic markers.
func (s *Store) SetClock(now func() int64) {
	s.now = now
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent: safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scopes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	-- Masters: one global default per entity name.
	CREATE TABLE IF NOT EXISTS template_masters (
		name TEXT PRIMARY KEY,
		grp TEXT NOT NULL DEFAULT 'ungrouped',
		content TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		modified INTEGER NOT NULL
	);

	-- Overrides: at most one per (scope, name); shadows the master.
	-- grp records where the workspace file lives so exports rebuild the
	-- exact imported path.
	CREATE TABLE IF NOT EXISTS template_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		grp TEXT NOT NULL DEFAULT 'ungrouped',
		content TEXT NOT NULL,
		master_version TEXT NOT NULL DEFAULT '',
		modified INTEGER NOT NULL,
		UNIQUE (scope_id, name),
		FOREIGN KEY (scope_id) REFERENCES scopes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS stylesheet_masters (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stylesheet_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		modified INTEGER NOT NULL,
		UNIQUE (scope_id, name),
		FOREIGN KEY (scope_id) REFERENCES scopes(id) ON DELETE CASCADE
	);

	-- Plugin fragments have no master level: one global record per
	-- (owner, name).
	CREATE TABLE IF NOT EXISTS plugin_fragments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		modified INTEGER NOT NULL,
		UNIQUE (owner, name)
	);

	CREATE INDEX IF NOT EXISTS idx_template_overrides_scope
	    ON template_overrides(scope_id);
	CREATE INDEX IF NOT EXISTS idx_stylesheet_overrides_scope
	    ON stylesheet_overrides(scope_id);
	CREATE INDEX IF NOT EXISTS idx_plugin_fragments_owner
	    ON plugin_fragments(owner);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// CreateScope creates a scope (template set / theme) and returns its id.
// Creating an existing scope returns the existing id.
func (s *Store) CreateScope(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("scope name cannot be empty")
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO scopes (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create scope %s: %w", name, err)
	}

	return s.ScopeID(ctx, name)
}

// ScopeID resolves a scope name to its id.
// Returns ErrUnknownScope if the scope does not exist.
func (s *Store) ScopeID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT id FROM scopes WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve scope %s: %w", name, err)
	}
	return id, nil
}

// ListScopes returns all scopes ordered by name.
func (s *Store) ListScopes(ctx context.Context) ([]Scope, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name FROM scopes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var sc Scope
		if err := rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scopes: %w", err)
	}
	return scopes, nil
}

// Counts reports table sizes for status displays.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM scopes`, &c.Scopes},
		{`SELECT COUNT(*) FROM template_masters`, &c.TemplateMasters},
		{`SELECT COUNT(*) FROM template_overrides`, &c.TemplateOverrides},
		{`SELECT COUNT(*) FROM stylesheet_masters`, &c.StylesheetMasters},
		{`SELECT COUNT(*) FROM stylesheet_overrides`, &c.StylesheetOverrides},
		{`SELECT COUNT(*) FROM plugin_fragments`, &c.PluginFragments},
	}
	for _, q := range queries {
		if err := s.conn.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return c, nil
}
