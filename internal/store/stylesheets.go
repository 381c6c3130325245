package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetStylesheetMaster retrieves the master record for a stylesheet name.
// Returns ErrNotFound if no master exists.
func (s *Store) GetStylesheetMaster(ctx context.Context, name string) (*StylesheetMaster, error) {
	var m StylesheetMaster
	err := s.conn.QueryRowContext(ctx, `
		SELECT name, content, modified
		FROM stylesheet_masters WHERE name = ?`, name).
		Scan(&m.Name, &m.Content, &m.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: stylesheet master %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stylesheet master %s: %w", name, err)
	}
	return &m, nil
}

// UpsertStylesheetMaster inserts or updates a master stylesheet record.
func (s *Store) UpsertStylesheetMaster(ctx context.Context, name, content string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("stylesheet name cannot be empty")
	}

	modified := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO stylesheet_masters (name, content, modified)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			modified = excluded.modified`,
		name, content, modified)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert stylesheet master %s: %w", name, err)
	}
	return modified, nil
}

// GetStylesheetOverride retrieves the override for (scopeID, name).
// Returns ErrNotFound if the scope has no override for the name.
func (s *Store) GetStylesheetOverride(ctx context.Context, scopeID int64, name string) (*StylesheetOverride, error) {
	var o StylesheetOverride
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, scope_id, name, content, modified
		FROM stylesheet_overrides WHERE scope_id = ? AND name = ?`, scopeID, name).
		Scan(&o.ID, &o.ScopeID, &o.Name, &o.Content, &o.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: stylesheet override %d/%s", ErrNotFound, scopeID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stylesheet override %d/%s: %w", scopeID, name, err)
	}
	return &o, nil
}

// UpsertStylesheetOverride writes the override for (scopeID, name) with one
// update-or-insert. An existing override keeps its id.
func (s *Store) UpsertStylesheetOverride(ctx context.Context, scopeID int64, name, content string) (*StylesheetOverride, error) {
	if name == "" {
		return nil, fmt.Errorf("stylesheet name cannot be empty")
	}

	modified := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO stylesheet_overrides (scope_id, name, content, modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope_id, name) DO UPDATE SET
			content = excluded.content,
			modified = excluded.modified`,
		scopeID, name, content, modified)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stylesheet override %d/%s: %w", scopeID, name, err)
	}

	return s.GetStylesheetOverride(ctx, scopeID, name)
}

// DeleteStylesheetOverride removes the override for (scopeID, name).
// Idempotent.
func (s *Store) DeleteStylesheetOverride(ctx context.Context, scopeID int64, name string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM stylesheet_overrides WHERE scope_id = ? AND name = ?`, scopeID, name)
	if err != nil {
		return fmt.Errorf("failed to delete stylesheet override %d/%s: %w", scopeID, name, err)
	}
	return nil
}

// ListEffectiveStylesheets resolves inheritance for every stylesheet
// visible in the scope.
func (s *Store) ListEffectiveStylesheets(ctx context.Context, scopeID int64) ([]Effective, error) {
	query := `
	SELECT m.name,
	       '',
	       COALESCE(o.content, m.content),
	       COALESCE(o.modified, m.modified),
	       o.id IS NOT NULL,
	       COALESCE(o.id, 0)
	FROM stylesheet_masters m
	LEFT JOIN stylesheet_overrides o
	       ON o.name = m.name AND o.scope_id = ?

	UNION ALL

	SELECT o.name, '', o.content, o.modified, 1, o.id
	FROM stylesheet_overrides o
	WHERE o.scope_id = ?
	  AND o.name NOT IN (SELECT name FROM stylesheet_masters)

	ORDER BY 1
	`

	rows, err := s.conn.QueryContext(ctx, query, scopeID, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list effective stylesheets: %w", err)
	}
	defer rows.Close()

	return scanEffective(rows)
}
