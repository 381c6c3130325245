package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPluginFragment retrieves the fragment for (owner, name).
// Returns ErrNotFound if it does not exist.
func (s *Store) GetPluginFragment(ctx context.Context, owner, name string) (*PluginFragment, error) {
	var f PluginFragment
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, owner, name, content, modified
		FROM plugin_fragments WHERE owner = ? AND name = ?`, owner, name).
		Scan(&f.ID, &f.Owner, &f.Name, &f.Content, &f.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plugin fragment %s/%s", ErrNotFound, owner, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plugin fragment %s/%s: %w", owner, name, err)
	}
	return &f, nil
}

// UpsertPluginFragment writes the fragment for (owner, name) with one
// update-or-insert. An existing fragment keeps its id.
func (s *Store) UpsertPluginFragment(ctx context.Context, owner, name, content string) (*PluginFragment, error) {
	if owner == "" {
		return nil, fmt.Errorf("fragment owner cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("fragment name cannot be empty")
	}

	modified := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO plugin_fragments (owner, name, content, modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			content = excluded.content,
			modified = excluded.modified`,
		owner, name, content, modified)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert plugin fragment %s/%s: %w", owner, name, err)
	}

	return s.GetPluginFragment(ctx, owner, name)
}

// DeletePluginFragment removes the fragment for (owner, name). Idempotent.
func (s *Store) DeletePluginFragment(ctx context.Context, owner, name string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM plugin_fragments WHERE owner = ? AND name = ?`, owner, name)
	if err != nil {
		return fmt.Errorf("failed to delete plugin fragment %s/%s: %w", owner, name, err)
	}
	return nil
}

// ListPluginFragments returns every fragment owned by the plugin, ordered
// by name.
func (s *Store) ListPluginFragments(ctx context.Context, owner string) ([]PluginFragment, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, owner, name, content, modified
		FROM plugin_fragments WHERE owner = ? ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin fragments for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []PluginFragment
	for rows.Next() {
		var f PluginFragment
		if err := rows.Scan(&f.ID, &f.Owner, &f.Name, &f.Content, &f.Modified); err != nil {
			return nil, fmt.Errorf("failed to scan plugin fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plugin fragments: %w", err)
	}
	return out, nil
}
