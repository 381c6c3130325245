package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetTemplateMaster retrieves the master record for a template name.
// Returns ErrNotFound if no master exists.
func (s *Store) GetTemplateMaster(ctx context.Context, name string) (*TemplateMaster, error) {
	var m TemplateMaster
	err := s.conn.QueryRowContext(ctx, `
		SELECT name, grp, content, version, modified
		FROM template_masters WHERE name = ?`, name).
		Scan(&m.Name, &m.Group, &m.Content, &m.Version, &m.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template master %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template master %s: %w", name, err)
	}
	return &m, nil
}

// UpsertTemplateMaster inserts or updates a master template record.
// Used by seeding and administration; the sync importers only ever touch
// overrides.
func (s *Store) UpsertTemplateMaster(ctx context.Context, name, group, content, version string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("template name cannot be empty")
	}
	if group == "" {
		group = "ungrouped"
	}

	modified := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO template_masters (name, grp, content, version, modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			grp = excluded.grp,
			content = excluded.content,
			version = excluded.version,
			modified = excluded.modified`,
		name, group, content, version, modified)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert template master %s: %w", name, err)
	}
	return modified, nil
}

// GetTemplateOverride retrieves the override for (scopeID, name).
// Returns ErrNotFound if the scope has no override for the name.
func (s *Store) GetTemplateOverride(ctx context.Context, scopeID int64, name string) (*TemplateOverride, error) {
	var o TemplateOverride
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, scope_id, name, grp, content, master_version, modified
		FROM template_overrides WHERE scope_id = ? AND name = ?`, scopeID, name).
		Scan(&o.ID, &o.ScopeID, &o.Name, &o.Group, &o.Content, &o.MasterVersion, &o.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template override %d/%s", ErrNotFound, scopeID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template override %d/%s: %w", scopeID, name, err)
	}
	return &o, nil
}

// UpsertTemplateOverride writes the override for (scopeID, name) as a single
// logical write: the full target row is constructed and applied with one
// update-or-insert, so no partial-state window exists. An existing override
// keeps its id; the group follows the latest import so the export path
// always matches where the file was last seen.
func (s *Store) UpsertTemplateOverride(ctx context.Context, scopeID int64, name, group, content, masterVersion string) (*TemplateOverride, error) {
	if name == "" {
		return nil, fmt.Errorf("template name cannot be empty")
	}
	if group == "" {
		group = "ungrouped"
	}

	modified := s.now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO template_overrides (scope_id, name, grp, content, master_version, modified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_id, name) DO UPDATE SET
			grp = excluded.grp,
			content = excluded.content,
			modified = excluded.modified`,
		scopeID, name, group, content, masterVersion, modified)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert template override %d/%s: %w", scopeID, name, err)
	}

	return s.GetTemplateOverride(ctx, scopeID, name)
}

// DeleteTemplateOverride removes the override for (scopeID, name), making
// the master visible again for that scope. Idempotent.
func (s *Store) DeleteTemplateOverride(ctx context.Context, scopeID int64, name string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM template_overrides WHERE scope_id = ? AND name = ?`, scopeID, name)
	if err != nil {
		return fmt.Errorf("failed to delete template override %d/%s: %w", scopeID, name, err)
	}
	return nil
}

// ListEffectiveTemplates resolves inheritance for every template visible in
// the scope: the union of masters and overrides, override wins. The group
// follows the winning record, so an overridden template exports back to the
// path it was imported from.
func (s *Store) ListEffectiveTemplates(ctx context.Context, scopeID int64) ([]Effective, error) {
	query := `
	SELECT m.name,
	       COALESCE(o.grp, m.grp),
	       COALESCE(o.content, m.content),
	       COALESCE(o.modified, m.modified),
	       o.id IS NOT NULL,
	       COALESCE(o.id, 0)
	FROM template_masters m
	LEFT JOIN template_overrides o
	       ON o.name = m.name AND o.scope_id = ?

	UNION ALL

	SELECT o.name, o.grp, o.content, o.modified, 1, o.id
	FROM template_overrides o
	WHERE o.scope_id = ?
	  AND o.name NOT IN (SELECT name FROM template_masters)

	ORDER BY 1
	`

	rows, err := s.conn.QueryContext(ctx, query, scopeID, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list effective templates: %w", err)
	}
	defer rows.Close()

	return scanEffective(rows)
}

// scanEffective scans rows shaped (name, group, content, modified,
// overridden, record_id).
func scanEffective(rows *sql.Rows) ([]Effective, error) {
	var out []Effective
	for rows.Next() {
		var e Effective
		if err := rows.Scan(&e.Name, &e.Group, &e.Content, &e.Modified, &e.Overridden, &e.RecordID); err != nil {
			return nil, fmt.Errorf("failed to scan effective row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating effective rows: %w", err)
	}
	return out, nil
}
