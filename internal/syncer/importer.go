package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// ImportTemplate implements Syncer.ImportTemplate.
//
// Algorithm: resolve the scope id (unknown scope is an error). If an
// override exists for (scope, name) it is updated in place, keeping its id.
// Otherwise the master's version marker is read (absence of a master is
// fine) and a new override is created carrying it. Either branch lands as a
// single update-or-insert against the store, recording the file's group so
// the export path and the imported path stay identical.
func (s *syncer) ImportTemplate(ctx context.Context, scope, group, name, content string) (EntityRef, error) {
	scopeID, err := s.scopeID(ctx, scope)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import template %s/%s: %w", scope, name, err)
	}

	version, err := s.creationVersion(ctx, scopeID, name)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import template %s/%s: %w", scope, name, err)
	}

	o, err := s.store.UpsertTemplateOverride(ctx, scopeID, name, group, content, version)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import template %s/%s: %w", scope, name, err)
	}

	s.logger.Printf("Imported template: %s/%s (override %d)", scope, name, o.ID)
	return EntityRef{
		Kind:    workspace.KindTemplate.String(),
		ID:      o.ID,
		ScopeID: scopeID,
		Marker:  o.Modified,
	}, nil
}

// creationVersion returns the master's version marker when (scopeID, name)
// has no override yet, and "" otherwise. An existing override keeps the
// marker it was created with, so the master is not consulted again.
func (s *syncer) creationVersion(ctx context.Context, scopeID int64, name string) (string, error) {
	_, err := s.store.GetTemplateOverride(ctx, scopeID, name)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	m, err := s.store.GetTemplateMaster(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Version, nil
}

// ImportStylesheet implements Syncer.ImportStylesheet.
func (s *syncer) ImportStylesheet(ctx context.Context, scope, name, content string) (EntityRef, error) {
	scopeID, err := s.scopeID(ctx, scope)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import stylesheet %s/%s: %w", scope, name, err)
	}

	o, err := s.store.UpsertStylesheetOverride(ctx, scopeID, name, content)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import stylesheet %s/%s: %w", scope, name, err)
	}

	s.logger.Printf("Imported stylesheet: %s/%s (override %d)", scope, name, o.ID)
	return EntityRef{
		Kind:    workspace.KindStylesheet.String(),
		ID:      o.ID,
		ScopeID: scopeID,
		Marker:  o.Modified,
	}, nil
}

// ImportPluginFragment implements Syncer.ImportPluginFragment.
func (s *syncer) ImportPluginFragment(ctx context.Context, owner, name, content string) (EntityRef, error) {
	f, err := s.store.UpsertPluginFragment(ctx, owner, name, content)
	if err != nil {
		return EntityRef{}, fmt.Errorf("import plugin fragment %s/%s: %w", owner, name, err)
	}

	s.logger.Printf("Imported plugin fragment: %s/%s (record %d)", owner, name, f.ID)
	return EntityRef{
		Kind:   workspace.KindPluginFragment.String(),
		ID:     f.ID,
		Marker: f.Modified,
	}, nil
}

// ImportItem dispatches a work item to the importer matching its kind and
// returns the touched entity. Unrecognized kinds are rejected; the watcher
// never queues them.
func (s *syncer) ImportItem(ctx context.Context, item WorkItem) (EntityRef, error) {
	switch item.Kind {
	case workspace.KindTemplate:
		return s.ImportTemplate(ctx, item.Scope, item.Group, item.Name, string(item.Content))
	case workspace.KindStylesheet:
		return s.ImportStylesheet(ctx, item.Scope, item.Name, string(item.Content))
	case workspace.KindPluginFragment:
		return s.ImportPluginFragment(ctx, item.Owner, item.Name, string(item.Content))
	default:
		return EntityRef{}, fmt.Errorf("cannot import work item of kind %v", item.Kind)
	}
}
