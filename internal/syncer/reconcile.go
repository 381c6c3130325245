package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// Reconcile implements Syncer.Reconcile.
//
// Deletion is never propagated automatically between the workspace and the
// store; this pass only forgets paths where BOTH sides are gone, so a file
// deleted on one side alone keeps its entry and its state is re-resolved by
// the next natural sync in either direction.
func (s *syncer) Reconcile(ctx context.Context) (int, error) {
	entries, err := s.manifest.All()
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		abs := filepath.Join(s.root, filepath.FromSlash(e.Path))
		if _, err := os.Stat(abs); err == nil {
			continue // file still present
		} else if !os.IsNotExist(err) {
			s.logger.Printf("WARNING: cannot stat %s: %v", e.Path, err)
			continue
		}

		present, err := s.entityPresent(ctx, e.Path, e.ScopeID)
		if err != nil {
			s.logger.Printf("WARNING: cannot check store entity for %s: %v", e.Path, err)
			continue
		}
		if present {
			continue // store side survives; keep tracking
		}

		if err := s.manifest.Delete(e.Path); err != nil {
			s.logger.Printf("WARNING: failed to drop manifest entry %s: %v", e.Path, err)
			continue
		}
		s.logger.Printf("Reconciled away: %s", e.Path)
		removed++
	}

	return removed, nil
}

// entityPresent reports whether the store record linked to a manifest path
// still exists.
func (s *syncer) entityPresent(ctx context.Context, rel string, scopeID int64) (bool, error) {
	parsed := workspace.Parse(rel)

	var err error
	switch parsed.Kind {
	case workspace.KindTemplate:
		_, err = s.store.GetTemplateOverride(ctx, scopeID, parsed.EntityName)
	case workspace.KindStylesheet:
		_, err = s.store.GetStylesheetOverride(ctx, scopeID, parsed.EntityName)
	case workspace.KindPluginFragment:
		_, err = s.store.GetPluginFragment(ctx, parsed.OwnerCodename, parsed.EntityName)
	default:
		// Entries for paths outside the grammar cannot map to a record.
		return false, nil
	}

	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
