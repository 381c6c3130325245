package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// ExportScope implements Syncer.ExportScope.
//
// For every entity visible in the scope (override union master, override
// wins), the store's modification marker is compared against the manifest;
// unchanged entities are skipped with no disk write and no manifest update.
// Individual file failures are logged and counted but do not stop the
// export.
func (s *syncer) ExportScope(ctx context.Context, scope string) (ExportStats, error) {
	scopeID, err := s.scopeID(ctx, scope)
	if err != nil {
		return ExportStats{}, fmt.Errorf("export scope %s: %w", scope, err)
	}

	var stats ExportStats

	templates, err := s.store.ListEffectiveTemplates(ctx, scopeID)
	if err != nil {
		return stats, fmt.Errorf("export scope %s: %w", scope, err)
	}
	for _, e := range templates {
		rel := workspace.TemplatePath(scope, e.Group, e.Name)
		s.exportOne(rel, workspace.KindTemplate.String(), scopeID, e, &stats)
	}

	stylesheets, err := s.store.ListEffectiveStylesheets(ctx, scopeID)
	if err != nil {
		return stats, fmt.Errorf("export scope %s: %w", scope, err)
	}
	for _, e := range stylesheets {
		rel := workspace.StylesheetPath(scope, e.Name)
		s.exportOne(rel, workspace.KindStylesheet.String(), scopeID, e, &stats)
	}

	s.logger.Printf("Export of %s complete: written=%d skipped=%d failed=%d",
		scope, stats.Written, stats.Skipped, stats.Failed)
	return stats, nil
}

// exportOne conditionally writes one effective entity to the workspace and
// records the sync in the manifest.
func (s *syncer) exportOne(rel, kind string, scopeID int64, e store.Effective, stats *ExportStats) {
	if !s.manifest.IsStoreChanged(rel, e.Modified) {
		stats.Skipped++
		return
	}

	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		s.logger.Printf("WARNING: failed to create directory for %s: %v", rel, err)
		stats.Failed++
		return
	}

	content := []byte(e.Content)
	if err := os.WriteFile(abs, content, 0644); err != nil {
		s.logger.Printf("WARNING: failed to write %s: %v", rel, err)
		stats.Failed++
		return
	}

	info, err := os.Stat(abs)
	modTime := time.Now()
	if err == nil {
		modTime = info.ModTime()
	}

	entry := manifest.Entry{
		Path:        rel,
		ContentHash: HashBytes(content),
		SizeBytes:   int64(len(content)),
		FileModTime: modTime,
		LastSynced:  time.Now(),
		Direction:   manifest.FromStore,
		EntityKind:  kind,
		EntityID:    e.RecordID,
		ScopeID:     scopeID,
		ModMarker:   e.Modified,
	}
	if err := s.manifest.RecordSync(entry); err != nil {
		s.logger.Printf("WARNING: failed to record export of %s: %v", rel, err)
		stats.Failed++
		return
	}

	stats.Written++
}
