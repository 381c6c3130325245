package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// FullImport implements Syncer.FullImport.
//
// The walk is resilient: unrecognized paths are silently ignored, and
// individual file failures are logged and counted without stopping the
// import. Files whose hash matches their manifest entry are skipped.
func (s *syncer) FullImport(ctx context.Context) (ImportStats, error) {
	var stats ImportStats

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Printf("WARNING: walk error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			// The manifest's own directory is never imported.
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		parsed := workspace.Parse(rel)
		if parsed.Kind == workspace.KindUnrecognized {
			return nil
		}

		if err := s.importFile(ctx, path, parsed, &stats); err != nil {
			s.logger.Printf("WARNING: failed to import %s: %v", rel, err)
			stats.Failed++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("full import: %w", err)
	}

	s.logger.Printf("Full import complete: imported=%d skipped=%d failed=%d",
		stats.Imported, stats.Skipped, stats.Failed)
	return stats, nil
}

// importFile imports a single recognized workspace file and records the
// sync in the manifest when its content differs from the last synced state.
func (s *syncer) importFile(ctx context.Context, abs string, parsed workspace.ParsedPath, stats *ImportStats) error {
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(content) == 0 {
		// Transient empty write during an atomic save; not yet complete.
		stats.Skipped++
		return nil
	}

	hash := HashBytes(content)
	if !s.manifest.IsFileChanged(parsed.Raw, hash) {
		stats.Skipped++
		return nil
	}

	info, err := os.Stat(abs)
	modTime := time.Now()
	size := int64(len(content))
	if err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	item := WorkItem{
		Kind:    parsed.Kind,
		Scope:   parsed.ScopeName,
		Name:    parsed.EntityName,
		Group:   parsed.GroupName,
		Owner:   parsed.OwnerCodename,
		Content: content,
		Path:    parsed.Raw,
		Hash:    hash,
		Size:    size,
		ModTime: modTime,
	}

	ref, err := s.ImportItem(ctx, item)
	if err != nil {
		return err
	}

	entry := manifest.Entry{
		Path:        item.Path,
		ContentHash: item.Hash,
		SizeBytes:   item.Size,
		FileModTime: item.ModTime,
		LastSynced:  time.Now(),
		Direction:   manifest.ToStore,
		EntityKind:  ref.Kind,
		EntityID:    ref.ID,
		ScopeID:     ref.ScopeID,
		ModMarker:   ref.Marker,
	}
	if err := s.manifest.RecordSync(entry); err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}

	stats.Imported++
	return nil
}
