// Package syncer provides the inheritance-aware import and export logic
// between the workspace filesystem and the store.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// EntityRef identifies the store record touched by an import.
type EntityRef struct {
	// Kind is the entity family ("template", "stylesheet", "plugin_fragment").
	Kind string
	// ID is the record id (override id, or fragment id).
	ID int64
	// ScopeID is the owning scope, zero for plugin fragments.
	ScopeID int64
	// Marker is the store-side modification marker after the write.
	Marker int64
}

// ExportStats reports the outcome of an ExportScope call.
type ExportStats struct {
	Written int
	Skipped int
	Failed  int
}

// ImportStats reports the outcome of a FullImport call.
type ImportStats struct {
	Imported int
	Skipped  int
	Failed   int
}

// WorkItem is an immutable unit of pending synchronization work queued from
// the watcher to the coordinator. Content is a full snapshot, never a diff.
type WorkItem struct {
	Kind workspace.PathKind

	// Scope is the template set or theme name (templates, stylesheets).
	Scope string
	// Name is the entity name.
	Name string
	// Group is the template's group directory (templates only).
	Group string
	// Owner is the plugin codename (fragments only).
	Owner string

	Content []byte

	// File metadata captured at acceptance time, recorded in the manifest
	// after a successful import.
	Path    string
	Hash    string
	Size    int64
	ModTime time.Time
}

// Syncer performs inheritance-aware upserts against the store and the
// mirror-image export path back to the workspace.
//
// All methods are synchronous and return a result or error to their caller;
// watcher-triggered syncs go through the coordinator, which surfaces
// failures via logs only.
type Syncer interface {
	// ImportTemplate upserts the override record for (scope, name).
	// An existing override is updated in place; a new override carries the
	// master's version marker when a master exists. The group records the
	// file's workspace placement so exports reproduce the imported path.
	// An unknown scope is a reported error, not a silent no-op.
	ImportTemplate(ctx context.Context, scope, group, name, content string) (EntityRef, error)

	// ImportStylesheet follows the identical two-level shape, without a
	// version-marker concept.
	ImportStylesheet(ctx context.Context, scope, name, content string) (EntityRef, error)

	// ImportPluginFragment upserts the single global record for
	// (owner, name). Fragments have no master level.
	ImportPluginFragment(ctx context.Context, owner, name, content string) (EntityRef, error)

	// ImportItem dispatches a queued work item to the importer matching
	// its kind.
	ImportItem(ctx context.Context, item WorkItem) (EntityRef, error)

	// ExportScope writes every store entity visible in the scope to the
	// workspace, skipping files whose store record has not moved since the
	// last sync. Callers must pause the watcher for the duration.
	ExportScope(ctx context.Context, scope string) (ExportStats, error)

	// FullImport walks the workspace and imports every recognized file
	// whose content differs from its manifest entry.
	FullImport(ctx context.Context) (ImportStats, error)

	// Reconcile removes manifest entries whose file is gone from disk and
	// whose linked entity is gone from the store. Returns how many entries
	// were dropped.
	Reconcile(ctx context.Context) (int, error)
}

// HashBytes computes the content hash used for file change detection.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
