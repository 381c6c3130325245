// Package manifest provides the durable per-workspace index of tracked
// files and their last-known sync state.
//
// The manifest is the engine's change-detection memory: the watcher consults
// it to drop no-op file events, and exporters consult it to skip disk writes
// for store records that have not moved since the last sync. Only the
// coordinator writes to it.
package manifest

import "time"

// Direction records which way the last successful sync of a path went.
type Direction string

const (
	// ToStore means the workspace file was imported into the store.
	ToStore Direction = "to_store"
	// FromStore means the store record was exported to the workspace.
	FromStore Direction = "from_store"
)

// Entry is the sync state for one tracked workspace-relative path.
// A path appears at most once in a manifest.
type Entry struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	FileModTime time.Time `json:"file_mod_time"`
	LastSynced  time.Time `json:"last_synced_at"`
	Direction   Direction `json:"direction"`

	// Linked store entity identity as of the last successful sync.
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id"`
	ScopeID    int64  `json:"scope_id"`

	// ModMarker is the store-side modification marker observed at the last
	// successful sync in either direction. It is the sole basis for
	// export-side change detection.
	ModMarker int64 `json:"mod_marker"`
}

// Manifest is the durable index of tracked files.
//
// Implementations must tolerate concurrent readers; mutation is performed
// by a single writer (the coordinator).
type Manifest interface {
	// IsFileChanged reports whether the file content differs from the last
	// synced state. Unknown paths are always considered changed.
	IsFileChanged(path, hash string) bool

	// IsStoreChanged reports whether the store-side record is newer than
	// what was last observed for the path. Unknown paths, and entries with
	// no recorded marker, are always considered changed.
	IsStoreChanged(path string, marker int64) bool

	// Get returns the entry for a path, if tracked.
	Get(path string) (Entry, bool)

	// RecordSync upserts the entry for e.Path.
	RecordSync(e Entry) error

	// Delete removes the entry for a path. Deleting an untracked path is a
	// no-op.
	Delete(path string) error

	// All returns every tracked entry, in unspecified order.
	All() ([]Entry, error)

	// Close releases any underlying resources. Safe to call twice.
	Close() error
}
