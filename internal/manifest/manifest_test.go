package manifest

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestManifest opens a bolt manifest in a temp directory.
func openTestManifest(t *testing.T) (Manifest, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "manifest.db")
	m, err := Open(path, quietLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	return m, path
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sampleEntry(path string) Entry {
	return Entry{
		Path:        path,
		ContentHash: "abc123",
		SizeBytes:   42,
		FileModTime: time.Now().Truncate(time.Second),
		LastSynced:  time.Now().Truncate(time.Second),
		Direction:   ToStore,
		EntityKind:  "template",
		EntityID:    7,
		ScopeID:     5,
		ModMarker:   1000,
	}
}

// TestIsFileChanged_UnknownPath verifies unknown paths are always changed.
func TestIsFileChanged_UnknownPath(t *testing.T) {
	m, _ := openTestManifest(t)

	if !m.IsFileChanged("template_sets/Default/Header/header.html", "abc") {
		t.Error("unknown path should be reported as changed")
	}
}

// TestRecordSync_RoundTrip verifies that recorded state drives change detection.
func TestRecordSync_RoundTrip(t *testing.T) {
	m, _ := openTestManifest(t)

	e := sampleEntry("template_sets/Default/Header/header.html")
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}

	if m.IsFileChanged(e.Path, "abc123") {
		t.Error("same hash should not be reported as changed")
	}
	if !m.IsFileChanged(e.Path, "different") {
		t.Error("different hash should be reported as changed")
	}

	got, ok := m.Get(e.Path)
	if !ok {
		t.Fatal("Get() did not find recorded entry")
	}
	if got.EntityID != 7 || got.ScopeID != 5 || got.Direction != ToStore {
		t.Errorf("Get() = %+v, want linked identity preserved", got)
	}
}

// TestIsStoreChanged verifies marker-based export change detection.
func TestIsStoreChanged(t *testing.T) {
	m, _ := openTestManifest(t)

	path := "styles/Midnight/global.css"
	if !m.IsStoreChanged(path, 50) {
		t.Error("unknown path should be store-changed")
	}

	e := sampleEntry(path)
	e.ModMarker = 1000
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}

	if m.IsStoreChanged(path, 1000) {
		t.Error("equal marker should not be store-changed")
	}
	if m.IsStoreChanged(path, 999) {
		t.Error("older marker should not be store-changed")
	}
	if !m.IsStoreChanged(path, 1001) {
		t.Error("newer marker should be store-changed")
	}

	// Unset marker forces a conservative re-export.
	e.ModMarker = 0
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}
	if !m.IsStoreChanged(path, 1) {
		t.Error("entry without marker should be store-changed")
	}
}

// TestRecordSync_Upsert verifies a path appears at most once.
func TestRecordSync_Upsert(t *testing.T) {
	m, _ := openTestManifest(t)

	e := sampleEntry("styles/Midnight/global.css")
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}
	e.ContentHash = "updated"
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("second RecordSync() failed: %v", err)
	}

	all, err := m.All()
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() returned %d entries, want 1", len(all))
	}
	if all[0].ContentHash != "updated" {
		t.Errorf("ContentHash = %q, want %q", all[0].ContentHash, "updated")
	}
}

// TestDelete verifies removal and idempotence.
func TestDelete(t *testing.T) {
	m, _ := openTestManifest(t)

	e := sampleEntry("plugins/public/hello/templates/hello.html")
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}
	if err := m.Delete(e.Path); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok := m.Get(e.Path); ok {
		t.Error("entry should be gone after Delete()")
	}

	// Deleting again is a no-op.
	if err := m.Delete(e.Path); err != nil {
		t.Errorf("repeated Delete() failed: %v", err)
	}
}

// TestPersistence verifies entries survive a close/reopen cycle.
func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	m, err := Open(path, quietLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	e := sampleEntry("template_sets/Default/Header/header.html")
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	m2, err := Open(path, quietLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer m2.Close()

	if m2.IsFileChanged(e.Path, "abc123") {
		t.Error("entry should survive reopen")
	}
}

// TestCorruptManifest verifies that a damaged file is never fatal: the
// engine starts with an empty manifest instead (all paths unknown).
func TestCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.db")

	if err := os.WriteFile(path, []byte("this is not a bolt database"), 0644); err != nil {
		t.Fatalf("failed to write junk file: %v", err)
	}

	m, err := Open(path, quietLogger())
	if err != nil {
		t.Fatalf("Open() on corrupt file failed: %v", err)
	}
	defer m.Close()

	if !m.IsFileChanged("anything", "hash") {
		t.Error("fresh manifest should treat all paths as changed")
	}

	// The damaged file is preserved aside for inspection.
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("expected corrupt file moved aside: %v", err)
	}
}

// TestMemoryManifest runs the core behaviors against the in-memory
// implementation used by tests elsewhere.
func TestMemoryManifest(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	e := sampleEntry("styles/Midnight/global.css")
	if err := m.RecordSync(e); err != nil {
		t.Fatalf("RecordSync() failed: %v", err)
	}
	if m.IsFileChanged(e.Path, e.ContentHash) {
		t.Error("same hash should not be changed")
	}
	if !m.IsStoreChanged(e.Path, e.ModMarker+1) {
		t.Error("newer marker should be store-changed")
	}
	if err := m.Delete(e.Path); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok := m.Get(e.Path); ok {
		t.Error("entry should be gone")
	}
}
