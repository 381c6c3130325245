package manifest

import "sync"

// memoryManifest implements Manifest using an in-memory map.
// Useful for tests or when persistence is not needed.
type memoryManifest struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an in-memory manifest.
func NewMemory() Manifest {
	return &memoryManifest{
		entries: make(map[string]Entry),
	}
}

// IsFileChanged implements Manifest.IsFileChanged.
func (m *memoryManifest) IsFileChanged(path, hash string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	if !ok {
		return true
	}
	return e.ContentHash != hash
}

// IsStoreChanged implements Manifest.IsStoreChanged.
func (m *memoryManifest) IsStoreChanged(path string, marker int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	if !ok || e.ModMarker == 0 {
		return true
	}
	return marker > e.ModMarker
}

// Get implements Manifest.Get.
func (m *memoryManifest) Get(path string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	return e, ok
}

// RecordSync implements Manifest.RecordSync.
func (m *memoryManifest) RecordSync(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.Path] = e
	return nil
}

// Delete implements Manifest.Delete.
func (m *memoryManifest) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, path)
	return nil
}

// All implements Manifest.All.
func (m *memoryManifest) All() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	return entries, nil
}

// Close implements Manifest.Close.
func (m *memoryManifest) Close() error {
	return nil
}
