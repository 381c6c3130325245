package manifest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketEntries = []byte("entries") // path -> Entry JSON
	bucketMeta    = []byte("meta")    // schema bookkeeping
	keyVersion    = []byte("schema_version")
)

// schemaVersion is bumped when the Entry encoding changes incompatibly.
// A mismatch is treated like corruption: the old file is moved aside.
const schemaVersion = "1"

// boltManifest implements Manifest on a bbolt file.
type boltManifest struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the manifest file at path.
//
// Corruption or an unreadable file is never fatal: the damaged file is
// renamed aside and an empty manifest is opened in its place, which forces
// a conservative full re-sync ("all paths unknown").
func Open(path string, logger *log.Logger) (Manifest, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[manifest] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	db, err := openChecked(path)
	if err != nil {
		logger.Printf("WARNING: manifest unusable (%v), starting empty", err)
		aside := path + ".corrupt"
		_ = os.Remove(aside)
		if renameErr := os.Rename(path, aside); renameErr != nil && !os.IsNotExist(renameErr) {
			return nil, fmt.Errorf("failed to move corrupt manifest aside: %w", renameErr)
		}
		db, err = openChecked(path)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate manifest: %w", err)
		}
	}

	return &boltManifest{db: db, path: path}, nil
}

// openChecked opens the bbolt file, ensures buckets exist, and validates
// the schema version marker.
func openChecked(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if v := meta.Get(keyVersion); v == nil {
			return meta.Put(keyVersion, []byte(schemaVersion))
		} else if string(v) != schemaVersion {
			return fmt.Errorf("manifest schema version %q, want %q", v, schemaVersion)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the location of the manifest file on disk.
func (m *boltManifest) Path() string {
	return m.path
}

// IsFileChanged implements Manifest.IsFileChanged.
func (m *boltManifest) IsFileChanged(path, hash string) bool {
	e, ok := m.Get(path)
	if !ok {
		return true
	}
	return e.ContentHash != hash
}

// IsStoreChanged implements Manifest.IsStoreChanged.
func (m *boltManifest) IsStoreChanged(path string, marker int64) bool {
	e, ok := m.Get(path)
	if !ok {
		return true
	}
	if e.ModMarker == 0 {
		return true
	}
	return marker > e.ModMarker
}

// Get implements Manifest.Get.
func (m *boltManifest) Get(path string) (Entry, bool) {
	var (
		entry Entry
		found bool
	)
	_ = m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			// A single undecodable record behaves like an unknown path,
			// which forces a re-sync of just that file.
			return nil
		}
		found = true
		return nil
	})
	return entry, found
}

// RecordSync implements Manifest.RecordSync.
func (m *boltManifest) RecordSync(e Entry) error {
	if e.Path == "" {
		return fmt.Errorf("manifest entry requires a path")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest entry: %w", err)
	}

	err = m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(e.Path), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", e.Path, err)
	}
	return nil
}

// Delete implements Manifest.Delete.
func (m *boltManifest) Delete(path string) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("failed to delete manifest entry %s: %w", path, err)
	}
	return nil
}

// All implements Manifest.All.
func (m *boltManifest) All() ([]Entry, error) {
	var entries []Entry
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil // skip undecodable records
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list manifest entries: %w", err)
	}
	return entries, nil
}

// Close implements Manifest.Close.
func (m *boltManifest) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
