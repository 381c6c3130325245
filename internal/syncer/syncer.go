package syncer

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
)

// scopeCacheTTL bounds how long a scope name -> id mapping is reused
// before hitting the store again.
const scopeCacheTTL = 30 * time.Second

// syncer implements the Syncer interface.
type syncer struct {
	store    *store.Store
	manifest manifest.Manifest
	root     string
	logger   *log.Logger

	scopeMu    sync.Mutex
	scopeIDs   map[string]int64
	scopeFetch map[string]time.Time
}

// New creates a Syncer for the workspace rooted at root.
//
// The store must be open with its schema initialized. If logger is nil, a
// default logger writing to stderr is used.
func New(st *store.Store, mf manifest.Manifest, root string, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		store:      st,
		manifest:   mf,
		root:       root,
		logger:     logger,
		scopeIDs:   make(map[string]int64),
		scopeFetch: make(map[string]time.Time),
	}
}

// scopeID resolves a scope name with a short-lived cache. Resolution misses
// are not cached: an unknown scope stays a hard error until it exists.
func (s *syncer) scopeID(ctx context.Context, name string) (int64, error) {
	s.scopeMu.Lock()
	if id, ok := s.scopeIDs[name]; ok {
		if time.Since(s.scopeFetch[name]) < scopeCacheTTL {
			s.scopeMu.Unlock()
			return id, nil
		}
		delete(s.scopeIDs, name)
		delete(s.scopeFetch, name)
	}
	s.scopeMu.Unlock()

	id, err := s.store.ScopeID(ctx, name)
	if err != nil {
		return 0, err
	}

	s.scopeMu.Lock()
	s.scopeIDs[name] = id
	s.scopeFetch[name] = time.Now()
	s.scopeMu.Unlock()

	return id, nil
}
