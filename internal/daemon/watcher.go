package daemon

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/syncer"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/workspace"
)

// WatcherState tracks the watcher lifecycle:
// Stopped -> Starting -> Running <-> Paused -> Stopping -> Stopped.
type WatcherState int32

const (
	// StateStopped is the initial and final state.
	StateStopped WatcherState = iota
	// StateStarting covers directory registration before events flow.
	StateStarting
	// StateRunning means events are being accepted and queued.
	StateRunning
	// StatePaused means events are observed but dropped; used during bulk
	// exports so disk writes cannot re-enter the queue.
	StatePaused
	// StateStopping covers teardown.
	StateStopping
)

// String returns a human-readable representation of the state.
func (s WatcherState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Watcher bridges OS filesystem notifications into the work queue.
//
// The notification goroutines only ever touch the debounce table and the
// queue (plus a bounded local disk read); everything blocking or store-bound
// happens downstream in the coordinator.
type Watcher struct {
	root     string
	exclude  []string // absolute path prefixes never tracked
	manifest manifest.Manifest
	queue    *workQueue
	debounce *debouncer
	logger   *log.Logger

	mu      sync.Mutex
	state   WatcherState
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the workspace rooted at root.
//
// excludePaths are absolute paths (typically the manifest's directory)
// whose events are ignored by explicit rule: the manifest must never
// produce a work item for itself.
func NewWatcher(root string, mf manifest.Manifest, q *workQueue, window time.Duration, excludePaths []string, logger *log.Logger) (*Watcher, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}

	exclude := make([]string, 0, len(excludePaths))
	for _, p := range excludePaths {
		if abs, err := filepath.Abs(p); err == nil {
			exclude = append(exclude, abs)
		}
	}

	return &Watcher{
		root:     absRoot,
		exclude:  exclude,
		manifest: mf,
		queue:    q,
		debounce: newDebouncer(window),
		logger:   logger,
		state:    StateStopped,
	}, nil
}

// Start registers the workspace tree and begins queueing accepted changes.
// Returns an error if the watcher is not stopped.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStopped {
		return fmt.Errorf("watcher is %s, must be stopped to start", w.state)
	}
	w.state = StateStarting

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.state = StateStopped
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := w.addRecursive(fsw, w.root); err != nil {
		_ = fsw.Close()
		w.state = StateStopped
		return err
	}

	w.watcher = fsw
	w.done = make(chan struct{})
	w.state = StateRunning

	w.wg.Add(1)
	go w.processEvents(fsw, w.done)

	w.logger.Printf("Watching: %s", w.root)
	return nil
}

// addRecursive registers dir and every non-excluded subdirectory.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Printf("WARNING: walk error at %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.isExcluded(path) || (path != dir && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Pause suspends ingestion. Events observed while paused are dropped and
// never replayed: files an export just wrote are correct by construction,
// so missing their events is safe. Pausing a non-running watcher is a no-op.
func (w *Watcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRunning {
		w.state = StatePaused
		w.logger.Printf("Watcher paused")
	}
}

// Resume re-enables ingestion after Pause. No-op unless paused.
func (w *Watcher) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StatePaused {
		w.state = StateRunning
		w.logger.Printf("Watcher resumed")
	}
}

// Stop stops the OS observer and releases its goroutine. It blocks until
// the event loop has exited. Stopping an already-stopped watcher is a
// no-op, never an error.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state == StateStopped || w.state == StateStopping {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopping
	fsw := w.watcher
	done := w.done
	w.mu.Unlock()

	close(done)
	if err := fsw.Close(); err != nil {
		w.logger.Printf("WARNING: error closing fsnotify watcher: %v", err)
	}
	w.wg.Wait()

	w.mu.Lock()
	w.watcher = nil
	w.state = StateStopped
	w.mu.Unlock()

	w.logger.Printf("Watcher stopped")
	return nil
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// processEvents is the event loop bridging fsnotify into the queue.
func (w *Watcher) processEvents(fsw *fsnotify.Watcher, done chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

// handleEvent applies the filter/debounce/hash/route pipeline to one raw
// filesystem event and, only for a genuine content change, queues a work
// item. It must stay short and non-blocking beyond the local disk read.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if w.isExcluded(path) || isIgnoredName(filepath.Base(path)) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return // raced with a delete or rename; the next event resolves it
	}

	if info.IsDir() {
		// New directories extend the recursive watch. Registration is not
		// debounced; files created inside will produce their own events.
		if event.Has(fsnotify.Create) && w.State() != StateStopping {
			if err := w.addRecursive(fsw, path); err != nil {
				w.logger.Printf("WARNING: %v", err)
			}
		}
		return
	}

	if w.State() != StateRunning {
		return // paused or shutting down: drop, never replay
	}

	// Editors commonly emit a transient empty write during atomic save;
	// treat zero-byte files as not-yet-complete.
	if info.Size() == 0 {
		return
	}

	if !w.debounce.Accept(path) {
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	parsed := workspace.Parse(rel)
	if parsed.Kind == workspace.KindUnrecognized {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Printf("WARNING: failed to read %s: %v", rel, err)
		return
	}
	if len(content) == 0 {
		return
	}

	hash := syncer.HashBytes(content)
	if !w.manifest.IsFileChanged(rel, hash) {
		return // no-op change, e.g. re-detection of our own export
	}

	item := syncer.WorkItem{
		Kind:    parsed.Kind,
		Scope:   parsed.ScopeName,
		Name:    parsed.EntityName,
		Group:   parsed.GroupName,
		Owner:   parsed.OwnerCodename,
		Content: content,
		Path:    rel,
		Hash:    hash,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	if !w.queue.Push(item) {
		w.logger.Printf("WARNING: queue closed, dropping change for %s", rel)
		return
	}
	w.logger.Printf("Queued change: %s", rel)
}

// isExcluded reports whether path falls under an excluded prefix.
func (w *Watcher) isExcluded(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range w.exclude {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// isIgnoredName filters dotfiles and common editor temp/swap/backup
// artifacts.
func isIgnoredName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "#") {
		return true
	}
	if strings.HasSuffix(name, "~") {
		return true
	}
	switch filepath.Ext(name) {
	case ".swp", ".swx", ".tmp", ".bak", ".orig":
		return true
	}
	return false
}
