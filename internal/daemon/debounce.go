package daemon

import (
	"sync"
	"time"
)

// defaultDebounceWindow collapses bursts of duplicate OS events for one
// logical edit into a single accepted event.
const defaultDebounceWindow = 500 * time.Millisecond

// pruneThreshold caps the debounce table before stale paths are swept.
const pruneThreshold = 4096

// debouncer is the per-path leading-edge debounce table owned exclusively
// by the watcher. It is safe against concurrent OS-event goroutines.
type debouncer struct {
	mu           sync.Mutex
	window       time.Duration
	lastAccepted map[string]time.Time

	// now is overridable in tests.
	now func() time.Time
}

// newDebouncer creates a debounce table with the given window.
// A non-positive window selects the default.
func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = defaultDebounceWindow
	}
	return &debouncer{
		window:       window,
		lastAccepted: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Accept reports whether an event for path should be processed. The first
// event for a path is accepted immediately; later events are rejected until
// the window has elapsed since the last accepted one.
func (d *debouncer) Accept(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastAccepted[path]; ok && now.Sub(last) < d.window {
		return false
	}

	if len(d.lastAccepted) >= pruneThreshold {
		d.prune(now)
	}

	d.lastAccepted[path] = now
	return true
}

// prune drops entries old enough to no longer influence Accept.
// Caller holds the lock.
func (d *debouncer) prune(now time.Time) {
	for p, last := range d.lastAccepted {
		if now.Sub(last) >= d.window {
			delete(d.lastAccepted, p)
		}
	}
}
