package daemon

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/notify"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/syncer"
)

// itemTimeout bounds a single store write so shutdown cannot hang on a
// wedged connection.
const itemTimeout = 30 * time.Second

// SyncedFunc observes each successfully applied work item. Used by the
// daemon to feed the dashboard; must be fast and non-blocking.
type SyncedFunc func(item syncer.WorkItem, ref syncer.EntityRef)

// Coordinator is the single logical consumer of the work queue.
//
// It drains items strictly in arrival order, one at a time, and performs
// all store writes and manifest mutations on its own goroutine. That total
// ordering is the engine's concurrency-safety mechanism: no two writes ever
// race, at the cost of serialized throughput. No locks are needed here
// because there is only ever one caller.
type Coordinator struct {
	queue    *workQueue
	syncer   syncer.Syncer
	manifest manifest.Manifest
	notifier notify.Notifier
	onSynced SyncedFunc
	logger   *log.Logger
}

// NewCoordinator creates a coordinator draining q.
// notifier may be nil (no refresh signals); onSynced may be nil.
func NewCoordinator(q *workQueue, sy syncer.Syncer, mf manifest.Manifest, notifier notify.Notifier, onSynced SyncedFunc, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[coordinator] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = notify.NewNop()
	}
	return &Coordinator{
		queue:    q,
		syncer:   sy,
		manifest: mf,
		notifier: notifier,
		onSynced: onSynced,
		logger:   logger,
	}
}

// Run processes queue items until the queue is closed and drained or ctx is
// cancelled. One item's failure is logged and never stops the loop. The
// in-flight item is always finished before returning.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		item, ok := c.queue.Pop(ctx)
		if !ok {
			c.logger.Printf("Coordinator draining complete")
			return
		}
		c.process(item)
	}
}

// process applies one work item: import, record the sync, then hand the
// refresh signal off to the background notifier.
func (c *Coordinator) process(item syncer.WorkItem) {
	// The item runs under its own deadline, detached from Run's context,
	// so cancellation finishes the current item instead of abandoning a
	// half-applied write.
	ctx, cancel := context.WithTimeout(context.Background(), itemTimeout)
	defer cancel()

	ref, err := c.syncer.ImportItem(ctx, item)
	if err != nil {
		c.logger.Printf("ERROR: failed to sync %s: %v", item.Path, err)
		return
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
	if err := c.manifest.RecordSync(entry); err != nil {
		c.logger.Printf("ERROR: synced %s but failed to record it: %v", item.Path, err)
		return
	}

	// Fire-and-forget: a slow or failed notification must never stall the
	// next queue item.
	c.notifier.Notify(ref.Kind, itemIdentity(item))

	if c.onSynced != nil {
		c.onSynced(item, ref)
	}
}

// itemIdentity renders the notification identity key for a work item.
func itemIdentity(item syncer.WorkItem) string {
	if item.Owner != "" {
		return item.Owner + "/" + item.Name
	}
	return item.Scope + "/" + item.Name
}
