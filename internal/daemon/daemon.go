// Package daemon wires the watcher, queue, coordinator, and store into the
// long-running synchronization process.
//
// The pipeline is strictly single-consumer: the watcher produces work items
// in filesystem-event order, the queue preserves that order, and one
// coordinator goroutine applies them to the store. Exports pause the watcher
// so the files the exporter writes do not loop back in as change events.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/dashboard"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/manifest"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/notify"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/syncer"
)

// stateDirName holds the store and manifest inside the workspace root.
// It starts with a dot so the watcher never descends into it.
const stateDirName = ".themesync"

// Config controls daemon construction. Zero values take defaults where
// noted; Root is required.
type Config struct {
	// Root is the workspace directory to watch. Required.
	Root string

	// StorePath is the SQLite database path.
	// Defaults to <root>/.themesync/store.db.
	StorePath string

	// ManifestPath is the bbolt manifest path.
	// Defaults to <root>/.themesync/manifest.db.
	ManifestPath string

	// DebounceWindow collapses editor event bursts per path.
	// Defaults to 500ms.
	DebounceWindow time.Duration

	// ExcludePaths are additional directories the watcher skips.
	ExcludePaths []string

	// InitialImport runs a full workspace import before watching starts.
	InitialImport bool

	// NotifyEndpoint, when set, receives a POST after each applied item
	// so the consuming application can invalidate its caches.
	NotifyEndpoint string

	// NotifyTimeout bounds each notification request. Defaults to 10s.
	NotifyTimeout time.Duration

	// DashboardAddr, when set, serves the WebSocket activity feed.
	DashboardAddr string

	// Logger receives all daemon output. Defaults to stderr.
	Logger *log.Logger
}

// DefaultConfig returns a Config for the given workspace root with all
// optional features disabled.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		DebounceWindow: defaultDebounceWindow,
		NotifyTimeout:  notify.DefaultTimeout,
	}
}

// Daemon owns the full sync pipeline and the store/manifest handles
// behind it.
type Daemon struct {
	cfg    Config
	logger *log.Logger

	store    *store.Store
	manifest manifest.Manifest
	syncer   syncer.Syncer

	queue   *workQueue
	watcher *Watcher
	coord   *Coordinator
	dash    *dashboard.Server

	coordDone chan struct{}
	started   atomic.Bool
	stopOnce  sync.Once
	stopErr   error
}

// New opens the store and manifest and assembles the pipeline. The daemon
// does not watch or consume until Run is called.
func New(cfg Config) (*Daemon, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("daemon: workspace root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("daemon: resolve root: %w", err)
	}
	cfg.Root = root

	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = defaultDebounceWindow
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = notify.DefaultTimeout
	}

	stateDir := filepath.Join(root, stateDirName)
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(stateDir, "store.db")
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = filepath.Join(stateDir, "manifest.db")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ManifestPath), 0o755); err != nil {
		return nil, fmt.Errorf("daemon: create state dir: %w", err)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: init schema: %w", err)
	}

	mf, err := manifest.Open(cfg.ManifestPath, cfg.Logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: open manifest: %w", err)
	}

	sy := syncer.New(st, mf, root, cfg.Logger)
	q := newWorkQueue()

	// The state dir is dot-prefixed and already skipped, but the store and
	// manifest may be configured outside it.
	excludes := append([]string{
		filepath.Dir(cfg.StorePath),
		filepath.Dir(cfg.ManifestPath),
	}, cfg.ExcludePaths...)

	w, err := NewWatcher(root, mf, q, cfg.DebounceWindow, excludes, cfg.Logger)
	if err != nil {
		_ = mf.Close()
		_ = st.Close()
		return nil, fmt.Errorf("daemon: create watcher: %w", err)
	}

	var notifier notify.Notifier
	if cfg.NotifyEndpoint != "" {
		notifier = notify.NewHTTP(cfg.NotifyEndpoint, cfg.NotifyTimeout, cfg.Logger)
	} else {
		notifier = notify.NewNop()
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    cfg.Logger,
		store:     st,
		manifest:  mf,
		syncer:    sy,
		queue:     q,
		watcher:   w,
		coordDone: make(chan struct{}),
	}

	if cfg.DashboardAddr != "" {
		d.dash = dashboard.NewServer(cfg.DashboardAddr, cfg.Logger)
	}

	d.coord = NewCoordinator(q, sy, mf, notifier, d.onSynced, cfg.Logger)
	return d, nil
}

// onSynced publishes applied items to the dashboard feed, followed by
// refreshed store statistics. Runs on the coordinator goroutine, so the
// counts query is serialized with the write it reflects.
func (d *Daemon) onSynced(item syncer.WorkItem, ref syncer.EntityRef) {
	if d.dash == nil {
		return
	}
	d.dash.PublishEntitySynced(dashboard.EntitySyncedData{
		Kind:     item.Kind.String(),
		Scope:    item.Scope,
		Owner:    item.Owner,
		Name:     item.Name,
		Path:     item.Path,
		RecordID: ref.ID,
	})
	d.publishStats()
}

// publishStats broadcasts current store counts to the dashboard.
func (d *Daemon) publishStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := d.store.Counts(ctx)
	if err != nil {
		d.logger.Printf("WARNING: failed to read store counts: %v", err)
		return
	}
	d.dash.PublishStats(dashboard.StatsData{
		Scopes:              counts.Scopes,
		TemplateMasters:     counts.TemplateMasters,
		TemplateOverrides:   counts.TemplateOverrides,
		StylesheetMasters:   counts.StylesheetMasters,
		StylesheetOverrides: counts.StylesheetOverrides,
		PluginFragments:     counts.PluginFragments,
	})
}

// Run starts the pipeline and blocks until ctx is cancelled, then shuts
// down. The in-flight work item, if any, is allowed to finish.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.InitialImport {
		stats, err := d.syncer.FullImport(ctx)
		if err != nil {
			return fmt.Errorf("daemon: initial import: %w", err)
		}
		d.logger.Printf("initial import: %d imported, %d skipped, %d failed",
			stats.Imported, stats.Skipped, stats.Failed)
	}

	if d.dash != nil {
		if err := d.dash.Start(); err != nil {
			return fmt.Errorf("daemon: start dashboard: %w", err)
		}
	}

	if err := d.watcher.Start(); err != nil {
		return fmt.Errorf("daemon: start watcher: %w", err)
	}

	d.started.Store(true)
	go func() {
		defer close(d.coordDone)
		d.coord.Run(ctx)
	}()

	d.logger.Printf("watching %s", d.cfg.Root)
	<-ctx.Done()
	return d.Stop()
}

// Stop tears the pipeline down in dependency order. Safe to call more than
// once and concurrently with Run returning.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Printf("watcher stop: %v", err)
		}

		// Closing the queue lets the coordinator drain what the watcher
		// already accepted, then exit.
		d.queue.Close()
		if d.started.Load() {
			<-d.coordDone
		}

		if d.dash != nil {
			if err := d.dash.Stop(); err != nil {
				d.logger.Printf("dashboard stop: %v", err)
			}
		}

		if err := d.manifest.Close(); err != nil {
			d.stopErr = fmt.Errorf("daemon: close manifest: %w", err)
		}
		if err := d.store.Close(); err != nil && d.stopErr == nil {
			d.stopErr = fmt.Errorf("daemon: close store: %w", err)
		}
		d.logger.Printf("stopped")
	})
	return d.stopErr
}

// ExportScope writes the scope's effective view to the workspace with the
// watcher paused, so exported files do not re-enter the queue.
func (d *Daemon) ExportScope(ctx context.Context, scope string) (syncer.ExportStats, error) {
	d.watcher.Pause()
	defer d.watcher.Resume()

	stats, err := d.syncer.ExportScope(ctx, scope)
	if err == nil && d.dash != nil {
		d.dash.PublishExportComplete(dashboard.ExportCompleteData{
			Scope:   scope,
			Written: stats.Written,
			Skipped: stats.Skipped,
			Failed:  stats.Failed,
		})
	}
	return stats, err
}

// FullImport walks the workspace and imports changed files.
func (d *Daemon) FullImport(ctx context.Context) (syncer.ImportStats, error) {
	return d.syncer.FullImport(ctx)
}

// Reconcile drops manifest entries that no longer correspond to a file on
// disk or a record in the store.
func (d *Daemon) Reconcile(ctx context.Context) (int, error) {
	return d.syncer.Reconcile(ctx)
}

// Store exposes the underlying store for CLI status queries.
func (d *Daemon) Store() *store.Store {
	return d.store
}

// DashboardAddr returns the dashboard's bound listen address, or "" when
// the dashboard is disabled or not yet started.
func (d *Daemon) DashboardAddr() string {
	if d.dash == nil {
		return ""
	}
	return d.dash.Addr()
}

// QueueLen reports how many accepted items await the coordinator.
func (d *Daemon) QueueLen() int {
	return d.queue.Len()
}
