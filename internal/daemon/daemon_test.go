package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/CortaLabs/MyBB-Playground-sub002/internal/dashboard"
	"github.com/CortaLabs/MyBB-Playground-sub002/internal/store"
)

func startTestDaemon(t *testing.T, cfg Config) (*Daemon, context.CancelFunc, chan error) {
	t.Helper()

	cfg.Logger = quietLogger()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not shut down")
		}
	})
	return d, cancel, errCh
}

func waitForOverride(t *testing.T, st *store.Store, scope, name string) *store.TemplateOverride {
	t.Helper()

	ctx := context.Background()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		scopeID, err := st.ScopeID(ctx, scope)
		if err == nil {
			ov, err := st.GetTemplateOverride(ctx, scopeID, name)
			if err == nil {
				return ov
			}
			if !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("GetTemplateOverride failed: %v", err)
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("override %s/%s never appeared in the store", scope, name)
	return nil
}

func TestDaemonEndToEndEditReachesStore(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "template_sets/default/global"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig(root)
	cfg.DebounceWindow = 20 * time.Millisecond
	d, _, _ := startTestDaemon(t, cfg)

	ctx := context.Background()
	if _, err := d.Store().CreateScope(ctx, "default"); err != nil {
		t.Fatalf("CreateScope failed: %v", err)
	}

	// Give the watcher a beat to be fully registered.
	time.Sleep(100 * time.Millisecond)

	writeWorkspaceFile(t, root, "template_sets/default/global/header.html", "<p>live edit</p>")

	ov := waitForOverride(t, d.Store(), "default", "header")
	if ov.Content != "<p>live edit</p>" {
		t.Errorf("unexpected content %q", ov.Content)
	}

	// A second edit updates the same override in place.
	writeWorkspaceFile(t, root, "template_sets/default/global/header.html", "<p>second edit</p>")

	deadline := time.Now().Add(10 * time.Second)
	for {
		cur := waitForOverride(t, d.Store(), "default", "header")
		if cur.Content == "<p>second edit</p>" {
			if cur.ID != ov.ID {
				t.Errorf("expected override id %d preserved, got %d", ov.ID, cur.ID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second edit never reached the store")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestDaemonInitialImport(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "template_sets/default/global/header.html", "<p>preexisting</p>")

	// The scope must exist first, so prepare the store before the daemon
	// performs its startup import.
	cfg := DefaultConfig(root)
	cfg.StorePath = filepath.Join(root, stateDirName, "store.db")
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.InitSchema(); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateScope(context.Background(), "default"); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	cfg.InitialImport = true
	d, _, _ := startTestDaemon(t, cfg)

	ov := waitForOverride(t, d.Store(), "default", "header")
	if ov.Content != "<p>preexisting</p>" {
		t.Errorf("unexpected content %q", ov.Content)
	}
}

func TestDaemonExportDoesNotFeedBack(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "template_sets/default/global"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig(root)
	cfg.DebounceWindow = 20 * time.Millisecond
	d, _, _ := startTestDaemon(t, cfg)

	ctx := context.Background()
	if _, err := d.Store().CreateScope(ctx, "default"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	writeWorkspaceFile(t, root, "template_sets/default/global/header.html", "<p>v1</p>")
	waitForOverride(t, d.Store(), "default", "header")

	stats, err := d.ExportScope(ctx, "default")
	if err != nil {
		t.Fatalf("ExportScope failed: %v", err)
	}
	if stats.Failed != 0 {
		t.Errorf("export reported %d failures", stats.Failed)
	}

	// The export's own disk writes must not re-enter the pipeline.
	time.Sleep(500 * time.Millisecond)
	if n := d.QueueLen(); n != 0 {
		t.Errorf("expected empty queue after export, found %d items", n)
	}
}

func TestDaemonPublishesDashboardFeed(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "template_sets/default/global"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig(root)
	cfg.DebounceWindow = 20 * time.Millisecond
	cfg.DashboardAddr = "127.0.0.1:0"
	d, _, _ := startTestDaemon(t, cfg)

	ctx := context.Background()
	if _, err := d.Store().CreateScope(ctx, "default"); err != nil {
		t.Fatal(err)
	}

	// The dashboard binds inside Run; wait for a dialable address.
	var conn *websocket.Conn
	deadline := time.Now().Add(5 * time.Second)
	for conn == nil {
		if time.Now().After(deadline) {
			t.Fatal("dashboard never became dialable")
		}
		dialCtx, cancel := context.WithTimeout(ctx, time.Second)
		c, _, err := websocket.Dial(dialCtx, "ws://"+d.DashboardAddr()+"/ws", nil)
		cancel()
		if err == nil {
			conn = c
		} else {
			time.Sleep(25 * time.Millisecond)
		}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	time.Sleep(100 * time.Millisecond)
	writeWorkspaceFile(t, root, "template_sets/default/global/header.html", "<p>hi</p>")

	// One applied item produces an entity_synced message followed by a
	// stats snapshot reflecting the new override.
	var sawSynced, sawStats bool
	for !sawSynced || !sawStats {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			t.Fatalf("feed read failed (synced=%v stats=%v): %v", sawSynced, sawStats, err)
		}

		var msg dashboard.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		switch msg.Type {
		case dashboard.MessageTypeEntitySynced:
			var ev dashboard.EntitySyncedData
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("entity data unmarshal failed: %v", err)
			}
			if ev.Name != "header" || ev.Scope != "default" {
				t.Errorf("unexpected entity event: %+v", ev)
			}
			sawSynced = true
		case dashboard.MessageTypeStats:
			var stats dashboard.StatsData
			if err := json.Unmarshal(msg.Data, &stats); err != nil {
				t.Fatalf("stats data unmarshal failed: %v", err)
			}
			if stats.TemplateOverrides != 1 || stats.Scopes != 1 {
				t.Errorf("unexpected stats: %+v", stats)
			}
			sawStats = true
		}
	}
}

func TestDaemonStopIdempotent(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(root)
	cfg.Logger = quietLogger()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := d.Stop(); err != nil {
		t.Errorf("repeat Stop failed: %v", err)
	}
}

func TestDaemonRequiresRoot(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing root")
	}
}
