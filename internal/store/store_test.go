package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// setupTestStore creates a temporary store with schema initialized.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return s
}

// TestCreateScope verifies scope creation and resolution.
func TestCreateScope(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreateScope(ctx, "Default")
	if err != nil {
		t.Fatalf("CreateScope() failed: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateScope() returned zero id")
	}

	// Creating again returns the same id.
	again, err := s.CreateScope(ctx, "Default")
	if err != nil {
		t.Fatalf("second CreateScope() failed: %v", err)
	}
	if again != id {
		t.Errorf("CreateScope() id = %d, want %d", again, id)
	}

	got, err := s.ScopeID(ctx, "Default")
	if err != nil {
		t.Fatalf("ScopeID() failed: %v", err)
	}
	if got != id {
		t.Errorf("ScopeID() = %d, want %d", got, id)
	}
}

// TestScopeID_Unknown verifies unknown scopes are a hard error.
func TestScopeID_Unknown(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.ScopeID(context.Background(), "Nope")
	if !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("ScopeID() error = %v, want ErrUnknownScope", err)
	}
}

// TestUpsertTemplateOverride_Create verifies the insert branch carries the
// master's version marker.
func TestUpsertTemplateOverride_Create(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, err := s.CreateScope(ctx, "Default")
	if err != nil {
		t.Fatalf("CreateScope() failed: %v", err)
	}

	if _, err := s.UpsertTemplateMaster(ctx, "header", "Header", "<master>", "v1"); err != nil {
		t.Fatalf("UpsertTemplateMaster() failed: %v", err)
	}

	o, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<a>", "v1")
	if err != nil {
		t.Fatalf("UpsertTemplateOverride() failed: %v", err)
	}
	if o.ID == 0 {
		t.Error("override should have an id")
	}
	if o.MasterVersion != "v1" {
		t.Errorf("MasterVersion = %q, want %q", o.MasterVersion, "v1")
	}
	if o.Group != "Header" {
		t.Errorf("Group = %q, want %q", o.Group, "Header")
	}
	if o.Content != "<a>" {
		t.Errorf("Content = %q, want %q", o.Content, "<a>")
	}
	if o.Modified == 0 {
		t.Error("override should carry a modification marker")
	}
}

// TestUpsertTemplateOverride_UpdateInPlace verifies repeated upserts update
// the same record, preserving its identity.
func TestUpsertTemplateOverride_UpdateInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, _ := s.CreateScope(ctx, "Default")

	first, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<a>", "v1")
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<b>", "ignored")
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("override id changed: %d -> %d", first.ID, second.ID)
	}
	if second.Content != "<b>" {
		t.Errorf("Content = %q, want %q", second.Content, "<b>")
	}
	// The version marker is fixed at creation time.
	if second.MasterVersion != "v1" {
		t.Errorf("MasterVersion = %q, want creation-time %q", second.MasterVersion, "v1")
	}
	if second.Modified < first.Modified {
		t.Errorf("marker went backwards: %d -> %d", first.Modified, second.Modified)
	}
}

// TestListEffectiveTemplates verifies inheritance resolution:
// override wins, master fills the gaps, orphan overrides still appear.
func TestListEffectiveTemplates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, _ := s.CreateScope(ctx, "Default")
	otherID, _ := s.CreateScope(ctx, "Other")

	if _, err := s.UpsertTemplateMaster(ctx, "header", "Header", "<m-header>", "v1"); err != nil {
		t.Fatalf("master header failed: %v", err)
	}
	if _, err := s.UpsertTemplateMaster(ctx, "footer", "Footer", "<m-footer>", "v1"); err != nil {
		t.Fatalf("master footer failed: %v", err)
	}
	if _, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<o-header>", "v1"); err != nil {
		t.Fatalf("override header failed: %v", err)
	}
	// Orphan override without a master, imported from the Misc group.
	if _, err := s.UpsertTemplateOverride(ctx, scopeID, "sidebar", "Misc", "<o-sidebar>", ""); err != nil {
		t.Fatalf("override sidebar failed: %v", err)
	}
	// Another scope's override must not leak in.
	if _, err := s.UpsertTemplateOverride(ctx, otherID, "footer", "Footer", "<other>", "v1"); err != nil {
		t.Fatalf("other-scope override failed: %v", err)
	}

	effective, err := s.ListEffectiveTemplates(ctx, scopeID)
	if err != nil {
		t.Fatalf("ListEffectiveTemplates() failed: %v", err)
	}

	byName := map[string]Effective{}
	for _, e := range effective {
		byName[e.Name] = e
	}

	if len(effective) != 3 {
		t.Fatalf("got %d effective templates, want 3: %+v", len(effective), effective)
	}
	if e := byName["header"]; !e.Overridden || e.Content != "<o-header>" {
		t.Errorf("header = %+v, want overridden content", e)
	}
	if e := byName["footer"]; e.Overridden || e.Content != "<m-footer>" {
		t.Errorf("footer = %+v, want master content", e)
	}
	if e := byName["sidebar"]; !e.Overridden || e.Content != "<o-sidebar>" {
		t.Errorf("sidebar = %+v, want orphan override content", e)
	}
	// Groups follow the winning record so export paths match import paths.
	if e := byName["header"]; e.Group != "Header" {
		t.Errorf("header group = %q, want override's group", e.Group)
	}
	if e := byName["sidebar"]; e.Group != "Misc" {
		t.Errorf("sidebar group = %q, want imported group", e.Group)
	}
}

// TestRevertViaDeletion verifies deleting an override makes the master
// visible again with no explicit revert operation.
func TestRevertViaDeletion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, _ := s.CreateScope(ctx, "Default")
	if _, err := s.UpsertTemplateMaster(ctx, "header", "Header", "<master>", "v1"); err != nil {
		t.Fatalf("master failed: %v", err)
	}
	if _, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<scoped>", "v1"); err != nil {
		t.Fatalf("override failed: %v", err)
	}

	if err := s.DeleteTemplateOverride(ctx, scopeID, "header"); err != nil {
		t.Fatalf("DeleteTemplateOverride() failed: %v", err)
	}

	effective, err := s.ListEffectiveTemplates(ctx, scopeID)
	if err != nil {
		t.Fatalf("ListEffectiveTemplates() failed: %v", err)
	}
	if len(effective) != 1 || effective[0].Content != "<master>" || effective[0].Overridden {
		t.Errorf("effective = %+v, want master content after revert", effective)
	}

	// Deleting again is idempotent.
	if err := s.DeleteTemplateOverride(ctx, scopeID, "header"); err != nil {
		t.Errorf("repeated delete failed: %v", err)
	}
}

// TestStylesheetOverrides verifies the stylesheet two-level shape.
func TestStylesheetOverrides(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, _ := s.CreateScope(ctx, "Midnight")

	if _, err := s.UpsertStylesheetMaster(ctx, "global", "body{}"); err != nil {
		t.Fatalf("master failed: %v", err)
	}

	o, err := s.UpsertStylesheetOverride(ctx, scopeID, "global", "body{color:red}")
	if err != nil {
		t.Fatalf("override failed: %v", err)
	}

	again, err := s.UpsertStylesheetOverride(ctx, scopeID, "global", "body{color:blue}")
	if err != nil {
		t.Fatalf("second override failed: %v", err)
	}
	if again.ID != o.ID {
		t.Errorf("stylesheet override id changed: %d -> %d", o.ID, again.ID)
	}

	effective, err := s.ListEffectiveStylesheets(ctx, scopeID)
	if err != nil {
		t.Fatalf("ListEffectiveStylesheets() failed: %v", err)
	}
	if len(effective) != 1 || effective[0].Content != "body{color:blue}" {
		t.Errorf("effective = %+v, want overridden stylesheet", effective)
	}
}

// TestPluginFragments verifies the one-level fragment map.
func TestPluginFragments(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	f, err := s.UpsertPluginFragment(ctx, "hello_world", "hello", "<p>hi</p>")
	if err != nil {
		t.Fatalf("UpsertPluginFragment() failed: %v", err)
	}

	again, err := s.UpsertPluginFragment(ctx, "hello_world", "hello", "<p>bye</p>")
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if again.ID != f.ID {
		t.Errorf("fragment id changed: %d -> %d", f.ID, again.ID)
	}

	got, err := s.GetPluginFragment(ctx, "hello_world", "hello")
	if err != nil {
		t.Fatalf("GetPluginFragment() failed: %v", err)
	}
	if got.Content != "<p>bye</p>" {
		t.Errorf("Content = %q, want updated content", got.Content)
	}

	list, err := s.ListPluginFragments(ctx, "hello_world")
	if err != nil {
		t.Fatalf("ListPluginFragments() failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d fragments, want 1", len(list))
	}

	if err := s.DeletePluginFragment(ctx, "hello_world", "hello"); err != nil {
		t.Fatalf("DeletePluginFragment() failed: %v", err)
	}
	if _, err := s.GetPluginFragment(ctx, "hello_world", "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

// TestCounts verifies the status counters.
func TestCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	scopeID, _ := s.CreateScope(ctx, "Default")
	_, _ = s.UpsertTemplateMaster(ctx, "header", "Header", "<m>", "v1")
	_, _ = s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<o>", "v1")
	_, _ = s.UpsertPluginFragment(ctx, "hello", "frag", "<f>")

	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if c.Scopes != 1 || c.TemplateMasters != 1 || c.TemplateOverrides != 1 || c.PluginFragments != 1 {
		t.Errorf("Counts() = %+v", c)
	}
}

// TestSetClock verifies markers come from the injected clock.
func TestSetClock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var tick int64 = 100
	s.SetClock(func() int64 { tick++; return tick })

	scopeID, _ := s.CreateScope(ctx, "Default")
	o, err := s.UpsertTemplateOverride(ctx, scopeID, "header", "Header", "<a>", "")
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if o.Modified != 101 {
		t.Errorf("Modified = %d, want 101", o.Modified)
	}
}
