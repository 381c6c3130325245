package store

// Scope is a named grouping (template set or theme) under which override
// records are partitioned.
type Scope struct {
	ID   int64
	Name string
}

// TemplateMaster is the global default for a template name.
type TemplateMaster struct {
	Name    string
	Group   string
	Content string
	// Version is an audit/compat marker copied onto overrides at creation.
	Version  string
	Modified int64
}

// TemplateOverride shadows the master for one scope.
type TemplateOverride struct {
	ID      int64
	ScopeID int64
	Name    string
	// Group is the workspace group directory the override was imported
	// from; exports place the file back under it.
	Group   string
	Content string
	// MasterVersion is the master's version marker observed when the
	// override was created.
	MasterVersion string
	Modified      int64
}

// StylesheetMaster is the global default for a stylesheet name.
type StylesheetMaster struct {
	Name     string
	Content  string
	Modified int64
}

// StylesheetOverride shadows the master stylesheet for one scope.
type StylesheetOverride struct {
	ID       int64
	ScopeID  int64
	Name     string
	Content  string
	Modified int64
}

// PluginFragment is a plugin-owned template fragment. Fragments have no
// master level: a single global record per (owner, name).
type PluginFragment struct {
	ID       int64
	Owner    string
	Name     string
	Content  string
	Modified int64
}

// Effective is one entity as visible in a scope after inheritance
// resolution: the override when present, otherwise the master.
type Effective struct {
	Name    string
	Group   string
	Content string
	// Modified is the modification marker of whichever record won.
	Modified int64
	// Overridden reports whether an override record supplied the content.
	Overridden bool
	// RecordID identifies the winning record: the override id, or 0 when
	// the master won (masters are keyed by name, not id).
	RecordID int64
}

// Counts reports table sizes for status displays.
type Counts struct {
	Scopes              int
	TemplateMasters     int
	TemplateOverrides   int
	StylesheetMasters   int
	StylesheetOverrides int
	PluginFragments     int
}
