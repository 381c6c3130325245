// Package workspace maps workspace file paths to typed entity descriptors.
package workspace

import (
	"path"
	"path/filepath"
	"strings"
)

// PathKind identifies which entity family a workspace path belongs to.
type PathKind int

const (
	// KindUnrecognized indicates a path outside the sync grammar.
	// Callers must treat it as a silent no-op, never an error.
	KindUnrecognized PathKind = iota
	// KindTemplate indicates a template under a template set.
	KindTemplate
	// KindStylesheet indicates a stylesheet under a theme scope.
	KindStylesheet
	// KindPluginFragment indicates a plugin-scoped template fragment.
	KindPluginFragment
)

// String returns a human-readable representation of the kind.
func (k PathKind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindStylesheet:
		return "stylesheet"
	case KindPluginFragment:
		return "plugin_fragment"
	default:
		return "unrecognized"
	}
}

// Fixed top-level directories of the workspace grammar.
const (
	templateSetsDir = "template_sets"
	stylesDir       = "styles"
	pluginsDir      = "plugins"
	fragmentsSubdir = "templates"

	templateExt   = ".html"
	stylesheetExt = ".css"
)

// ParsedPath is the typed descriptor produced by Parse. It is an immutable
// value derived purely from the path string.
type ParsedPath struct {
	Kind PathKind

	// ScopeName is the template set or theme name (templates, stylesheets).
	ScopeName string
	// EntityName is the entity name with its extension stripped.
	EntityName string
	// GroupName is the template group directory (templates only).
	GroupName string
	// OwnerCodename is the owning plugin's codename (fragments only).
	OwnerCodename string

	// Raw is the original relative path as given to Parse.
	Raw string
}

// Parse classifies a workspace-relative path. It is a pure, total function:
// malformed or foreign paths yield KindUnrecognized, never an error.
//
// Grammar:
//
//	template_sets/<scope>/<group>/<name>.html   -> Template
//	styles/<scope>/<name>.css                   -> Stylesheet
//	plugins/<vis>/<codename>/templates/<n>.html -> PluginFragment
func Parse(relativePath string) ParsedPath {
	unrec := ParsedPath{Kind: KindUnrecognized, Raw: relativePath}

	clean := filepath.ToSlash(relativePath)
	clean = strings.TrimPrefix(clean, "./")
	if clean == "" || strings.HasPrefix(clean, "/") || strings.Contains(clean, "..") {
		return unrec
	}

	parts := strings.Split(clean, "/")
	for _, p := range parts {
		if p == "" {
			return unrec
		}
	}

	switch parts[0] {
	case templateSetsDir:
		if len(parts) != 4 {
			return unrec
		}
		name, ok := stripExt(parts[3], templateExt)
		if !ok {
			return unrec
		}
		return ParsedPath{
			Kind:       KindTemplate,
			ScopeName:  parts[1],
			GroupName:  parts[2],
			EntityName: name,
			Raw:        relativePath,
		}

	case stylesDir:
		if len(parts) != 3 {
			return unrec
		}
		name, ok := stripExt(parts[2], stylesheetExt)
		if !ok {
			return unrec
		}
		return ParsedPath{
			Kind:       KindStylesheet,
			ScopeName:  parts[1],
			EntityName: name,
			Raw:        relativePath,
		}

	case pluginsDir:
		if len(parts) != 5 || parts[3] != fragmentsSubdir {
			return unrec
		}
		name, ok := stripExt(parts[4], templateExt)
		if !ok {
			return unrec
		}
		return ParsedPath{
			Kind:          KindPluginFragment,
			OwnerCodename: parts[2],
			EntityName:    name,
			Raw:           relativePath,
		}
	}

	return unrec
}

// stripExt removes ext from name, requiring a non-empty stem.
func stripExt(name, ext string) (string, bool) {
	if !strings.HasSuffix(name, ext) {
		return "", false
	}
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return "", false
	}
	return stem, true
}

// TemplatePath builds the workspace-relative path for a template.
// It is the inverse of Parse for KindTemplate.
func TemplatePath(scope, group, name string) string {
	if group == "" {
		group = "ungrouped"
	}
	return path.Join(templateSetsDir, scope, group, name+templateExt)
}

// StylesheetPath builds the workspace-relative path for a stylesheet.
func StylesheetPath(scope, name string) string {
	return path.Join(stylesDir, scope, name+stylesheetExt)
}
