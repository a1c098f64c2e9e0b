package router

import (
	"path"
	"strings"
)

// TargetKind classifies what a route target serves.
type TargetKind int

const (
	// KindStatic serves file bytes as-is (images, CSS, pre-rendered HTML).
	KindStatic TargetKind = iota

	// KindDocument renders a markdown document through a layout.
	KindDocument

	// KindHandler executes a Lua handler module.
	KindHandler
)

// String returns the kind name for logging.
func (k TargetKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDocument:
		return "document"
	case KindHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Filesystem conventions recognized by the builder.
const (
	// HandlerExt marks executable handler modules.
	HandlerExt = ".lua"

	// DocumentExt marks markdown documents.
	DocumentExt = ".md"

	// HookFile is the reserved per-directory middleware module name.
	HookFile = "_hook.lua"

	// ErrorFile is the reserved per-directory error handler module name.
	ErrorFile = "_error.lua"

	// paramKey is the children-map key reserved for the parametric child.
	// At most one parametric child may exist per entry.
	paramKey = "[]"
)

// segment is the classification of a single filesystem entry name.
type segment struct {
	// hidden entries (leading underscore) are excluded from routing,
	// subtree included.
	hidden bool

	// index is true for index.* files, which supply the target of their
	// containing directory instead of becoming a child entry.
	index bool

	// param is the parameter name for bracketed names ([id] → "id").
	param string

	// subtree is true when the name carries a trailing "+" before the
	// extension. Only meaningful for handler-kind targets and handler
	// index files; the builder ignores it elsewhere.
	subtree bool

	// kind is the target kind derived from the extension.
	kind TargetKind

	// base is the URL segment name: extension stripped for recognized
	// kinds, any trailing "+" stripped, brackets kept for display.
	base string
}

// classify determines the routing role of a filesystem entry name.
// Directories carry no extension or subtree semantics; their names are
// either literal or parametric segments.
func classify(name string, isDir bool) segment {
	if strings.HasPrefix(name, "_") {
		return segment{hidden: true}
	}

	if isDir {
		s := segment{base: name}
		if p, ok := paramName(name); ok {
			s.param = p
		}
		return s
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	s := segment{}
	switch ext {
	case HandlerExt:
		s.kind = KindHandler
	case DocumentExt:
		s.kind = KindDocument
	default:
		s.kind = KindStatic
	}

	if strings.HasSuffix(stem, "+") {
		s.subtree = true
		stem = strings.TrimSuffix(stem, "+")
	}

	if stem == "index" {
		s.index = true
		return s
	}

	s.base = stem
	if p, ok := paramName(stem); ok {
		s.param = p
	}
	return s
}

// paramName extracts the parameter name from a bracketed segment.
// A valid parametric name is a single pair of brackets wrapping a
// non-empty string that contains no slash or nested bracket.
func paramName(s string) (string, bool) {
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if inner == "" || strings.ContainsAny(inner, "[]/") {
		return "", false
	}
	return inner, true
}

// recognized reports whether the extension maps to a non-static target
// kind, i.e. whether the file participates in clean-URL naming.
func recognized(ext string) bool {
	return ext == HandlerExt || ext == DocumentExt
}
