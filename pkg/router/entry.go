package router

import (
	"net/http"
	"sync/atomic"
)

// Params holds parameters extracted from a matched path, keyed by the
// bracketed segment names that captured them.
type Params map[string]string

// Proc is a fully composed request-handling procedure for a route: the
// pure target behavior wrapped in every applicable hook.
type Proc func(w http.ResponseWriter, r *http.Request, p Params) error

// ErrorProc renders an error response for a route.
type ErrorProc func(w http.ResponseWriter, r *http.Request, p Params, err error)

// Target describes what a route entry serves and from which source file.
type Target struct {
	Kind       TargetKind
	SourceFile string // absolute path on disk
}

// RouteEntry is a node in the routing tree and/or a value in one of the
// lookup maps. Entries are created only during a build pass; everything
// except the lazy caches is frozen afterwards.
type RouteEntry struct {
	// Path is the canonical absolute URL path, e.g. "/docs/[org]/[repo]".
	Path string

	// Parent is a back-reference to the containing directory entry, nil at
	// the tree root. Used for upward search of hooks and error handlers.
	Parent *RouteEntry

	// Param is the parameter name if this entry's own segment is
	// parametric, "" otherwise.
	Param string

	// Target is what this entry serves; nil for pure directories that
	// exist only to hold children.
	Target *Target

	// HandleSubtree marks a subtree wildcard: the entry also matches
	// arbitrarily deep paths below its own.
	HandleSubtree bool

	// Hook is the absolute path of the directory's middleware module,
	// "" when absent. Only set on directory-shaped entries.
	Hook string

	// ErrorHandler is the absolute path of the directory's error handler
	// module, "" when absent.
	ErrorHandler string

	// Children maps child segment keys to child entries. The parametric
	// child, of which there is at most one, is keyed by the reserved
	// marker rather than its name.
	Children map[string]*RouteEntry

	// reachable is precomputed by the Matcher: true when the entry or any
	// descendant has a target. Unreachable subtrees short-circuit to
	// no-match without consuming path segments.
	reachable bool

	// Lazy caches. Populated on first request, last-writer-wins under
	// concurrent first access, discarded with the tree.
	proc      atomic.Pointer[Proc]
	errorProc atomic.Pointer[ErrorProc]
}

// child returns the literal child for a segment, or nil.
func (e *RouteEntry) child(seg string) *RouteEntry {
	return e.Children[seg]
}

// paramChild returns the parametric child, or nil.
func (e *RouteEntry) paramChild() *RouteEntry {
	return e.Children[paramKey]
}

// dynamic reports whether matching this entry depends on a parameter
// capture: its own segment is parametric or any ancestor's is. Dynamic
// entries always live in the dynamic map.
func (e *RouteEntry) dynamic() bool {
	for n := e; n != nil; n = n.Parent {
		if n.Param != "" {
			return true
		}
	}
	return false
}

// CachedProc returns the composed proc cached on this entry, or nil.
func (e *RouteEntry) CachedProc() Proc {
	if p := e.proc.Load(); p != nil {
		return *p
	}
	return nil
}

// StoreProc caches the composed proc. Concurrent duplicate computation is
// tolerated; the last writer wins.
func (e *RouteEntry) StoreProc(p Proc) {
	e.proc.Store(&p)
}

// CachedErrorProc returns the resolved error handler cached on this
// entry, or nil.
func (e *RouteEntry) CachedErrorProc() ErrorProc {
	if p := e.errorProc.Load(); p != nil {
		return *p
	}
	return nil
}

// StoreErrorProc caches the resolved error handler.
func (e *RouteEntry) StoreErrorProc(p ErrorProc) {
	e.errorProc.Store(&p)
}

// Tree is the product of one build pass: the routing tree root plus the
// two frozen lookup maps. A Tree is discarded as a unit on invalidation.
type Tree struct {
	// Root is the entry for the mount path itself.
	Root *RouteEntry

	// Static maps exact literal URL paths to entries: non-parametric,
	// non-subtree routes only.
	Static map[string]*RouteEntry

	// Dynamic maps canonical tree paths to parametric or subtree entries.
	Dynamic map[string]*RouteEntry

	// Mount is the configured mount path ("/" or "/docs").
	Mount string

	// Dir is the filesystem root the tree was built from.
	Dir string
}
