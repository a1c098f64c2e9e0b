// Package script loads and caches Lua handler modules.
//
// A module is referenced by a root-relative path without extension
// ("api/users", "_hook"). Loading compiles the source once, executes it in
// a module-private Lua state, and normalizes whatever the script returns
// into the closed Export union: a callable, a literal text body, or a
// renderable table. Scripts can pull in other scripts with the import
// builtin; the cache records those edges so that invalidating one file
// transitively invalidates every module that imported it.
//
// The embedding approach follows the usual gopher-lua pattern: compile to
// a FunctionProto, instantiate per state, protect all calls.
//
// An LState is not safe for concurrent use, so calls into one module are
// serialized by a per-module mutex; distinct modules run concurrently.
// The lock is held across a hook's next() callback too, which means a
// hook module shared by many routes serializes every request that passes
// through it, inner handler included. Hook chains acquire module locks
// outermost-first along one path, so the ordering is consistent and
// cannot deadlock. A per-call LState pool would lift the bottleneck if a
// hot shared hook ever warrants it.
package script

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// ErrNotFound distinguishes a missing module file from a load failure.
var ErrNotFound = errors.New("script: module not found")

// LoadError wraps a compile or execution failure for a module source.
// Routes backed by a failed module stay broken until invalidated.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("script: loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StatusError is a Lua error raised as a {status=..., message=...} table,
// carrying an explicit HTTP status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

// StatusCode returns the declared HTTP status.
func (e *StatusError) StatusCode() int { return e.Status }

// ExportKind discriminates the closed union of module export shapes.
type ExportKind int

const (
	// ExportFunc is a callable invoked with the request table.
	ExportFunc ExportKind = iota

	// ExportText is a literal string served as the response body on
	// GET/HEAD.
	ExportText

	// ExportRenderable is a table with a render function, invoked with
	// the request table and expected to return markup.
	ExportRenderable
)

// Export is a module's normalized export value. The shape ambiguity of
// "what did this script return" is confined to the one conversion in
// normalizeExport; everything downstream switches on Kind.
type Export struct {
	Kind ExportKind
	Text string

	fn *lua.LFunction
}

// Cache is an owned, per-application module cache. It maps references to
// loaded modules and absolute source paths back to references, and tracks
// reverse dependencies for transitive invalidation. No package-level
// state.
type Cache struct {
	root string

	mu         sync.Mutex
	modules    map[string]*Module
	protos     map[string]*lua.FunctionProto
	byPath     map[string]string
	dependents map[string]map[string]struct{}
	loading    map[string]bool
}

// Module is one loaded script: its normalized export plus the private Lua
// state it executes in. Calls are serialized per module; distinct modules
// run concurrently.
type Module struct {
	Ref    string
	Path   string
	Export Export

	mu sync.Mutex
	ls *lua.LState
}

// NewCache creates a module cache rooted at the given directory.
func NewCache(root string) *Cache {
	return &Cache{
		root:       root,
		modules:    make(map[string]*Module),
		protos:     make(map[string]*lua.FunctionProto),
		byPath:     make(map[string]string),
		dependents: make(map[string]map[string]struct{}),
		loading:    make(map[string]bool),
	}
}

// RefFor converts an absolute source path under the cache root to a
// module reference.
func (c *Cache) RefFor(absPath string) string {
	rel, err := filepath.Rel(c.root, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// Load returns the module for ref, loading and caching it on first use.
// A missing file reports ErrNotFound; anything else is a *LoadError.
func (c *Cache) Load(ref string) (*Module, error) {
	ref, err := normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ref)
}

// load assumes c.mu is held. Import callbacks re-enter it on the same
// goroutine, which is why the lock is taken once at the boundary.
func (c *Cache) load(ref string) (*Module, error) {
	if m, ok := c.modules[ref]; ok {
		return m, nil
	}
	if c.loading[ref] {
		return nil, &LoadError{Path: ref, Err: errors.New("import cycle")}
	}
	c.loading[ref] = true
	defer delete(c.loading, ref)

	srcPath := filepath.Join(c.root, filepath.FromSlash(ref)+".lua")
	proto, err := c.proto(ref, srcPath)
	if err != nil {
		return nil, err
	}

	L := lua.NewState()
	c.registerImport(L, ref)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, &LoadError{Path: srcPath, Err: err}
	}
	ret := L.Get(-1)
	L.Pop(1)

	// Imports resolve against cache internals that are only guarded
	// during load; a request-time import would race with other modules.
	L.SetGlobal("import", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("import is only available at module load time")
		return 0
	}))

	export, err := normalizeExport(ret)
	if err != nil {
		L.Close()
		return nil, &LoadError{Path: srcPath, Err: err}
	}

	m := &Module{Ref: ref, Path: srcPath, Export: export, ls: L}
	c.modules[ref] = m
	c.byPath[srcPath] = ref
	return m, nil
}

// proto returns the compiled chunk for ref, compiling on first use.
func (c *Cache) proto(ref, srcPath string) (*lua.FunctionProto, error) {
	if p, ok := c.protos[ref]; ok {
		return p, nil
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return nil, &LoadError{Path: srcPath, Err: err}
	}

	chunk, err := parse.Parse(strings.NewReader(string(src)), srcPath)
	if err != nil {
		return nil, &LoadError{Path: srcPath, Err: err}
	}
	proto, err := lua.Compile(chunk, srcPath)
	if err != nil {
		return nil, &LoadError{Path: srcPath, Err: err}
	}

	c.protos[ref] = proto
	c.byPath[srcPath] = ref
	return proto, nil
}

// registerImport exposes the import builtin to a module state. Importing
// compiles the referenced script (shared proto cache), runs it inside the
// importer's own state, records the dependency edge, and returns the
// script's return value.
func (c *Cache) registerImport(L *lua.LState, importer string) {
	L.SetGlobal("import", L.NewFunction(func(L *lua.LState) int {
		ref, err := normalizeRef(L.CheckString(1))
		if err != nil {
			L.RaiseError("import: %v", err)
			return 0
		}
		if c.loading[ref] {
			L.RaiseError("import %q: import cycle", ref)
			return 0
		}

		srcPath := filepath.Join(c.root, filepath.FromSlash(ref)+".lua")
		proto, err := c.proto(ref, srcPath)
		if err != nil {
			L.RaiseError("import %q: %v", ref, err)
			return 0
		}
		c.addDependency(importer, ref)

		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, 1, nil); err != nil {
			L.RaiseError("import %q: %v", ref, err)
			return 0
		}
		return 1
	}))
}

// addDependency records that importer depends on dep.
func (c *Cache) addDependency(importer, dep string) {
	set := c.dependents[dep]
	if set == nil {
		set = make(map[string]struct{})
		c.dependents[dep] = set
	}
	set[importer] = struct{}{}
}

// Invalidate drops the module loaded from absPath along with every module
// that imported it, transitively. Loaded states are left to the garbage
// collector: in-flight requests holding an old module finish against it.
func (c *Cache) Invalidate(absPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.byPath[filepath.Clean(absPath)]
	if !ok {
		return
	}
	delete(c.protos, ref)
	c.drop(ref, make(map[string]bool))
}

// drop removes one module and recurses through its dependents. Dependent
// protos stay cached: their sources did not change, only the state they
// executed a stale import into.
func (c *Cache) drop(ref string, seen map[string]bool) {
	if seen[ref] {
		return
	}
	seen[ref] = true

	delete(c.modules, ref)
	for dep := range c.dependents[ref] {
		c.drop(dep, seen)
	}
	delete(c.dependents, ref)
}

// Len reports the number of loaded modules, for tests and
// introspection.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// normalizeRef cleans a module reference and rejects escapes above the
// cache root.
func normalizeRef(ref string) (string, error) {
	ref = strings.TrimPrefix(path.Clean("/"+ref), "/")
	if ref == "" || ref == ".." || strings.HasPrefix(ref, "../") {
		return "", fmt.Errorf("script: invalid reference %q", ref)
	}
	return ref, nil
}

// normalizeExport converts a script's return value into the closed
// Export union. Performed exactly once, at load time.
func normalizeExport(v lua.LValue) (Export, error) {
	switch val := v.(type) {
	case *lua.LFunction:
		return Export{Kind: ExportFunc, fn: val}, nil
	case lua.LString:
		return Export{Kind: ExportText, Text: string(val)}, nil
	case *lua.LTable:
		if fn, ok := val.RawGetString("render").(*lua.LFunction); ok {
			return Export{Kind: ExportRenderable, fn: fn}, nil
		}
		return Export{}, errors.New("table export must have a render function")
	default:
		return Export{}, fmt.Errorf("unsupported export %s (want function, string, or table)", v.Type())
	}
}
