package arbor

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbor-web/arbor/pkg/document"
	"github.com/arbor-web/arbor/pkg/router"
	"github.com/arbor-web/arbor/pkg/script"
)

// App is the request dispatcher: it owns the current routing tree
// snapshot, the script cache, and the document renderer, and implements
// http.Handler. One App per site; safe for concurrent use.
type App struct {
	cfg    Config
	logger *slog.Logger

	scripts *script.Cache
	docs    *document.Renderer

	// state is the current tree snapshot. Swapped whole on rebuild;
	// requests capture one snapshot and complete against it.
	state atomic.Pointer[snapshot]

	// Pending rebuild timer. A newly scheduled rebuild replaces any
	// not-yet-fired one.
	rebuildMu    sync.Mutex
	rebuildTimer *time.Timer

	onReload atomic.Pointer[func(error)]
}

// snapshot pairs a tree with the matcher compiled from it.
type snapshot struct {
	tree    *router.Tree
	matcher *router.Matcher
}

// New builds the initial routing tree for cfg.Root and returns a ready
// dispatcher.
func New(cfg Config) (*App, error) {
	cfg = cfg.withDefaults()
	if cfg.Root == "" {
		return nil, fmt.Errorf("arbor: Config.Root is required")
	}

	a := &App{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "app"),
		scripts: script.NewCache(cfg.Root),
		docs:    document.NewRenderer(cfg.LayoutDir),
	}
	if err := a.Rebuild(); err != nil {
		return nil, err
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Tree returns the current routing tree snapshot.
func (a *App) Tree() *router.Tree { return a.state.Load().tree }

// OnReload registers a callback invoked after each triggered rebuild,
// with the build error or nil. Used by the dev server to drive
// live-reload. Register before serving.
func (a *App) OnReload(fn func(error)) {
	a.onReload.Store(&fn)
}

// ServeHTTP routes the request, composes the route's proc on first use,
// invokes it, and funnels any failure into the nearest error handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := a.state.Load()
	params := router.Params{}

	var entry *router.RouteEntry
	if p, ok := requestPath(r); ok {
		entry = st.matcher.Match(p, params)
	}

	if info := routeInfo(r.Context()); info != nil && entry != nil {
		info.Pattern = entry.Path
	}

	if entry == nil {
		// 404s run through the root's error handler so top-level
		// conventions apply to them too.
		a.handleError(w, r, st.tree.Root, params, errNotFound())
		return
	}

	proc := a.routeProc(entry)
	if err := a.invoke(proc, w, r, params); err != nil {
		a.handleError(w, r, entry, params, err)
	}
}

// invoke runs a composed proc with panic recovery; a panic surfaces as an
// ordinary unhandled error on the same error path as everything else.
func (a *App) invoke(proc router.Proc, w http.ResponseWriter, r *http.Request, p router.Params) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			a.logger.Error("handler panic",
				"method", r.Method, "path", r.URL.Path,
				"panic", v, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return proc(w, r, p)
}

// handleError resolves the nearest error handler for the entry and
// invokes it. NotFound is a routine outcome and not logged.
func (a *App) handleError(w http.ResponseWriter, r *http.Request, entry *router.RouteEntry, p router.Params, err error) {
	if statusOf(err) != http.StatusNotFound {
		a.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	a.errorProcFor(entry)(w, r, p, err)
}

// Rebuild builds a fresh tree off to the side and atomically swaps it in.
// The old tree, its maps, and every per-entry cache are discarded as a
// unit.
func (a *App) Rebuild() error {
	tree, err := router.Build(a.cfg.Root, a.cfg.Mount)
	if err != nil {
		return fmt.Errorf("arbor: building routes: %w", err)
	}
	a.state.Store(&snapshot{tree: tree, matcher: router.NewMatcher(tree)})
	return nil
}

// FileChanged is the invalidation entry point for file-change
// notifications: it drops cached artifacts derived from the file and
// debounces a tree rebuild.
func (a *App) FileChanged(path string) {
	a.scripts.Invalidate(path)
	a.docs.Invalidate()
	a.scheduleRebuild()
}

// scheduleRebuild arms the debounced rebuild, replacing any pending one.
func (a *App) scheduleRebuild() {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	if a.rebuildTimer != nil {
		a.rebuildTimer.Stop()
	}
	a.rebuildTimer = time.AfterFunc(a.cfg.RebuildDebounce, func() {
		err := a.Rebuild()
		if err != nil {
			a.logger.Error("route tree rebuild failed", "error", err)
		} else {
			a.logger.Info("route tree rebuilt")
		}
		if fn := a.onReload.Load(); fn != nil {
			(*fn)(err)
		}
	})
}

// requestPath normalizes and validates the request path for matching.
// The matcher trusts its input, so traversal markers, NULs, and
// backslashes are rejected here; any rejection resolves to NotFound.
func requestPath(r *http.Request) (string, bool) {
	p := r.URL.Path
	if p == "" || p[0] != '/' {
		return "", false
	}
	if strings.IndexByte(p, 0) != -1 || strings.Contains(p, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	// Collapse duplicate slashes and drop a trailing one so lookups are
	// canonical.
	if strings.Contains(p, "//") {
		parts := strings.Split(p, "/")
		kept := parts[:0]
		for _, s := range parts {
			if s != "" {
				kept = append(kept, s)
			}
		}
		p = "/" + strings.Join(kept, "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p, true
}
