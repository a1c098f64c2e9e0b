package arbor

import (
	"net/http"

	"github.com/arbor-web/arbor/pkg/router"
	"github.com/arbor-web/arbor/pkg/script"
)

// routeProc returns the composed proc for an entry, building and caching
// it on first use. Concurrent first access may build twice; both results
// are equivalent and the cache write is last-writer-wins.
func (a *App) routeProc(e *router.RouteEntry) router.Proc {
	if p := e.CachedProc(); p != nil {
		return p
	}
	p := a.composeProc(e)
	e.StoreProc(p)
	return p
}

// composeProc resolves the pure proc for the entry's target kind and
// wraps it in every hook found walking from the entry up to the root.
// Wrapping leaf-first leaves the root's hook outermost: it runs first and
// calls inward through each descendant's hook to the pure target.
func (a *App) composeProc(e *router.RouteEntry) router.Proc {
	p := a.pureProc(e)
	for n := e; n != nil; n = n.Parent {
		if n.Hook != "" {
			p = a.hookProc(n.Hook, p)
		}
	}
	return p
}

// pureProc resolves the target-kind-specific behavior for an entry.
func (a *App) pureProc(e *router.RouteEntry) router.Proc {
	if e.Target == nil {
		return func(http.ResponseWriter, *http.Request, router.Params) error {
			return errNotFound()
		}
	}
	switch e.Target.Kind {
	case router.KindStatic:
		return a.staticProc(e.Target.SourceFile)
	case router.KindDocument:
		return a.documentProc(e.Target.SourceFile)
	default:
		return a.handlerProc(e)
	}
}

// documentProc parses and renders a markdown target once, at composition
// time, and serves the result on GET/HEAD. A parse failure marks the
// route broken until the next invalidation.
func (a *App) documentProc(src string) router.Proc {
	doc, err := a.docs.Parse(src)
	if err != nil {
		return a.invalidProc(src, err)
	}
	html, err := a.docs.Render(doc)
	if err != nil {
		return a.invalidProc(src, err)
	}
	return a.markupProc(html)
}

// handlerProc loads the entry's Lua module and adapts its export into a
// proc. The export shape was normalized at load time; each shape gets
// exactly one adapter here.
func (a *App) handlerProc(e *router.RouteEntry) router.Proc {
	mod, err := a.scripts.Load(a.scripts.RefFor(e.Target.SourceFile))
	if err != nil {
		return a.invalidProc(e.Target.SourceFile, err)
	}

	switch mod.Export.Kind {
	case script.ExportText:
		return a.markupProc([]byte(mod.Export.Text))

	case script.ExportRenderable:
		return func(w http.ResponseWriter, r *http.Request, p router.Params) error {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return errMethodNotAllowed(r.Method)
			}
			markup, err := mod.Render(scriptRequest(r, p))
			if err != nil {
				return err
			}
			writeMarkup(w, r, []byte(markup))
			return nil
		}

	default:
		return func(w http.ResponseWriter, r *http.Request, p router.Params) error {
			resp, err := mod.Call(scriptRequest(r, p))
			if err != nil {
				return err
			}
			writeScriptResponse(w, r, resp)
			return nil
		}
	}
}

// hookProc wraps an inner proc with a hook module. The hook may decline
// to call through, short-circuiting the rest of the chain; in that case
// whatever it responded with is the response.
func (a *App) hookProc(hookPath string, inner router.Proc) router.Proc {
	mod, err := a.scripts.Load(a.scripts.RefFor(hookPath))
	if err != nil {
		return a.invalidProc(hookPath, err)
	}

	return func(w http.ResponseWriter, r *http.Request, p router.Params) error {
		called := false
		resp, err := mod.CallHook(scriptRequest(r, p), func() error {
			called = true
			return inner(w, r, p)
		})
		if err != nil {
			return err
		}
		if !called && resp.Written {
			writeScriptResponse(w, r, resp)
		}
		return nil
	}
}

// invalidProc is the cached "broken route" proc: every request fails with
// the original load error, without re-attempting the load, until an
// invalidation discards the cache.
func (a *App) invalidProc(src string, err error) router.Proc {
	lerr := &HandlerLoadError{Source: src, Err: err}
	a.logger.Error("route target failed to load", "source", src, "error", err)
	return func(http.ResponseWriter, *http.Request, router.Params) error {
		return lerr
	}
}

// markupProc serves fixed HTML on GET/HEAD.
func (a *App) markupProc(body []byte) router.Proc {
	return func(w http.ResponseWriter, r *http.Request, _ router.Params) error {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			return errMethodNotAllowed(r.Method)
		}
		writeMarkup(w, r, body)
		return nil
	}
}

// errorProcFor returns the resolved error handler for an entry, caching
// per entry. The search is deterministic, so a racing first resolution is
// idempotent.
func (a *App) errorProcFor(e *router.RouteEntry) router.ErrorProc {
	if p := e.CachedErrorProc(); p != nil {
		return p
	}
	p := a.resolveErrorProc(e)
	e.StoreErrorProc(p)
	return p
}

// resolveErrorProc walks from the entry to the root looking for the
// nearest error handler module, falling back to the built-in generic
// responder.
func (a *App) resolveErrorProc(e *router.RouteEntry) router.ErrorProc {
	for n := e; n != nil; n = n.Parent {
		if n.ErrorHandler == "" {
			continue
		}
		mod, err := a.scripts.Load(a.scripts.RefFor(n.ErrorHandler))
		if err != nil {
			a.logger.Error("error handler failed to load",
				"source", n.ErrorHandler, "error", err)
			break
		}
		return func(w http.ResponseWriter, r *http.Request, p router.Params, cause error) {
			status := statusOf(cause)
			resp, err := mod.CallError(scriptRequest(r, p), status, messageOf(cause))
			if err != nil {
				// Failures inside the error handler are not recovered;
				// abort the response at the transport.
				a.logger.Error("error handler failed",
					"method", r.Method, "path", r.URL.Path, "error", err)
				panic(http.ErrAbortHandler)
			}
			if resp.Status == http.StatusOK && !resp.Written {
				resp.Status = status
			}
			writeScriptResponse(w, r, resp)
		}
	}
	return a.defaultErrorProc
}

// defaultErrorProc renders the error's status and message generically.
// HEAD responses and empty messages carry no body.
func (a *App) defaultErrorProc(w http.ResponseWriter, r *http.Request, _ router.Params, err error) {
	status := statusOf(err)
	msg := messageOf(err)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if r.Method != http.MethodHead && msg != "" {
		w.Write([]byte(msg + "\n"))
	}
}

// scriptRequest builds the Lua-facing view of a request.
func scriptRequest(r *http.Request, p router.Params) *script.Request {
	return &script.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Params: p,
		Query:  r.URL.Query(),
		Header: r.Header,
	}
}

// writeScriptResponse flushes a script-produced response. HEAD never
// carries a body.
func writeScriptResponse(w http.ResponseWriter, r *http.Request, resp *script.Response) {
	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead && len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

func writeMarkup(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(body)
}
