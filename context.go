package arbor

import "context"

// RouteInfo receives the matched route pattern for the current request.
// Outer middleware (metrics, tracing) installs a RouteInfo into the
// request context before calling the app; the dispatcher fills it in once
// matching finishes, so the middleware can label by route pattern instead
// of raw path.
type RouteInfo struct {
	// Pattern is the canonical route path, e.g. "/docs/[org]/[repo]".
	// Empty when no route matched.
	Pattern string
}

type contextKey int

const routeInfoKey contextKey = iota

// WithRouteInfo returns a context carrying a fresh RouteInfo and the
// info itself.
func WithRouteInfo(ctx context.Context) (context.Context, *RouteInfo) {
	info := &RouteInfo{}
	return context.WithValue(ctx, routeInfoKey, info), info
}

// routeInfo returns the RouteInfo installed upstream, or nil.
func routeInfo(ctx context.Context) *RouteInfo {
	info, _ := ctx.Value(routeInfoKey).(*RouteInfo)
	return info
}
