// Package middleware provides optional http.Handler wrappers for arbor
// applications: Prometheus metrics and OpenTelemetry tracing.
//
// Both label observations by the matched route pattern rather than the
// raw request path, so parametric routes aggregate under one series. The
// pattern is carried back from the dispatcher through arbor.WithRouteInfo.
//
//	app, _ := arbor.New(cfg)
//	http.ListenAndServe(addr, middleware.Metrics()(middleware.Tracing()(app)))
package middleware
