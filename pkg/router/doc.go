// Package router compiles a directory tree into an immutable routing
// structure and matches request paths against it.
//
// Directories become path segments, files become route targets, bracketed
// names ([id]) become path parameters, and a trailing "+" on a handler file
// marks a subtree wildcard. A tree build produces two frozen lookup tables:
// a static map for exact literal paths (O(1) match) and a dynamic map for
// parametric and subtree routes. The Matcher consults the static map first
// and falls back to segment-by-segment tree descent.
//
// Trees are immutable once built. File changes are handled by building a
// fresh tree and swapping it in; the only mutable state on a RouteEntry are
// the lazy proc caches, which are safe for concurrent last-writer-wins
// population.
package router
