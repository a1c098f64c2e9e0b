package router

import "strings"

// Matcher is the compiled matching procedure for one tree. It is a pure
// function of the tree and its maps: rebuilding the tree means deriving a
// fresh Matcher, never patching an existing one.
//
// The match order is: exact static lookup, then the wildcard-root fast
// path, then mount-prefix check plus segment-by-segment descent. Literal
// children beat the parametric child at every level; a subtree wildcard
// absorbs whatever remains once no child matches.
type Matcher struct {
	tree *Tree

	// mountSegs are the mount path's own segments, which every incoming
	// path must literally carry before descent starts. Empty for "/".
	mountSegs []string

	// wildcardRoot is the optimized shape for a subtree handler index at
	// the root with no siblings: any path under the mount matches the
	// root entry after a single prefix check.
	wildcardRoot bool
}

// NewMatcher compiles a matcher from a built tree. Reachability flags are
// precomputed here so that void subtrees (no target anywhere below) are
// pruned to an immediate no-match at request time.
func NewMatcher(t *Tree) *Matcher {
	computeReachable(t.Root)

	m := &Matcher{tree: t}
	if t.Mount != "/" {
		m.mountSegs = splitPath(t.Mount)
	}
	m.wildcardRoot = t.Root.HandleSubtree && t.Root.Target != nil && len(t.Root.Children) == 0
	return m
}

// computeReachable marks every entry that has a target somewhere in its
// subtree. Descends unconditionally: every child's flag must be set even
// when an earlier sibling already proved the parent reachable.
func computeReachable(e *RouteEntry) bool {
	r := e.Target != nil
	for _, c := range e.Children {
		if computeReachable(c) {
			r = true
		}
	}
	e.reachable = r
	return r
}

// Match maps a normalized, decoded request path to a route entry,
// recording extracted parameters in params. Returns nil when nothing
// matches. The caller is responsible for rejecting dot-segments and
// malformed encodings before calling; Match trusts its input.
func (m *Matcher) Match(p string, params Params) *RouteEntry {
	if e, ok := m.tree.Static[p]; ok {
		return e
	}

	if m.wildcardRoot && m.underMount(p) {
		return m.tree.Root
	}

	segs := splitPath(p)
	for _, ms := range m.mountSegs {
		if len(segs) == 0 || segs[0] != ms {
			return nil
		}
		segs = segs[1:]
	}

	node := m.tree.Root
	for _, seg := range segs {
		if c := node.child(seg); c != nil && c.reachable {
			node = c
			continue
		}
		// A literal child with a void subtree falls through to the
		// parametric sibling rather than failing the match.
		if pc := node.paramChild(); pc != nil && pc.reachable {
			params[pc.Param] = seg
			node = pc
			continue
		}
		if node.HandleSubtree && node.Target != nil {
			return node
		}
		return nil
	}

	if node.Target != nil {
		return node
	}
	return nil
}

// underMount reports whether p lies at or below the mount path with a
// proper segment boundary ("/apiextra" is not under "/api").
func (m *Matcher) underMount(p string) bool {
	mount := m.tree.Mount
	if mount == "/" {
		return strings.HasPrefix(p, "/")
	}
	if !strings.HasPrefix(p, mount) {
		return false
	}
	return len(p) == len(mount) || p[len(mount)] == '/'
}

// splitPath splits a path into segments, dropping empty ones so that
// duplicate slashes do not produce phantom segments.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	segs := parts[:0]
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
