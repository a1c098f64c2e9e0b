package router

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Build walks rootDir and compiles it into a routing tree mounted at
// mount. The returned tree is immutable; callers swap whole trees on
// invalidation rather than mutating one in place.
func Build(rootDir, mount string) (*Tree, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("router: root directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("router: %s is not a directory", abs)
	}

	b := &builder{
		static:  make(map[string]*RouteEntry),
		dynamic: make(map[string]*RouteEntry),
	}
	root, err := b.buildDir(abs, cleanMount(mount), "", nil)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Root:    root,
		Static:  b.static,
		Dynamic: b.dynamic,
		Mount:   cleanMount(mount),
		Dir:     abs,
	}, nil
}

type builder struct {
	static  map[string]*RouteEntry
	dynamic map[string]*RouteEntry
}

// buildDir creates the entry for one directory and recurses into its
// children. param is the directory's own parameter name when its name is
// bracketed.
func (b *builder) buildDir(dir, urlPath, param string, parent *RouteEntry) (*RouteEntry, error) {
	entry := &RouteEntry{
		Path:     urlPath,
		Parent:   parent,
		Param:    param,
		Children: make(map[string]*RouteEntry),
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("router: reading %s: %w", dir, err)
	}

	// Reserved aux modules are classified as hidden, so pick them up
	// before the hidden filter applies.
	for _, de := range names {
		switch de.Name() {
		case HookFile:
			entry.Hook = filepath.Join(dir, de.Name())
		case ErrorFile:
			entry.ErrorHandler = filepath.Join(dir, de.Name())
		}
	}

	for _, de := range names {
		name := de.Name()
		seg := classify(name, de.IsDir())
		if seg.hidden {
			continue
		}

		if de.IsDir() {
			if err := b.addDir(entry, dir, name, seg); err != nil {
				return nil, err
			}
			continue
		}

		if seg.index {
			if err := b.setIndex(entry, dir, name, seg); err != nil {
				return nil, err
			}
			continue
		}

		if seg.kind == KindStatic {
			if err := b.addAsset(entry, dir, name); err != nil {
				return nil, err
			}
			continue
		}

		if err := b.addFile(entry, dir, name, seg); err != nil {
			return nil, err
		}
	}

	// The index file, if any, made this directory entry itself a route.
	if entry.Target != nil {
		b.register(entry)
	}
	return entry, nil
}

// addAsset registers an arbitrary static asset (no recognized extension)
// by its full name. Outside parametric territory nothing routes through
// it, so it lives only in the static map; below a parametric ancestor an
// exact-path lookup can never fire, so the asset instead becomes a
// literal leaf reached by tree descent.
func (b *builder) addAsset(parent *RouteEntry, dir, name string) error {
	child := &RouteEntry{
		Path:   joinURL(parent.Path, name),
		Parent: parent,
		Target: &Target{Kind: KindStatic, SourceFile: filepath.Join(dir, name)},
	}

	if !child.dynamic() {
		b.static[child.Path] = child
		return nil
	}

	if name == paramKey {
		return fmt.Errorf("router: reserved segment name %q in %s", name, dir)
	}
	if prev := parent.Children[name]; prev != nil {
		return fmt.Errorf("router: route %s conflicts with directory %s", child.Path, prev.Path)
	}
	parent.Children[name] = child
	b.register(child)
	return nil
}

// addDir recurses into a subdirectory and attaches the resulting entry.
func (b *builder) addDir(parent *RouteEntry, dir, name string, seg segment) error {
	key := name
	if seg.param != "" {
		key = paramKey
		if prev := parent.Children[paramKey]; prev != nil {
			return fmt.Errorf("router: conflicting parametric routes %q and %q under %s",
				prev.Path, "["+seg.param+"]", parent.Path)
		}
	} else if key == paramKey {
		// "[]" carries no parameter name but would land in the slot
		// reserved for the parametric child.
		return fmt.Errorf("router: reserved segment name %q in %s", name, dir)
	}

	child, err := b.buildDir(filepath.Join(dir, name), joinURL(parent.Path, seg.base), seg.param, parent)
	if err != nil {
		return err
	}

	if prev := parent.Children[key]; prev != nil {
		return fmt.Errorf("router: duplicate route %s", child.Path)
	}
	parent.Children[key] = child
	return nil
}

// setIndex records an index file as the target of the directory entry.
// A handler index with a subtree marker turns the whole directory into a
// subtree wildcard.
func (b *builder) setIndex(entry *RouteEntry, dir, name string, seg segment) error {
	if entry.Target != nil {
		return fmt.Errorf("router: duplicate index for %s", entry.Path)
	}
	entry.Target = &Target{Kind: seg.kind, SourceFile: filepath.Join(dir, name)}
	if seg.subtree && seg.kind == KindHandler {
		entry.HandleSubtree = true
	}
	return nil
}

// addFile creates a leaf entry for a handler or document file.
func (b *builder) addFile(parent *RouteEntry, dir, name string, seg segment) error {
	child := &RouteEntry{
		Path:   joinURL(parent.Path, seg.base),
		Parent: parent,
		Param:  seg.param,
		Target: &Target{Kind: seg.kind, SourceFile: filepath.Join(dir, name)},
	}
	if seg.subtree && seg.kind == KindHandler {
		child.HandleSubtree = true
	}

	key := seg.base
	if seg.param != "" {
		key = paramKey
		if prev := parent.Children[paramKey]; prev != nil {
			return fmt.Errorf("router: conflicting parametric routes %q and %q under %s",
				prev.Path, child.Path, parent.Path)
		}
	} else if key == paramKey {
		return fmt.Errorf("router: reserved segment name %q in %s", name, dir)
	}

	if prev := parent.Children[key]; prev != nil {
		// A directory of the same name owns structural traversal; the
		// file still wins whole-path exact matches through the static
		// map, so keep it there and leave the tree alone.
		if child.dynamic() || child.HandleSubtree {
			return fmt.Errorf("router: route %s conflicts with directory %s", child.Path, prev.Path)
		}
		b.static[child.Path] = child
		return nil
	}

	parent.Children[key] = child
	b.register(child)
	return nil
}

// register places an entry in exactly one of the two lookup maps. The
// classification is decided here, once, and frozen: subtree wildcards and
// anything whose match depends on a parameter capture go to the dynamic
// map, everything else to the static map.
func (b *builder) register(e *RouteEntry) {
	if e.HandleSubtree || e.dynamic() {
		b.dynamic[e.Path] = e
		return
	}
	b.static[e.Path] = e
}

// cleanMount normalizes a mount path to "/" or "/prefix" form.
func cleanMount(mount string) string {
	mount = path.Clean("/" + strings.Trim(mount, "/"))
	return mount
}

// joinURL appends one segment to a URL path.
func joinURL(base, seg string) string {
	if base == "/" {
		return "/" + seg
	}
	return base + "/" + seg
}
