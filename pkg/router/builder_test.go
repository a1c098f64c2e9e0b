package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSite creates a site fixture. Keys ending in "/" become
// directories, everything else a file with placeholder content.
func writeSite(t *testing.T, entries ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, e := range entries {
		p := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(e, "/")))
		if strings.HasSuffix(e, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("-- placeholder\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestBuildBasic(t *testing.T) {
	root := writeSite(t,
		"index.lua",
		"about.md",
		"style.css",
		"docs/index.md",
		"docs/[page].lua",
		"api/files+.lua",
		"_drafts/secret.md",
		"_hook.lua",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	wantStatic := []string{"/", "/about", "/style.css", "/docs"}
	for _, p := range wantStatic {
		if tree.Static[p] == nil {
			t.Errorf("static map missing %q", p)
		}
	}
	wantDynamic := []string{"/docs/[page]", "/api/files"}
	for _, p := range wantDynamic {
		if tree.Dynamic[p] == nil {
			t.Errorf("dynamic map missing %q", p)
		}
	}

	if tree.Root.Hook == "" {
		t.Error("root hook not recorded")
	}
	for p := range tree.Static {
		if strings.Contains(p, "_drafts") || strings.Contains(p, "secret") {
			t.Errorf("hidden entry leaked into static map: %q", p)
		}
	}
}

func TestBuildMapDisjointAndKeyed(t *testing.T) {
	root := writeSite(t,
		"index.lua",
		"posts/[id].md",
		"posts/latest.lua",
		"files+.lua",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	for p, e := range tree.Static {
		if e.Path != p {
			t.Errorf("static key %q != entry path %q", p, e.Path)
		}
		if _, dup := tree.Dynamic[p]; dup {
			t.Errorf("path %q present in both maps", p)
		}
		if e.HandleSubtree || e.dynamic() {
			t.Errorf("dynamic-shaped entry %q registered in static map", p)
		}
	}
	for p, e := range tree.Dynamic {
		if e.Path != p {
			t.Errorf("dynamic key %q != entry path %q", p, e.Path)
		}
		if !e.HandleSubtree && !e.dynamic() {
			t.Errorf("static-shaped entry %q registered in dynamic map", p)
		}
	}
}

func TestBuildParamUnderParamDir(t *testing.T) {
	root := writeSite(t,
		"[org]/[repo]/issues/[id].lua",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	e := tree.Dynamic["/[org]/[repo]/issues/[id]"]
	if e == nil {
		t.Fatal("nested parametric route not built")
	}
	if e.Param != "id" {
		t.Errorf("Param = %q, want %q", e.Param, "id")
	}
	if e.Parent == nil || e.Parent.Path != "/[org]/[repo]/issues" {
		t.Errorf("parent path wrong: %+v", e.Parent)
	}
}

func TestBuildSubtreeMarkerHandlerOnly(t *testing.T) {
	root := writeSite(t,
		"notes+.md",
		"cdn+/index.lua",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	// The "+" only activates on handler files; a document keeps it
	// stripped from the URL but gains no wildcard.
	if e := tree.Static["/notes"]; e == nil {
		t.Error("document with + marker not routed at stripped name")
	} else if e.HandleSubtree {
		t.Error("document gained subtree semantics from + marker")
	}

	// On directories "+" is a literal character.
	if tree.Static["/cdn+"] == nil {
		t.Error("directory named with + not treated literally")
	}
}

func TestBuildConflicts(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
	}{
		{"two parametric siblings", []string{"[id].lua", "[slug].md"}},
		{"parametric file vs parametric dir", []string{"[id].lua", "[slug]/index.md"}},
		{"index and index", []string{"docs/index.lua", "docs/index.md"}},
		{"parametric file vs directory of same shape", []string{"[id].lua", "[id]/"}},
		{"empty bracket handler", []string{"[].lua", "real.lua"}},
		{"empty bracket directory", []string{"[]/index.md"}},
		{"empty bracket asset under param dir", []string{"[org]/[]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeSite(t, tt.entries...)
			if _, err := Build(root, "/"); err == nil {
				t.Error("Build succeeded, want conflict error")
			}
		})
	}
}

func TestBuildAssetUnderParamDir(t *testing.T) {
	root := writeSite(t,
		"logo.png",
		"[org]/badge.svg",
		"[org]/index.lua",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	if tree.Static["/logo.png"] == nil {
		t.Error("top-level asset missing from static map")
	}

	// An asset below a parametric directory can never be hit by an exact
	// lookup, so it must live in the dynamic map as a tree leaf instead.
	if tree.Static["/[org]/badge.svg"] != nil {
		t.Error("bracketed asset path registered in static map")
	}
	e := tree.Dynamic["/[org]/badge.svg"]
	if e == nil {
		t.Fatal("asset under parametric directory not in dynamic map")
	}
	if e.Target == nil || e.Target.Kind != KindStatic {
		t.Errorf("asset entry target = %+v", e.Target)
	}
	if tree.Root.paramChild().child("badge.svg") != e {
		t.Error("asset not reachable as a tree child")
	}
}

func TestBuildFileDirCoexistence(t *testing.T) {
	// A literal file and directory sharing a name coexist: the file wins
	// exact matches via the static map, the directory owns traversal.
	root := writeSite(t,
		"docs.md",
		"docs/intro.md",
	)

	tree, err := Build(root, "/")
	if err != nil {
		t.Fatal(err)
	}

	e := tree.Static["/docs"]
	if e == nil {
		t.Fatal("file entry missing from static map")
	}
	if e.Target == nil || e.Target.Kind != KindDocument {
		t.Errorf("static /docs entry = %+v, want document target", e.Target)
	}
	if tree.Static["/docs/intro"] == nil {
		t.Error("directory child not routed")
	}

	dir := tree.Root.child("docs")
	if dir == nil {
		t.Fatal("directory entry missing from tree")
	}
	if dir.Target != nil {
		t.Error("directory entry stole the file's target")
	}
}

func TestBuildMount(t *testing.T) {
	root := writeSite(t, "index.lua", "about.md")

	tree, err := Build(root, "/site/")
	if err != nil {
		t.Fatal(err)
	}

	if tree.Mount != "/site" {
		t.Errorf("Mount = %q, want %q", tree.Mount, "/site")
	}
	if tree.Static["/site"] == nil {
		t.Error("index not registered at mount path")
	}
	if tree.Static["/site/about"] == nil {
		t.Error("child not registered under mount path")
	}
	if tree.Static["/about"] != nil {
		t.Error("child registered outside mount path")
	}
}

func TestBuildRejectsMissingRoot(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "nope"), "/"); err == nil {
		t.Error("Build succeeded on missing directory")
	}
}
