package router

import "testing"

func TestClassifyFiles(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want segment
	}{
		{"handler", "about.lua", segment{kind: KindHandler, base: "about"}},
		{"document", "readme.md", segment{kind: KindDocument, base: "readme"}},
		{"static html", "legacy.html", segment{kind: KindStatic, base: "legacy"}},
		{"static image", "logo.png", segment{kind: KindStatic, base: "logo"}},
		{"handler index", "index.lua", segment{kind: KindHandler, index: true}},
		{"document index", "index.md", segment{kind: KindDocument, index: true}},
		{"static index", "index.html", segment{kind: KindStatic, index: true}},
		{"subtree handler", "files+.lua", segment{kind: KindHandler, subtree: true, base: "files"}},
		{"subtree index", "index+.lua", segment{kind: KindHandler, subtree: true, index: true}},
		{"subtree document marker kept", "notes+.md", segment{kind: KindDocument, subtree: true, base: "notes"}},
		{"param handler", "[id].lua", segment{kind: KindHandler, base: "[id]", param: "id"}},
		{"param document", "[slug].md", segment{kind: KindDocument, base: "[slug]", param: "slug"}},
		{"param subtree", "[path]+.lua", segment{kind: KindHandler, subtree: true, base: "[path]", param: "path"}},
		{"hidden file", "_helper.lua", segment{hidden: true}},
		{"hook is hidden", "_hook.lua", segment{hidden: true}},
		{"error is hidden", "_error.lua", segment{hidden: true}},
		{"malformed param", "[].lua", segment{kind: KindHandler, base: "[]"}},
		{"nested brackets", "[a[b]].lua", segment{kind: KindHandler, base: "[a[b]]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in, false)
			if got != tt.want {
				t.Errorf("classify(%q, false) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyDirs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want segment
	}{
		{"literal", "docs", segment{base: "docs"}},
		{"param", "[org]", segment{base: "[org]", param: "org"}},
		{"hidden", "_private", segment{hidden: true}},
		{"dotted name stays literal", "v1.2", segment{base: "v1.2"}},
		{"plus is not a dir marker", "files+", segment{base: "files+"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in, true)
			if got != tt.want {
				t.Errorf("classify(%q, true) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParamName(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"[id]", "id", true},
		{"[org-name]", "org-name", true},
		{"[]", "", false},
		{"[a]b", "", false},
		{"a[b]", "", false},
		{"[[a]]", "", false},
		{"[a/b]", "", false},
		{"plain", "", false},
	}

	for _, tt := range tests {
		got, ok := paramName(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("paramName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
