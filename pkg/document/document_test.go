package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseFrontMatter(t *testing.T) {
	r := NewRenderer(t.TempDir())

	doc, err := r.Parse(writeDoc(t, `---
title: Getting Started
layout: guide
tags: [intro, setup]
---
# Welcome

Some **bold** text.
`))
	if err != nil {
		t.Fatal(err)
	}

	if doc.Title != "Getting Started" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Layout != "guide" {
		t.Errorf("Layout = %q", doc.Layout)
	}
	if tags, ok := doc.Meta["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("Meta[tags] = %v", doc.Meta["tags"])
	}
	if !strings.Contains(string(doc.Content), "<h1>Welcome</h1>") {
		t.Errorf("Content = %q", doc.Content)
	}
	if !strings.Contains(string(doc.Content), "<strong>bold</strong>") {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestParseNoFrontMatter(t *testing.T) {
	r := NewRenderer(t.TempDir())

	doc, err := r.Parse(writeDoc(t, "just a paragraph\n"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Layout != DefaultLayout {
		t.Errorf("Layout = %q, want %q", doc.Layout, DefaultLayout)
	}
	if doc.Title != "" {
		t.Errorf("Title = %q, want empty", doc.Title)
	}
	if !strings.Contains(string(doc.Content), "just a paragraph") {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestParseFrontMatterDashLines(t *testing.T) {
	r := NewRenderer(t.TempDir())

	// Lines that merely start with --- stay inside the front matter; only
	// a bare --- line closes it.
	doc, err := r.Parse(writeDoc(t, "---\ntitle: Tricky\n---x: marker\n---\nbody text\n"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Tricky" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Meta["---x"] != "marker" {
		t.Errorf("Meta[---x] = %v", doc.Meta["---x"])
	}
	if got := string(doc.Content); !strings.Contains(got, "body text") || strings.Contains(got, "marker") {
		t.Errorf("Content = %q", got)
	}
}

func TestParseFrontMatterCRLF(t *testing.T) {
	r := NewRenderer(t.TempDir())

	doc, err := r.Parse(writeDoc(t, "---\r\ntitle: Windows\r\n---\r\nline\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Windows" {
		t.Errorf("Title = %q", doc.Title)
	}
	if !strings.Contains(string(doc.Content), "line") {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestParseUnterminatedFrontMatter(t *testing.T) {
	r := NewRenderer(t.TempDir())
	if _, err := r.Parse(writeDoc(t, "---\ntitle: oops\n")); err == nil {
		t.Error("unterminated front matter parsed without error")
	}
}

func TestParseBadYAML(t *testing.T) {
	r := NewRenderer(t.TempDir())
	if _, err := r.Parse(writeDoc(t, "---\ntitle: [unclosed\n---\nbody\n")); err == nil {
		t.Error("invalid front matter parsed without error")
	}
}

func TestParseGFMTable(t *testing.T) {
	r := NewRenderer(t.TempDir())

	doc, err := r.Parse(writeDoc(t, "| a | b |\n|---|---|\n| 1 | 2 |\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc.Content), "<table>") {
		t.Errorf("table extension inactive, Content = %q", doc.Content)
	}
}

func TestRenderWithLayout(t *testing.T) {
	layoutDir := t.TempDir()
	layout := `<html><head><title>{{.Title}} | Site</title></head><body>{{.Content}}</body></html>`
	if err := os.WriteFile(filepath.Join(layoutDir, "guide.html"), []byte(layout), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRenderer(layoutDir)
	doc, err := r.Parse(writeDoc(t, "---\ntitle: Hi\nlayout: guide\n---\n*hello*\n"))
	if err != nil {
		t.Fatal(err)
	}

	out, err := r.Render(doc)
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	if !strings.Contains(html, "<title>Hi | Site</title>") {
		t.Errorf("layout title not applied: %q", html)
	}
	if !strings.Contains(html, "<em>hello</em>") {
		t.Errorf("content not embedded: %q", html)
	}
	// Content is template.HTML; the markup must not be escaped.
	if strings.Contains(html, "&lt;em&gt;") {
		t.Errorf("content escaped: %q", html)
	}
}

func TestRenderFallbackLayout(t *testing.T) {
	r := NewRenderer(filepath.Join(t.TempDir(), "no-such-dir"))

	doc, err := r.Parse(writeDoc(t, "---\ntitle: Lone\n---\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<title>Lone</title>") {
		t.Errorf("fallback layout not applied: %q", out)
	}
}

func TestInvalidateReloadsLayouts(t *testing.T) {
	layoutDir := t.TempDir()
	path := filepath.Join(layoutDir, DefaultLayout+".html")
	if err := os.WriteFile(path, []byte(`v1 {{.Content}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRenderer(layoutDir)
	doc, err := r.Parse(writeDoc(t, "x\n"))
	if err != nil {
		t.Fatal(err)
	}

	out, err := r.Render(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "v1") {
		t.Fatalf("out = %q", out)
	}

	if err := os.WriteFile(path, []byte(`v2 {{.Content}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	// Cached until invalidated.
	if out, _ := r.Render(doc); !strings.HasPrefix(string(out), "v1") {
		t.Errorf("layout reloaded without invalidation: %q", out)
	}
	r.Invalidate()
	if out, _ := r.Render(doc); !strings.HasPrefix(string(out), "v2") {
		t.Errorf("layout not reloaded after invalidation: %q", out)
	}
}
