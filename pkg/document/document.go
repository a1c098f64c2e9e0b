// Package document parses markdown route targets and renders them
// through HTML layouts.
//
// A document is a file with optional YAML front matter delimited by ---
// lines, followed by a markdown body. The front matter's layout field
// selects a layout template from the configured layout directory; absent
// that, the default layout applies.
package document

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// DefaultLayout is the layout name used when front matter names none.
const DefaultLayout = "default"

const frontMatterDelim = "---"

// Document is a parsed markdown target: front matter attributes plus the
// body rendered to HTML.
type Document struct {
	// Meta holds the decoded front matter attributes.
	Meta map[string]any

	// Layout is the layout template name, front matter's layout field or
	// DefaultLayout.
	Layout string

	// Title is the front matter title, "" when absent.
	Title string

	// Content is the markdown body rendered to HTML.
	Content template.HTML
}

// Renderer parses documents and applies layouts. Layout templates are
// parsed lazily and cached until invalidated.
type Renderer struct {
	layoutDir string
	md        goldmark.Markdown

	mu      sync.Mutex
	layouts map[string]*template.Template
}

// NewRenderer creates a renderer with layouts loaded from layoutDir.
// A missing layout directory is fine; documents then render through the
// built-in fallback layout.
func NewRenderer(layoutDir string) *Renderer {
	return &Renderer{
		layoutDir: layoutDir,
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		layouts:   make(map[string]*template.Template),
	}
}

// Parse reads a document file, decodes front matter, and renders the
// markdown body to HTML.
func (r *Renderer) Parse(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}

	meta, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("document: rendering %s: %w", path, err)
	}

	doc := &Document{
		Meta:    meta,
		Layout:  DefaultLayout,
		Content: template.HTML(buf.String()),
	}
	if l, ok := meta["layout"].(string); ok && l != "" {
		doc.Layout = l
	}
	if t, ok := meta["title"].(string); ok {
		doc.Title = t
	}
	return doc, nil
}

// Render applies the document's layout and returns the final markup.
func (r *Renderer) Render(doc *Document) ([]byte, error) {
	tmpl, err := r.layout(doc.Layout)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("document: layout %s: %w", doc.Layout, err)
	}
	return buf.Bytes(), nil
}

// Invalidate drops all cached layout templates. The next render reparses
// them from disk.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts = make(map[string]*template.Template)
}

// layout returns the parsed template for a layout name, falling back to
// the built-in layout when the file does not exist.
func (r *Renderer) layout(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.layouts[name]; ok {
		return t, nil
	}

	var t *template.Template
	path := filepath.Join(r.layoutDir, name+".html")
	src, err := os.ReadFile(path)
	switch {
	case err == nil:
		t, err = template.New(name).Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("document: parsing layout %s: %w", path, err)
		}
	case os.IsNotExist(err):
		t = fallbackLayout
	default:
		return nil, fmt.Errorf("document: %w", err)
	}

	r.layouts[name] = t
	return t, nil
}

// splitFrontMatter separates the YAML front matter block from the body.
// Documents without a leading --- line are all body. The close delimiter
// is a line of exactly "---"; a line that merely starts with --- belongs
// to the front matter.
func splitFrontMatter(src []byte) (map[string]any, []byte, error) {
	meta := map[string]any{}

	s := string(src)
	if !strings.HasPrefix(s, frontMatterDelim+"\n") && !strings.HasPrefix(s, frontMatterDelim+"\r\n") {
		return meta, src, nil
	}

	rest := s[strings.Index(s, "\n")+1:]
	end := -1
	bodyStart := len(rest)
	for off := 0; off < len(rest); {
		line := rest[off:]
		next := len(rest)
		if nl := strings.IndexByte(line, '\n'); nl != -1 {
			line = line[:nl]
			next = off + nl + 1
		}
		if strings.TrimSuffix(line, "\r") == frontMatterDelim {
			end = off
			bodyStart = next
			break
		}
		off = next
	}
	if end == -1 {
		return nil, nil, fmt.Errorf("unterminated front matter")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, nil, fmt.Errorf("front matter: %w", err)
	}
	return meta, []byte(rest[bodyStart:]), nil
}

var fallbackLayout = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{.Content}}
</body>
</html>
`))
