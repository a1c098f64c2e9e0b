package dev

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestInjectScriptIntoHTML(t *testing.T) {
	page := "<html><body><p>hi</p></body></html>"
	h := InjectScript(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	if !strings.Contains(body, "WebSocket") {
		t.Error("reload client not injected")
	}
	i := strings.Index(body, "<script>")
	j := strings.Index(body, "</body>")
	if i == -1 || j == -1 || i > j {
		t.Errorf("script not spliced before </body>: %q", body)
	}
	if cl := w.Header().Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length = %q, body length %d", cl, len(body))
	}
}

func TestInjectScriptHTMLWithoutBodyTag(t *testing.T) {
	h := InjectScript(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>fragment</p>"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if body := w.Body.String(); !strings.HasSuffix(body, "</script>") {
		t.Errorf("script not appended: %q", body)
	}
}

func TestInjectScriptLeavesNonHTMLAlone(t *testing.T) {
	h := InjectScript(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("body changed: %q", w.Body.String())
	}
}

func TestInjectScriptPreservesStatus(t *testing.T) {
	h := InjectScript(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<body>missing</body>"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<script>") {
		t.Error("error page did not get the reload client")
	}
}
