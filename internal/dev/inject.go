package dev

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

// InjectScript wraps a handler so that HTML responses get the reload
// client appended before </body>. Non-HTML responses pass through
// untouched.
func InjectScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iw := &injectWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(iw, r)
		iw.flush()
	})
}

// injectWriter buffers the response until the content type is known.
// HTML bodies are held back entirely so the script can be spliced in
// with a corrected Content-Length.
type injectWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buffering   bool
	passthrough bool
	buf         bytes.Buffer
}

func (w *injectWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status

	ct := w.Header().Get("Content-Type")
	if strings.HasPrefix(ct, "text/html") {
		w.buffering = true
		return
	}
	w.passthrough = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *injectWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.buffering {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *injectWriter) flush() {
	if !w.buffering {
		if !w.wroteHeader {
			w.ResponseWriter.WriteHeader(w.status)
		}
		return
	}

	body := w.buf.Bytes()
	if i := bytes.LastIndex(body, []byte("</body>")); i != -1 {
		out := make([]byte, 0, len(body)+len(ClientScript))
		out = append(out, body[:i]...)
		out = append(out, []byte(ClientScript)...)
		out = append(out, body[i:]...)
		body = out
	} else {
		body = append(body, []byte(ClientScript)...)
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.Write(body)
}
