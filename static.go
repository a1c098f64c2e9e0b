package arbor

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/arbor-web/arbor/pkg/router"
)

// staticProc serves one static target on GET/HEAD with strong validators.
// The ETag is a content hash recomputed only when the file's modification
// time changes, and the stat itself is throttled by the configured
// freshness interval rather than performed on every request.
func (a *App) staticProc(src string) router.Proc {
	sf := &staticFile{path: src, freshness: a.cfg.Static.Freshness}
	cacheControl := a.cfg.Static.CacheControl
	if a.cfg.DevMode {
		cacheControl = "no-store, no-cache, must-revalidate"
	}

	return func(w http.ResponseWriter, r *http.Request, _ router.Params) error {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			return errMethodNotAllowed(r.Method)
		}

		etag, mtime, err := sf.validators()
		if err != nil {
			if os.IsNotExist(err) {
				return errNotFound()
			}
			return err
		}

		f, err := os.Open(sf.path)
		if err != nil {
			if os.IsNotExist(err) {
				return errNotFound()
			}
			return err
		}
		defer f.Close()

		if cacheControl != "" {
			w.Header().Set("Cache-Control", cacheControl)
		}
		w.Header().Set("ETag", etag)
		http.ServeContent(w, r, filepath.Base(sf.path), mtime, f)
		return nil
	}
}

// staticFile caches a static target's validators across requests.
type staticFile struct {
	path      string
	freshness time.Duration

	mu      sync.Mutex
	checked time.Time
	mtime   time.Time
	etag    string
}

// validators returns the current ETag and modification time, re-checking
// the file at most once per freshness interval and re-hashing only when
// the modification time moved.
func (s *staticFile) validators() (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.etag != "" && now.Sub(s.checked) < s.freshness {
		return s.etag, s.mtime, nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return "", time.Time{}, err
	}
	s.checked = now

	if s.etag != "" && info.ModTime().Equal(s.mtime) {
		return s.etag, s.mtime, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", time.Time{}, err
	}

	s.mtime = info.ModTime()
	s.etag = fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum64()))
	return s.etag, s.mtime, nil
}
