package arbor

import (
	"log/slog"
	"path/filepath"
	"time"
)

// Config is the main application configuration.
type Config struct {
	// Root is the directory whose tree defines the routes. Required.
	Root string

	// Mount is the URL path the tree is mounted at. Default "/".
	Mount string

	// LayoutDir is the directory holding document layout templates.
	// Default: _layouts under Root.
	LayoutDir string

	// DevMode relaxes caching and enables live-reload support.
	DevMode bool

	// Logger is the structured logger for the application.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Static configures static target serving.
	Static StaticConfig

	// RebuildDebounce is how long after the last file change the routing
	// tree rebuild fires. Rapid successive changes coalesce into one
	// rebuild. Default 100ms.
	RebuildDebounce time.Duration
}

// StaticConfig configures static file targets.
type StaticConfig struct {
	// Freshness is the minimum interval between modification-time checks
	// for a served file's ETag. Within the interval the cached validator
	// is trusted. Default 1s.
	Freshness time.Duration

	// CacheControl, when set, is sent verbatim on static responses.
	CacheControl string
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.Mount == "" {
		c.Mount = "/"
	}
	if c.LayoutDir == "" {
		c.LayoutDir = filepath.Join(c.Root, "_layouts")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Static.Freshness == 0 {
		c.Static.Freshness = time.Second
	}
	if c.RebuildDebounce == 0 {
		c.RebuildDebounce = 100 * time.Millisecond
	}
	return c
}
