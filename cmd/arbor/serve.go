package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arbor-web/arbor"
	"github.com/arbor-web/arbor/pkg/middleware"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		mount   string
		metrics bool
		tracing bool
	)

	cmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve a site directory",
		Long: `Serve the routing tree built from a site directory.

Examples:
  arbor serve ./site
  arbor serve ./site --addr=:3000 --mount=/docs
  arbor serve ./site --metrics`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runServe(cmd, root, addr, mount, metrics, tracing, false)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from arbor.yaml)")
	cmd.Flags().StringVarP(&mount, "mount", "m", "", "URL path to mount the tree at")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Enable OpenTelemetry tracing")

	return cmd
}

func runServe(cmd *cobra.Command, root, addr, mount string, metrics, tracing, devMode bool) error {
	settings, err := loadSettings(root)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = settings.GetString("addr")
	}
	if mount == "" {
		mount = settings.GetString("mount")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app, err := arbor.New(arbor.Config{
		Root:            root,
		Mount:           mount,
		DevMode:         devMode,
		Logger:          logger,
		RebuildDebounce: settings.GetDuration("debounce"),
	})
	if err != nil {
		return err
	}

	var handler http.Handler = app
	if tracing {
		handler = middleware.Tracing()(handler)
	}

	mux := http.NewServeMux()
	if metrics {
		handler = middleware.Metrics()(handler)
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", handler)

	logger.Info("serving", "addr", addr, "root", root, "mount", mount)
	fmt.Fprintf(cmd.OutOrStdout(), "arbor listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}
