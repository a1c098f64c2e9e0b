package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arbor-web/arbor"
	"github.com/arbor-web/arbor/internal/dev"
)

func devCmd() *cobra.Command {
	var (
		addr  string
		mount string
	)

	cmd := &cobra.Command{
		Use:   "dev [root]",
		Short: "Serve with file watching and live reload",
		Long: `Serve a site directory in development mode.

Changed files invalidate cached handlers and rebuild the routing
tree, and connected browsers reload over a WebSocket channel.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runDev(root, addr, mount)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from arbor.yaml)")
	cmd.Flags().StringVarP(&mount, "mount", "m", "", "URL path to mount the tree at")

	return cmd
}

func runDev(root, addr, mount string) error {
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	app, err := arbor.New(arbor.Config{
		Root:            root,
		Mount:           mount,
		DevMode:         true,
		Logger:          logger,
		RebuildDebounce: settings.GetDuration("debounce"),
	})
	if err != nil {
		return err
	}

	broker := dev.NewBroker()
	defer broker.Close()

	app.OnReload(func(err error) {
		if err != nil {
			broker.NotifyError(err.Error())
			return
		}
		broker.NotifyReload()
	})

	watcher, err := dev.NewWatcher(root, logger, func(ev dev.Event) {
		logger.Debug("file changed", "path", ev.Path, "kind", ev.Kind)
		app.FileChanged(ev.Path)
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watcher.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(dev.ReloadPath, broker.HandleWebSocket)
	mux.Handle("/", dev.InjectScript(app))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev server running", "addr", addr, "root", root, "mount", mount)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
