package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/idgen"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/itemservice"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/watch"
)

// Run starts the engine with the given options: it opens the file root and
// the index, rebuilds the index from the files, and (when enabled) keeps
// watching the files for external edits until a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("data_path", cfg.Data.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the record file root exists.
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Open the SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	reg := registry.New(db)
	alloc := idgen.New(db, logger)
	svc := itemservice.New(cfg.Data.Path, db, reg, alloc, logger)

	// Initial rebuild: the index is a disposable cache of the files.
	if n, err := svc.RebuildAll(); err != nil {
		logger.Warn("initial rebuild failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Index rebuilt from files", slog.Int("records", n))
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Watch(gCtx, cfg.Data.Path, svc, logger)
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Engine stopped successfully")
	return nil
}
