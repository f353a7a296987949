package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bugtracker/internal/config"
	"bugtracker/internal/server"
	"bugtracker/internal/storage/memory"
	"bugtracker/internal/storage/postgres"
	"bugtracker/internal/storage/sqlite"
	"bugtracker/internal/tracker"
)

// backend is a tracker.Store that owns a connection.
type backend interface {
	tracker.Store
	Ping(ctx context.Context) error
	Close() error
}

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the REST API and, when the static directory holds a built
frontend, serve it on the same address.

Example:
  bugtracker serve --addr :3000
  BUGTRACKER_DB_DRIVER=postgres BUGTRACKER_DB_DSN=postgres://... bugtracker serve`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("bugtracker starting", slog.String("version", Version), slog.String("driver", cfg.DB.Driver))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DB, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	svc := tracker.New(store, logger)
	srv := server.New(svc, store, logger, server.Options{
		StaticDir: cfg.StaticDir,
		Metrics:   cfg.Metrics,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, db config.DB, logger *slog.Logger) (backend, error) {
	switch db.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, db.Path, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, db.DSN, logger)
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", db.Driver)
}
