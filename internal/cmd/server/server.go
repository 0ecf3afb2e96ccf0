// Package server parses server command flags and starts the HTTP runtime.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/gridlock/internal/coordinator"
	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
	entrypoint "github.com/louisbranch/gridlock/internal/platform/cmd"
	"github.com/louisbranch/gridlock/internal/rpc"
	"github.com/louisbranch/gridlock/internal/storage/sqlite"
	"github.com/louisbranch/gridlock/internal/transport/httpapi"
)

const shutdownTimeout = 5 * time.Second

// Config holds server command configuration.
type Config struct {
	DBPath            string        `env:"GRIDLOCK_DB_PATH" envDefault:"gridlock.db"`
	Port              int           `env:"GRIDLOCK_PORT" envDefault:"7397"`
	Addr              string        `env:"GRIDLOCK_ADDR"`
	ReconcileInterval time.Duration `env:"GRIDLOCK_RECONCILE_INTERVAL" envDefault:"250ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address (overrides -port)")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "Store polling cadence for external changes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the HTTP and SSE surface.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		feed := notifier.New(store, cfg.ReconcileInterval)
		go feed.Run(ctx)

		coord := coordinator.New(store, feed)
		dispatcher := rpc.NewDispatcher(coord, feed, game.OriginUI)

		addr := cfg.Addr
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.Port)
		}
		httpServer := &http.Server{
			Addr:    addr,
			Handler: httpapi.New(dispatcher, feed).Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("listening on %s", addr)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})
}
