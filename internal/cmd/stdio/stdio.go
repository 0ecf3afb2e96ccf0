// Package stdio parses stdio command flags and runs the line-delimited
// protocol loop over standard input and output.
package stdio

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/louisbranch/gridlock/internal/coordinator"
	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
	entrypoint "github.com/louisbranch/gridlock/internal/platform/cmd"
	"github.com/louisbranch/gridlock/internal/rpc"
	"github.com/louisbranch/gridlock/internal/storage/sqlite"
	stdiotransport "github.com/louisbranch/gridlock/internal/transport/stdio"
)

// Config holds stdio command configuration.
type Config struct {
	DBPath            string        `env:"GRIDLOCK_DB_PATH" envDefault:"gridlock.db"`
	ReconcileInterval time.Duration `env:"GRIDLOCK_RECONCILE_INTERVAL" envDefault:"250ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "Store polling cadence for external changes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves request lines from stdin until EOF or cancellation.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStdio, func(ctx context.Context) error {
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
		dispatcher := rpc.NewDispatcher(coord, feed, game.OriginAgent)

		return stdiotransport.New(dispatcher, os.Stdin, os.Stdout).Run(ctx)
	})
}
