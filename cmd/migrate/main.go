// Command migrate applies pending schema migrations to the configured SQL database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/quillpost/quillpost-go/internal/config"
	"github.com/quillpost/quillpost-go/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	dialect, err := repository.ParseDialect(cfg.Store.Driver)
	if err != nil {
		slog.Error("store driver has no SQL schema", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := repository.NewDB(ctx, dialect, cfg.Store.DatabaseDSN)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		slog.Error("migration failed", "error", err)
		db.Close()
		os.Exit(1)
	}
	slog.Info("migrations applied", "dialect", dialect.String())
}
