// Command exlog ingests transport log files from a directory tree into
// PostgreSQL or SQL Server.
//
// Usage:
//
//	exlog [-config file] [-concurrency n] [logs-dir]
//
// Settings come from the environment (optionally a .env file) and the config
// file. Re-running over the same files inserts nothing new.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgbm/exchange-log-parser/internal/config"
	"github.com/fgbm/exchange-log-parser/internal/core"
	_ "github.com/fgbm/exchange-log-parser/internal/core/tables" // Register all tables
	"github.com/fgbm/exchange-log-parser/internal/logging"
	"github.com/fgbm/exchange-log-parser/internal/storage"
	"github.com/fgbm/exchange-log-parser/internal/walk"
	"github.com/fgbm/exchange-log-parser/internal/web"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file (yaml, toml or json)")
	concurrency := flag.Int("concurrency", 0, "files processed in parallel (overrides INGEST_MAX_CONCURRENT)")
	flag.Parse()

	dotenv := loadDotEnv()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	if flag.NArg() > 0 {
		cfg.Ingest.LogsDir = flag.Arg(0)
	}
	if *concurrency > 0 {
		cfg.Ingest.MaxConcurrent = *concurrency
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	runID := uuid.NewString()
	ctx := logging.WithRun(context.Background(), runID)
	log := logging.FromContext(ctx)
	if dotenv {
		log.Debug("loaded .env file")
	}

	log.Info("configuration loaded",
		"db_kind", cfg.Database.Kind,
		"db_addr", cfg.Database.Addr(),
		"logs_dir", cfg.Ingest.LogsDir,
		"max_concurrent", cfg.Ingest.MaxConcurrent,
		"flush_rows", cfg.Ingest.FlushRows,
	)
	log.Debug("configuration", "config", cfg.String())

	if fi, err := os.Stat(cfg.Ingest.LogsDir); err != nil || !fi.IsDir() {
		log.Error("logs directory is not readable", "path", cfg.Ingest.LogsDir, "error", err)
		return 1
	}

	enc, err := core.ResolveEncoding(cfg.Ingest.Encoding)
	if err != nil {
		log.Error("unknown encoding", "encoding", cfg.Ingest.Encoding, "error", err)
		return 1
	}

	store, err := connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to prepare database", "error", err, "hint", core.FormatUserError(err))
		return 1
	}
	defer store.Close()

	log.Info("tables ready", "count", core.TableCount(), "prefix", cfg.Database.TablePrefix)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tally := core.NewTally(runID)
	sched := core.NewScheduler(store, core.SchedulerConfig{
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		FlushRows:     cfg.Ingest.FlushRows,
		WriteTimeout:  cfg.Ingest.WriteTimeout,
		Encoding:      enc,
		Logger:        log,
	})

	var status *web.Server
	if cfg.Status.Addr != "" {
		status = web.NewServer(cfg.Status, tally, sched.Limiter(), store)
		go func() {
			log.Info("status server starting", "addr", cfg.Status.Addr)
			if err := status.Start(); err != nil {
				log.Error("status server stopped", "error", err)
			}
		}()
	}

	paths, err := walk.Paths(ctx, cfg.Ingest.LogsDir, cfg.Ingest.Patterns)
	if err != nil {
		log.Error("invalid file patterns", "error", err)
		return 1
	}

	sched.Run(ctx, paths, tally)

	summary := tally.Snapshot()
	if summary.Cancelled {
		log.Warn("run cancelled; remaining files were not dispatched")
	}
	if _, err := summary.WriteTo(os.Stdout); err != nil {
		log.Error("failed to print summary", "error", err)
	}
	logTableCounts(context.WithoutCancel(ctx), store)

	if status != nil {
		status.MarkFinished()
		if err := status.Shutdown(context.Background()); err != nil {
			log.Error("status server shutdown error", "error", err)
		}
	}

	return 0
}

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() bool {
	return godotenv.Load() == nil
}

// connect opens the store and creates the schema within the connect timeout.
func connect(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// logTableCounts reports stored row totals. Counting scans whole tables, so
// it only runs at debug level.
func logTableCounts(ctx context.Context, store storage.Store) {
	log := logging.FromContext(ctx)
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	for _, f := range core.Families {
		n, err := store.Count(ctx, f)
		if err != nil {
			log.Warn("count failed", "family", f.String(), "error", err)
			continue
		}
		log.Debug("stored rows", "family", f.String(), "rows", n)
	}
}
