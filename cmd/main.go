package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	lsmhttp "tinylsm/internal/http"
	"tinylsm/pkg/metrics"
	"tinylsm/pkg/store"
)

const statsInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	dataDir := flag.String("data", "", "store directory, overrides db.path")
	flag.Parse()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DB.Path = *dataDir
	}
	logger := initLogger(&cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metrics.NewRegistry()

	db, err := store.Open(cfg.DB.Path, cfg.DB, store.WithLogger(logger), store.WithMetrics(registry))
	if err != nil {
		slog.Error("Failed to open store", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}

	server := lsmhttp.NewServer(db, strconv.Itoa(cfg.Server.Port),
		lsmhttp.WithMetricsHandler(registry.Handler()),
		lsmhttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
	)
	if err := server.Start(); err != nil {
		slog.Error("Failed to start server", "error", err)
		_ = db.Close()
		os.Exit(1)
	}

	go refreshStats(ctx, db)

	slog.Info("tinylsm running", "data", cfg.DB.Path, "url", server.URL)

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("Error stopping server", "error", err)
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing store", "error", err)
		os.Exit(1)
	}

	slog.Info("tinylsm stopped")
}

// refreshStats keeps the size and amplification gauges current between
// /api/stats calls.
func refreshStats(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := db.Stats(); err != nil {
				slog.Warn("Failed to refresh stats", "error", err)
				return
			}
		}
	}
}
