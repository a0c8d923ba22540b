package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projectstore/internal/config"
	"projectstore/internal/download"
	"projectstore/internal/recent"
)

func main() {
	// Initialize structured logging with JSON handler
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sink, err := download.NewDirSink(config.DownloadDir, "")
	if err != nil {
		slog.Error("Failed to open download directory", "error", err)
		os.Exit(1)
	}

	recentStore, err := recent.NewStore(config.RecentProjectsDBPath, config.RecentProjectsLimit)
	if err != nil {
		slog.Error("Failed to open recent projects database", "error", err)
		os.Exit(1)
	}
	defer recentStore.Close()

	cleanupTicker := time.NewTicker(config.CleanupInterval)
	defer cleanupTicker.Stop()

	slog.Info("Worker started", "interval", config.CleanupInterval)
	cleanup(ctx, sink, recentStore)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context cancelled, shutting down")
			return
		case sig := <-sigChan:
			slog.Info("Received signal, shutting down gracefully", "signal", sig)
			cancel()
			return
		case <-cleanupTicker.C:
			cleanup(ctx, sink, recentStore)
		}
	}
}

// cleanup removes expired download offers and forgets stale recent projects.
func cleanup(ctx context.Context, sink *download.DirSink, recentStore *recent.Store) {
	slog.Info("Running scheduled cleanup")
	now := time.Now()

	removed, err := sink.Sweep(ctx, now.Add(-config.DownloadTTL))
	if err != nil {
		slog.Error("Failed to sweep downloads", "error", err)
	} else if removed > 0 {
		slog.Info("Removed expired downloads", "count", removed)
	}

	pruned, err := recentStore.PruneBefore(ctx, now.Add(-config.RecentProjectsMaxAge))
	if err != nil {
		slog.Error("Failed to prune recent projects", "error", err)
	} else if pruned > 0 {
		slog.Info("Pruned recent projects", "count", pruned)
	}
}
