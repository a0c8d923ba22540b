package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/cloud"
	"projectstore/internal/config"
	"projectstore/internal/download"
	"projectstore/internal/endpoints"
	"projectstore/internal/gdrive"
	"projectstore/internal/recent"
	"projectstore/internal/server"
	"projectstore/internal/state"
	"projectstore/internal/storage"
	"projectstore/internal/stubs"
)

func main() {
	// Initialize structured logging
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	autoSaveCache, err := state.NewAutoSaveCache(ctx, config.AutoSaveBackend)
	if err != nil {
		slog.Error("Failed to open autosave cache", "backend", config.AutoSaveBackend, "error", err)
		os.Exit(1)
	}
	if autoSaveCache != nil {
		defer autoSaveCache.Close()
	}

	sink, err := download.NewDirSink(config.DownloadDir, "/api/downloads/")
	if err != nil {
		slog.Error("Failed to prepare download directory", "error", err)
		os.Exit(1)
	}

	recentStore, err := recent.NewStore(config.RecentProjectsDBPath, config.RecentProjectsLimit)
	if err != nil {
		slog.Error("Failed to open recent projects database", "error", err)
		os.Exit(1)
	}
	defer recentStore.Close()

	auth0 := auth.NewAuth0Client(auth.GetAuth0Config(), nil)
	registry, err := storage.NewRegistry(
		cloud.NewStorageProvider(cloud.NewClient(), cloud.NewS3BlobStore(nil), autoSaveCache,
			cloud.WithGraceWindow(config.AutoSaveGraceWindow)),
		gdrive.NewStorageProvider(gdrive.NewLoader(nil), gdrive.ServerSignIn(auth.NewAuth0GoogleTokenProvider(auth0))),
		stubs.NewDropboxProvider(),
		stubs.NewOneDriveProvider(),
		download.NewStorageProvider(sink),
	)
	if err != nil {
		slog.Error("Failed to register storage providers", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	srv := server.NewServer(port, &endpoints.Handlers{
		Registry:  registry,
		Recent:    recentStore,
		Downloads: sink,
	}, endpoints.Auth0Middleware(),
		server.WithAllowedOrigins(config.CORSAllowedOrigins...),
		server.WithMaxBodyBytes(config.MaxRequestBytes))

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("Project storage HTTP server started", "port", port, "autosave_backend", config.AutoSaveBackend)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	} else {
		slog.Info("Server exited gracefully")
	}
}
