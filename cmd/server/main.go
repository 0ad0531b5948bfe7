package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/assurelog/internal/auth"
	"github.com/JonMunkholm/assurelog/internal/blob"
	"github.com/JonMunkholm/assurelog/internal/config"
	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
	"github.com/JonMunkholm/assurelog/internal/render"
	"github.com/JonMunkholm/assurelog/internal/store"
	"github.com/JonMunkholm/assurelog/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver(),
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database", "dialect", db.Dialect().String(), "migrations_applied", applied)

	blobs, err := blob.NewFS(cfg.Storage.UploadsDir)
	if err != nil {
		slog.Error("failed to open evidence storage", "error", err)
		os.Exit(1)
	}

	artifacts, err := render.NewArtifactWriter(cfg.Storage.GeneratedDir, blobs)
	if err != nil {
		slog.Error("failed to open document storage", "error", err)
		os.Exit(1)
	}
	artifacts.MaxEvidenceBytes = cfg.Storage.MaxEvidenceSize

	statuses, err := core.LoadStatusTable(cfg.Import.StatusSynonymsFile)
	if err != nil {
		slog.Error("failed to load status synonyms", "error", err)
		os.Exit(1)
	}
	slog.Info("status synonyms loaded", "count", statuses.Len())

	service := core.NewService(db, blobs, core.Options{
		Renderer:        artifacts,
		Limiter:         core.NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		Statuses:        statuses,
		MaxImportSize:   cfg.Import.MaxFileSize,
		MaxEvidenceSize: cfg.Storage.MaxEvidenceSize,
	})

	tokens, err := auth.NewTokens(cfg.Security.JWTSecret)
	if err != nil {
		slog.Error("failed to configure token verification", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(web.Deps{
		Service: service,
		Tokens:  tokens,
		Blobs:   blobs,
		DB:      db,
		Config:  cfg,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running imports and renders finish before the listener closes.
		limiter := service.Limiter()
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for operations to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("operations did not complete in time", "error", err)
			} else {
				slog.Info("all operations completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
