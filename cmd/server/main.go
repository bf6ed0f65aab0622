package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jaki95/check-engine/config"
	"github.com/jaki95/check-engine/internal/check"
	"github.com/jaki95/check-engine/internal/server"
	"github.com/jaki95/check-engine/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to the configuration file")
	port := flag.String("port", "", "Server port (overrides the configuration)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to create storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	srv := server.New(cfg, archive, check.NewFixtureChecker(archive, cfg.Server.StepDelay))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return srv.RunCleanup(gctx, server.CleanupInterval) })

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
