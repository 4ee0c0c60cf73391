package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"servicewatch/internal/api"
	"servicewatch/internal/config"
	"servicewatch/internal/health"
	"servicewatch/internal/probe"
	"servicewatch/internal/scheduler"
	"servicewatch/internal/scheduling"
	"servicewatch/internal/storage"
	"servicewatch/internal/storage/postgres"
	"servicewatch/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application failed: %v", err)
	}
	log.Println("application shut down gracefully")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Context canceled on SIGINT/SIGTERM drives graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store storage.Storer
	var closeStore func()
	switch cfg.DatabaseDriver {
	case "postgres":
		log.Println("initializing PostgreSQL connection pool...")
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		store, closeStore = pg, pg.Close
	case "sqlite":
		log.Println("initializing SQLite database connection...")
		sq, err := sqlite.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		store, closeStore = sq, func() { sq.Close() }
	default:
		return fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	defer closeStore()
	log.Println("database connection successful")

	prober := probe.New(cfg.ProbeTimeout)
	orchestrator := health.NewOrchestrator(store, prober)
	schedulingSvc := scheduling.NewService(store)
	observationLoop := scheduler.New(store, orchestrator, cfg.SchedulerTick)
	server := api.NewServer(cfg.HTTPPort, store, orchestrator, schedulingSvc)

	observationLoop.Start()
	server.Start()

	log.Println("application is running...")
	<-ctx.Done()

	log.Println("shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	// Stop the observation loop first so no new batches start.
	observationLoop.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}

	return nil
}
