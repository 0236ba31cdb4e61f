package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exchange_bridge/config"
	"exchange_bridge/core/domain"
	"exchange_bridge/internal/bootstrap"
	"exchange_bridge/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development). Must happen
	// before config.Load so file values are visible as env vars.
	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Config{Level: logger.LevelInfo, Service: "exchange-bridge"})
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "exchange-bridge",
	})
	if !envLoaded {
		logger.Debug("No .env file found, using environment variables")
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to wire dependencies: %v", err)
	}
	defer cleanup()

	// Probe Exchange once before serving. Bad credentials won't fix
	// themselves, so they are fatal; a flaky connection is left to the
	// poll loop to retry.
	validateCtx, validateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = deps.Provider.Validate(validateCtx)
	validateCancel()
	switch {
	case err == nil:
		logger.Info("Exchange connection validated for %s", cfg.Email)
	case domain.IsAuthError(err):
		logger.Fatal("Exchange authentication failed: %v", err)
	default:
		logger.Warn("Exchange unreachable at startup, will retry: %v", err)
	}

	app, err := bootstrap.NewAPI(cfg, deps)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	coordinatorDone := make(chan struct{})
	go func() {
		defer close(coordinatorDone)
		deps.Coordinator.Run(ctx)
	}()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down (timeout: %v)...", shutdownTimeout)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}

	select {
	case <-coordinatorDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("Coordinator shutdown timed out")
	}
}
