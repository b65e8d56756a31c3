package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"membership/internal/app"
	"membership/internal/config"
	"membership/internal/logging"
	"membership/internal/worker"
)

// Worker rebuilds cached insights whenever members or attendance change.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.QueueBackend != "redis" {
		return fmt.Errorf("worker needs QUEUE_BACKEND=redis; the api consumes its own in-memory queue")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// Warm the cache once so the first dashboard read is a hit.
	if err := a.Insights.Refresh(ctx); err != nil {
		log.Warn("initial refresh failed", zap.Error(err))
	}
	return worker.Run(ctx, a.Queue, a.Insights, log)
}
