package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"construction-monitor/internal/bootstrap"
	"construction-monitor/internal/shared/config"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/internal/workerproc"
)

func main() {
	if err := run(); err != nil {
		telemetry.Error("worker.exit", map[string]any{"error": err})
		telemetry.Sync()
		os.Exit(1)
	}
	telemetry.Sync()
}

func run() error {
	cfg, err := config.Load()
	telemetry.Init(cfg.Env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap build: %w", err)
	}
	defer app.Close()

	w := &workerproc.Worker{
		Consumer:    app.Consumer,
		Processor:   app.ReportsService,
		Concurrency: cfg.WorkerConcurrency,
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	telemetry.Info("worker.shutdown", map[string]any{"timeout_s": shutdownTimeout.Seconds()})
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
		return nil
	}
}

func validate(cfg config.Config) error {
	if strings.TrimSpace(cfg.ReportsQueueURL) == "" {
		return errors.New("REPORTS_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(cfg.ViragAPIURL) == "" {
		return errors.New("VIRAG_API_URL is required")
	}
	return nil
}
