package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"construction-monitor/internal/bootstrap"
	"construction-monitor/internal/shared/config"
	"construction-monitor/internal/shared/server"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/internal/workerproc"
)

func main() {
	if err := run(); err != nil {
		telemetry.Error("api.exit", map[string]any{"error": err})
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap build: %w", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.listening", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		telemetry.Info("api.shutdown", map[string]any{"timeout_s": shutdownTimeout.Seconds()})
		return srv.Shutdown(shutdownCtx)
	})
	if app.InProcessQueue() {
		w := &workerproc.Worker{
			Consumer:    app.Consumer,
			Processor:   app.ReportsService,
			Concurrency: cfg.WorkerConcurrency,
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	return g.Wait()
}
