package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/queue"
	"construction-monitor/internal/reports"
	"construction-monitor/internal/shared/config"
	"construction-monitor/internal/shared/server"
	"construction-monitor/internal/shared/storage/db"
	"construction-monitor/internal/shared/storage/object"
	localstore "construction-monitor/internal/shared/storage/object/local"
	s3store "construction-monitor/internal/shared/storage/object/s3"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/internal/virag"
	"construction-monitor/report/pdf"
)

const (
	dbConnectAttempts = 5
	dbConnectWait     = 2 * time.Second
)

// App holds the process-wide dependencies shared by the API and the worker.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Store          object.Store
	Files          *localstore.Store
	Queue          queue.Client
	Consumer       queue.Consumer
	Virag          *virag.Client
	PDF            pdf.Generator
	ObrasRepo      obras.Repo
	ReportsRepo    reports.Repo
	ReportsService *reports.Service
	ReportsHandler *reports.Handler
}

// Build connects every dependency once and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	if err := app.buildStore(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildQueue(ctx); err != nil {
		app.Close()
		return nil, err
	}

	viragClient, err := virag.NewClient(cfg.ViragAPIURL, cfg.ViragAPIKey, time.Duration(cfg.ViragTimeoutSeconds)*time.Second)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("virag client: %w", err)
	}
	app.Virag = viragClient

	gen, err := pdf.New(pdf.Options{
		Engine:     cfg.PDFEngine,
		ChromePath: cfg.ChromePath,
		Timeout:    time.Duration(cfg.PDFTimeoutSeconds) * time.Second,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.PDF = gen

	app.buildServices()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		ReportsHandler: app.ReportsHandler,
		Files:          app.Files,
		Checks:         app.healthChecks(),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"database":     app.DB != nil,
		"object_store": cfg.ObjectStoreType,
		"pdf_engine":   cfg.PDFEngine,
		"queue":        app.Queue != nil,
	})
	return app, nil
}

// Close releases the browser and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.PDF != nil {
		errs = append(errs, a.PDF.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL, opts, dbConnectAttempts, dbConnectWait)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func (a *App) buildStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("s3 store: %w", err)
		}
		a.Store = store
	default:
		files := localstore.New(cfg.LocalStoreDir, cfg.LocalStoreBaseURL, cfg.LocalStoreSigningKey)
		a.Store = files
		a.Files = files
	}
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	cfg := a.Config
	if strings.TrimSpace(cfg.ReportsQueueURL) != "" {
		client, err := queue.NewSQSClient(ctx, queue.SQSOptions{
			QueueURL:        cfg.ReportsQueueURL,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("sqs queue: %w", err)
		}
		a.Queue = client
		a.Consumer = client
		return nil
	}
	if cfg.IsDevLike() {
		mem := queue.NewMemoryQueue()
		a.Queue = mem
		a.Consumer = mem
	}
	return nil
}

func (a *App) buildServices() {
	if a.DB != nil {
		a.ObrasRepo = &obras.PGRepo{DB: a.DB}
		a.ReportsRepo = &reports.PGRepo{DB: a.DB}
	} else {
		a.ObrasRepo = obras.NewMemoryRepo()
		a.ReportsRepo = reports.NewMemoryRepo()
	}

	a.ReportsService = &reports.Service{
		Repo:    a.ReportsRepo,
		Obras:   a.ObrasRepo,
		Fetcher: a.Virag,
		Store:   a.Store,
		PDF:     a.PDF,
		URLTTL:  time.Duration(a.Config.ReportURLTTLSeconds) * time.Second,
	}
	a.ReportsHandler = reports.NewHandler(a.ReportsService, a.Queue)
}

func (a *App) healthChecks() map[string]server.Check {
	checks := map[string]server.Check{
		"virag": a.Virag.Health,
	}
	if a.DB != nil {
		checks["database"] = a.DB.PingContext
	}
	return checks
}

// InProcessQueue reports whether the queue lives in this process and needs a local worker.
func (a *App) InProcessQueue() bool {
	_, ok := a.Consumer.(*queue.MemoryQueue)
	return ok
}
