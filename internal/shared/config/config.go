package config

import (
	"errors"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string   `env:"PORT" envDefault:"3000"`
	Env             string   `env:"ENV" envDefault:"dev"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
	DatabaseURL     string   `env:"DATABASE_URL"`
	AutoMigrate     bool     `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	ObjectStoreType      string `env:"OBJECT_STORE" envDefault:"local"`
	LocalStoreDir        string `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	LocalStoreBaseURL    string `env:"LOCAL_STORE_BASE_URL" envDefault:"http://localhost:3000/files"`
	LocalStoreSigningKey string `env:"LOCAL_STORE_SIGNING_KEY" envDefault:"dev-signing-key"`
	AWSRegion            string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpoint          string `env:"AWS_ENDPOINT"`
	AWSAccessKeyID       string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Bucket             string `env:"S3_BUCKET_NAME"`
	S3Prefix             string `env:"S3_PREFIX"`

	ViragAPIURL         string `env:"VIRAG_API_URL"`
	ViragAPIKey         string `env:"VIRAG_API_KEY"`
	ViragTimeoutSeconds int    `env:"VIRAG_TIMEOUT_SECONDS" envDefault:"10"`

	PDFEngine         string `env:"PDF_ENGINE" envDefault:"chrome"`
	ChromePath        string `env:"CHROME_PATH"`
	PDFTimeoutSeconds int    `env:"PDF_TIMEOUT_SECONDS" envDefault:"60"`

	ReportURLTTLSeconds int `env:"REPORT_URL_TTL_SECONDS" envDefault:"3600"`

	ReportsQueueURL        string `env:"REPORTS_SQS_QUEUE_URL"`
	WorkerConcurrency      int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30"`
}

// DevSigningKey is the default local-store signing key. It is public and only
// accepted in dev-like environments.
const DevSigningKey = "dev-signing-key"

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}

	return Parse()
}

// Parse reads configuration from the current environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}

	// NGROK_URL is the legacy name of the analysis service base URL.
	if strings.TrimSpace(cfg.ViragAPIURL) == "" {
		cfg.ViragAPIURL = os.Getenv("NGROK_URL")
	}
	cfg.ViragAPIURL = strings.TrimRight(strings.TrimSpace(cfg.ViragAPIURL), "/")
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.PDFEngine = normalizePDFEngine(cfg.PDFEngine)
	cfg.CORSAllowOrigin = trimAll(cfg.CORSAllowOrigin)
	if cfg.ReportURLTTLSeconds <= 0 {
		cfg.ReportURLTTLSeconds = 3600
	}
	return cfg, nil
}

// Validate rejects settings that are only safe in dev-like environments.
func (c Config) Validate() error {
	if c.IsDevLike() {
		return nil
	}
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required outside dev"))
	}
	if c.ObjectStoreType == "local" {
		key := strings.TrimSpace(c.LocalStoreSigningKey)
		if key == "" || key == DevSigningKey {
			errs = append(errs, errors.New("OBJECT_STORE=local requires a private LOCAL_STORE_SIGNING_KEY outside dev"))
		}
	}
	return errors.Join(errs...)
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizePDFEngine(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "basic", "fpdf":
		return "basic"
	default:
		return "chrome"
	}
}
