package config

import (
	"os"
	"testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestParseDefaults(t *testing.T) {
	unsetEnv(t, "PORT", "ENV", "VIRAG_API_URL", "NGROK_URL", "VIRAG_TIMEOUT_SECONDS", "REPORT_URL_TTL_SECONDS")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != "3000" {
		t.Fatalf("expected port 3000, got %q", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.ViragTimeoutSeconds != 10 {
		t.Fatalf("expected 10s virag timeout, got %d", cfg.ViragTimeoutSeconds)
	}
	if cfg.ReportURLTTLSeconds != 3600 {
		t.Fatalf("expected 3600s url ttl, got %d", cfg.ReportURLTTLSeconds)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestParseLegacyNgrokURL(t *testing.T) {
	unsetEnv(t, "VIRAG_API_URL")
	t.Setenv("NGROK_URL", "https://abc.ngrok.app/")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ViragAPIURL != "https://abc.ngrok.app" {
		t.Fatalf("unexpected virag url: %q", cfg.ViragAPIURL)
	}
}

func TestParseNormalizesValues(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("PDF_ENGINE", "fpdf")
	t.Setenv("CORS_ALLOW_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3, got %q", cfg.ObjectStoreType)
	}
	if cfg.PDFEngine != "basic" {
		t.Fatalf("expected basic, got %q", cfg.PDFEngine)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %#v", cfg.CORSAllowOrigin)
	}
}

func TestValidateRejectsPublicSigningKeyOutsideDev(t *testing.T) {
	unsetEnv(t, "OBJECT_STORE", "LOCAL_STORE_SIGNING_KEY")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://x")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ObjectStoreType != "local" || cfg.LocalStoreSigningKey != DevSigningKey {
		t.Fatalf("unexpected defaults: store=%q key=%q", cfg.ObjectStoreType, cfg.LocalStoreSigningKey)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for default signing key in production")
	}

	cfg.LocalStoreSigningKey = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty signing key in production")
	}

	cfg.LocalStoreSigningKey = "a-private-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with private key: %v", err)
	}

	cfg.LocalStoreSigningKey = DevSigningKey
	cfg.ObjectStoreType = "s3"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("s3 store must not need a signing key: %v", err)
	}
}

func TestValidateRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := Config{Env: "staging", ObjectStoreType: "s3"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
	dev := Config{Env: "dev", ObjectStoreType: "local", LocalStoreSigningKey: DevSigningKey}
	if err := dev.Validate(); err != nil {
		t.Fatalf("dev defaults must validate: %v", err)
	}
}
