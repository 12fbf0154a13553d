package main

import (
	"os"
	"strings"
	"testing"
)

func TestRunReturnsBootstrapErrors(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	_ = os.Unsetenv("DATABASE_URL")

	err := run()
	if err == nil {
		t.Fatalf("expected error for production without DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("unexpected error: %v", err)
	}
}
