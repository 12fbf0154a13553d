package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorFlattensErrorValues(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Error("report.render.failed", map[string]any{
		"analysis_id": "abc123",
		"error":       errors.New("chrome exited"),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["error"] != "chrome exited" {
		t.Fatalf("unexpected error field: %v", ctx["error"])
	}
	if ctx["analysis_id"] != "abc123" {
		t.Fatalf("unexpected analysis_id: %v", ctx["analysis_id"])
	}
}
