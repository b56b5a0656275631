// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestForInvocationAddsFields checks the request and trace ids are attached.
func TestForInvocationAddsFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForInvocation(zap.New(core), crawler.Invocation{RequestID: "req-1", TraceID: "Root=1-abc"}).Info("step")
	ForInvocation(zap.New(core), crawler.Invocation{RequestID: "req-2"}).Info("step")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["request_id"] != "req-1" || first["trace_id"] != "Root=1-abc" {
		t.Fatalf("unexpected fields %v", first)
	}
	second := entries[1].ContextMap()
	if _, ok := second["trace_id"]; ok || second["request_id"] != "req-2" {
		t.Fatalf("unexpected fields %v", second)
	}
}
