package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := obs.SwapLogger(zap.New(core))
	defer restore()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{ID: "user-42", Email: "ana@example.com", Type: auth.TypeUser})

	if err := LogEvent(ctx, "purchase.created", map[string]any{"product_id": "p-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	got := entries[0].ContextMap()
	if got["type"] != "audit" {
		t.Fatalf("unexpected type: %v", got["type"])
	}
	if got["event"] != "purchase.created" {
		t.Fatalf("unexpected event: %v", got["event"])
	}
	if got["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", got["request_id"])
	}
	if got["principal_id"] != "user-42" || got["principal_type"] != "user" {
		t.Fatalf("principal not enriched: %v", got)
	}
	fields, ok := got["fields"].(map[string]any)
	if !ok || fields["product_id"] != "p-1" {
		t.Fatalf("fields missing or incorrect: %v", got["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
