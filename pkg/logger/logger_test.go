package logger

import (
	"context"
	"testing"
)

func TestInit(t *testing.T) {
	if err := Init("development"); err != nil {
		t.Fatalf("failed to init development logger: %v", err)
	}
	if err := Init("production"); err != nil {
		t.Fatalf("failed to init production logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("Get returned nil after Init")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "req-123")
	if got := CorrelationIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty correlation ID, got %q", got)
	}
}
