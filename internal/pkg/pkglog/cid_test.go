package pkglog

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelationID(ctx); got != "[invalid_chain_id]" {
		t.Fatalf("expected invalid chain id, got %q", got)
	}

	ctx = SetCorrelationID(ctx, "cid-123")
	if got := GetCorrelationID(ctx); got != "cid-123" {
		t.Fatalf("expected cid-123, got %q", got)
	}
}

func TestDetachKeepsCorrelationIDOnly(t *testing.T) {
	reqCtx, cancel := context.WithCancel(SetCorrelationID(context.Background(), "cid-req"))
	cancel()

	detached := Detach(context.Background(), reqCtx)
	if detached.Err() != nil {
		t.Fatalf("expected detached context to outlive request, got %v", detached.Err())
	}
	if got := GetCorrelationID(detached); got != "cid-req" {
		t.Fatalf("expected cid-req, got %q", got)
	}

	if got := GetCorrelationID(Detach(context.Background(), context.Background())); got != "[invalid_chain_id]" {
		t.Fatalf("expected no correlation id, got %q", got)
	}
}
