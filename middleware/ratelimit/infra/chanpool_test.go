package infra

import (
	"context"
	"testing"
	"time"
)

func TestChanPool_NilWhenUnlimited(t *testing.T) {
	if p := NewChanPool(0); p != nil {
		t.Fatalf("expected nil pool for max=0")
	}
}

func TestChanPool_BlocksWhenFull(t *testing.T) {
	p := NewChanPool(1)

	release, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to fail while slot is held")
	}

	release()
	release() // segundo release não pode liberar vaga extra

	if got := p.(*chanPool).InFlight(); got != 0 {
		t.Fatalf("expected 0 in flight, got %d", got)
	}
	if _, ok := p.Acquire(context.Background()); !ok {
		t.Fatalf("expected acquire after release")
	}
}
