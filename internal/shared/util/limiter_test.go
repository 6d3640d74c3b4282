package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}
	if d := l.Delay(1); d <= 0 || d > 150*time.Millisecond {
		t.Errorf("expected a short positive delay, got %v", d)
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow(1) {
			t.Fatalf("expected unlimited limiter to allow event %d", i)
		}
	}
	if d := l.Delay(1); d != 0 {
		t.Fatalf("expected no delay, got %v", d)
	}
}

func TestLimiter_NilAllows(t *testing.T) {
	var l *Limiter
	if !l.Allow(1) {
		t.Fatal("expected nil limiter to allow")
	}
	if err := l.Wait(context.Background(), 1); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewLimiter(0.5, 1)
	l.Allow(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, 1); err == nil {
		t.Fatal("expected wait to fail when the context expires first")
	}
}
