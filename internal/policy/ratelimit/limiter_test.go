package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_Delay(t *testing.T) {
	l := New(Config{Delay: 100 * time.Millisecond, PerDomainMax: 4})
	ctx := context.Background()

	// First call should be immediate.
	release, err := l.Acquire(ctx, "https://test.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()

	// Next one should wait ~100ms.
	start := time.Now()
	release, err = l.Acquire(ctx, "https://test.com/b")
	if err != nil {
		t.Fatal(err)
	}
	release()
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentDomains(t *testing.T) {
	l := New(Config{Delay: time.Second, PerDomainMax: 1})
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "https://a.com/1")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	// Domain B should not be blocked by A.
	start := time.Now()
	releaseB, err := l.Acquire(ctx, "https://b.com/1")
	if err != nil {
		t.Fatal(err)
	}
	releaseB()
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("domain B blocked unexpectedly")
	}
}

func TestLimiter_PerDomainCap(t *testing.T) {
	l := New(Config{PerDomainMax: 1})

	release, err := l.Acquire(context.Background(), "https://a.com/1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "https://A.com/2"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second acquire to block until deadline, got %v", err)
	}

	release()
	release()
	release2, err := l.Acquire(context.Background(), "https://a.com/3")
	if err != nil {
		t.Fatalf("expected slot after release, got %v", err)
	}
	release2()
}

func TestLimiter_JitterStaysInRange(t *testing.T) {
	l := New(Config{Delay: 10 * time.Millisecond, Jitter: 0.5})
	for i := 0; i < 100; i++ {
		if d := l.jitterDelay(); d < 0 || d >= 5*time.Millisecond {
			t.Fatalf("jitter %v out of range", d)
		}
	}
	if d := New(Config{}).jitterDelay(); d != 0 {
		t.Fatalf("expected no jitter without delay, got %v", d)
	}
}
