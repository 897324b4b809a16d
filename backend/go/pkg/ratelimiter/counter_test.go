package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestFixedWindowCounter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	fwc := NewFixedWindowCounterWithClock(3, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		if !fwc.Allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if fwc.Allow() {
		t.Fatal("fourth request in the window should be rejected")
	}

	clock.Advance(time.Minute)
	if !fwc.Allow() {
		t.Fatal("request in a new window should be allowed")
	}
}

func TestFixedWindowCounter_AvailableDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	fwc := NewFixedWindowCounter(1, time.Hour)

	for i := 0; i < 5; i++ {
		ok, err := fwc.Available(ctx)
		if err != nil || !ok {
			t.Fatalf("Available() = %v, %v; want true, nil", ok, err)
		}
	}
	if err := fwc.Record(ctx); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := fwc.Available(ctx); ok {
		t.Fatal("Available() should be false once the ceiling is reached")
	}
	if got := fwc.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestFixedWindowCounter_ResetsAfterDay(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	fwc := NewFixedWindowCounterWithClock(2, 24*time.Hour, clock.Now)

	_ = fwc.Record(ctx)
	_ = fwc.Record(ctx)
	if ok, _ := fwc.Available(ctx); ok {
		t.Fatal("quota should be exhausted")
	}

	// Crossing midnight does not reset the window.
	clock.Advance(time.Hour)
	if ok, _ := fwc.Available(ctx); ok {
		t.Fatal("window should not be calendar aligned")
	}

	clock.Advance(23 * time.Hour)
	if ok, _ := fwc.Available(ctx); !ok {
		t.Fatal("quota should reset 24h after creation")
	}

	// The next window starts at creation + 24h, not at the time of the reset.
	_ = fwc.Record(ctx)
	_ = fwc.Record(ctx)
	clock.Advance(24*time.Hour - time.Second)
	if ok, _ := fwc.Available(ctx); ok {
		t.Fatal("second window should still be exhausted")
	}
	clock.Advance(time.Second)
	if ok, _ := fwc.Available(ctx); !ok {
		t.Fatal("third window should be open")
	}
}

func TestFixedWindowCounter_Concurrent(t *testing.T) {
	fwc := NewFixedWindowCounter(50, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if fwc.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}
