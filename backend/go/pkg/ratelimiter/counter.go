package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// FixedWindowCounter implements RateLimiter and Quota using a fixed window counter algorithm.
// It allows a certain number of requests in a fixed time window. Windows are measured
// from the counter's creation and advance by whole windows, so a 24h window is not
// aligned to calendar days.
type FixedWindowCounter struct {
	limit       int           // Maximum number of requests allowed in the window.
	window      time.Duration // The duration of the time window.
	count       int           // Current number of requests in the window.
	windowStart time.Time     // The start time of the current window.
	now         Clock
	mutex       sync.Mutex
}

// NewFixedWindowCounter creates a new FixedWindowCounter.
// limit: the maximum number of requests allowed in the window.
// window: the duration of the time window.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return NewFixedWindowCounterWithClock(limit, window, time.Now)
}

// NewFixedWindowCounterWithClock is NewFixedWindowCounter with an explicit clock.
func NewFixedWindowCounterWithClock(limit int, window time.Duration, now Clock) *FixedWindowCounter {
	if now == nil {
		now = time.Now
	}
	return &FixedWindowCounter{
		limit:       limit,
		window:      window,
		windowStart: now(),
		now:         now,
	}
}

// roll resets the counter if the current window has passed. Caller holds the mutex.
func (fwc *FixedWindowCounter) roll() {
	if fwc.window <= 0 {
		return
	}
	elapsed := fwc.now().Sub(fwc.windowStart)
	if elapsed >= fwc.window {
		fwc.windowStart = fwc.windowStart.Add(elapsed / fwc.window * fwc.window)
		fwc.count = 0
	}
}

// Allow checks if a request is allowed and counts it when it is.
func (fwc *FixedWindowCounter) Allow() bool {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	fwc.roll()
	if fwc.count < fwc.limit {
		fwc.count++
		return true
	}
	return false
}

// Available reports whether the current window still has room.
func (fwc *FixedWindowCounter) Available(_ context.Context) (bool, error) {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	fwc.roll()
	return fwc.count < fwc.limit, nil
}

// Record counts one request in the current window.
func (fwc *FixedWindowCounter) Record(_ context.Context) error {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	fwc.roll()
	fwc.count++
	return nil
}

// Count returns the number of requests counted in the current window.
func (fwc *FixedWindowCounter) Count() int {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	fwc.roll()
	return fwc.count
}

// Limit returns the configured ceiling.
func (fwc *FixedWindowCounter) Limit() int {
	return fwc.limit
}
