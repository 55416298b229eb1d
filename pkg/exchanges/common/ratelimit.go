package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// WeightTracker follows the request-weight budget the exchange reports back
// in response headers. It does not gate requests itself; callers ask
// ShouldDelay before issuing non-critical calls.
type WeightTracker struct {
	mu        sync.RWMutex
	used      int
	limit     int
	window    time.Duration
	windowAt  time.Time
	warnAbove float64
}

// NewWeightTracker creates a tracker for the given weight budget per window
// (2400/min for USDT-M futures).
func NewWeightTracker(limit int, window time.Duration) *WeightTracker {
	return &WeightTracker{
		limit:     limit,
		window:    window,
		windowAt:  time.Now(),
		warnAbove: 0.8,
	}
}

// Observe records the used weight reported by a response header value.
func (w *WeightTracker) Observe(headerValue string) {
	if headerValue == "" {
		return
	}
	used, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.windowAt) >= w.window {
		w.windowAt = time.Now()
	}
	w.used = used

	pct := float64(w.used) / float64(w.limit)
	if pct >= w.warnAbove {
		log.Printf("⚠️ request weight %d/%d (%.0f%%)", w.used, w.limit, pct*100)
	}
}

// Usage returns the current used weight and its share of the budget.
func (w *WeightTracker) Usage() (used int, pct float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if time.Since(w.windowAt) >= w.window {
		return 0, 0
	}
	return w.used, float64(w.used) / float64(w.limit)
}

// ShouldDelay reports whether non-critical requests should back off.
func (w *WeightTracker) ShouldDelay() bool {
	_, pct := w.Usage()
	return pct >= 0.9
}
