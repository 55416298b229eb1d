package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// Clock tracks the offset between local time and the exchange server clock
// so signed requests stay inside the recvWindow.
type Clock struct {
	fetch    func(ctx context.Context) (int64, error)
	mu       sync.RWMutex
	offset   int64 // ms, server minus local
	interval time.Duration
}

// NewClock builds a clock around a server-time fetcher.
func NewClock(fetch func(ctx context.Context) (int64, error)) *Clock {
	return &Clock{fetch: fetch, interval: 30 * time.Minute}
}

// Start performs an initial sync and then re-syncs periodically until ctx ends.
func (c *Clock) Start(ctx context.Context) {
	if err := c.Sync(ctx); err != nil {
		log.Printf("⚠️ initial clock sync failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Sync(ctx); err != nil {
					log.Printf("⚠️ clock sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync measures the server offset, assuming symmetric network latency.
func (c *Clock) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	server, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	c.mu.Lock()
	c.offset = server - local
	c.mu.Unlock()
	return nil
}

// Now returns the current epoch milliseconds adjusted by the server offset.
func (c *Clock) Now() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UnixMilli() + c.offset
}
