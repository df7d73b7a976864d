// Package cache holds recently fetched quotes so repeat lookups for a symbol
// skip the quote server.
package cache

import (
	"context"
	"sync"
	"time"

	"stockquote/internal/quote"
)

// DefaultTTL is how long a quote stays servable after it was fetched.
const DefaultTTL = 60 * time.Second

// entry stores the cached quote for a single symbol with expiry.
type entry struct {
	expiresAt time.Time
	quote     quote.Quote
}

// Memory is a per-process TTL cache keyed by symbol. The zero value is ready
// to use with DefaultTTL and no size cap.
type Memory struct {
	TTL      time.Duration
	MaxItems int
	// Now is the clock used for expiry; defaults to time.Now.
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]entry // key: symbol
}

// NewMemory returns a cache with the given TTL and size cap. A ttl <= 0
// means DefaultTTL, maxItems <= 0 means unbounded.
func NewMemory(ttl time.Duration, maxItems int) *Memory {
	return &Memory{TTL: ttl, MaxItems: maxItems}
}

func (c *Memory) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Memory) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

// Get returns the quote stored under symbol if it has not expired.
func (c *Memory) Get(_ context.Context, symbol string) (quote.Quote, bool) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return quote.Quote{}, false
	}
	return e.quote, true
}

// Put stores q under symbol, replacing any previous entry.
func (c *Memory) Put(_ context.Context, q quote.Quote, symbol string) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[symbol] = entry{expiresAt: now.Add(c.ttl()), quote: q}

	// best-effort cap: expired entries first, then arbitrary ones
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != symbol && !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != symbol {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
