package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockquote/internal/cache"
	"stockquote/internal/quote"
)

func sampleQuote(symbol string) quote.Quote {
	return quote.Quote{
		Symbol:        symbol,
		UnitPrice:     decimal.RequireFromString("123.45"),
		ServerTime:    time.UnixMilli(1700000000000).UTC(),
		CryptoKey:     "abckey",
		UserID:        "alice",
		TransactionID: "1",
	}
}

func TestMemory_PutGet(t *testing.T) {
	t.Parallel()

	// Arrange
	var c cache.Memory
	q := sampleQuote("GOOG")

	// Act
	_, before := c.Get(t.Context(), "GOOG")
	c.Put(t.Context(), q, "GOOG")
	got, after := c.Get(t.Context(), "GOOG")

	// Assert
	require.False(t, before)
	require.True(t, after)
	require.Equal(t, q, got)

	_, other := c.Get(t.Context(), "AAPL")
	require.False(t, other)
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := cache.NewMemory(time.Minute, 0)
	c.Now = func() time.Time { return now }

	c.Put(t.Context(), sampleQuote("GOOG"), "GOOG")

	now = now.Add(59 * time.Second)
	_, ok := c.Get(t.Context(), "GOOG")
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(t.Context(), "GOOG")
	require.False(t, ok, "entry is stale once the TTL has fully elapsed")
}

func TestMemory_MaxItemsKeepsNewest(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory(time.Minute, 3)
	for i := 0; i < 10; i++ {
		sym := fmt.Sprintf("S%d", i)
		c.Put(t.Context(), sampleQuote(sym), sym)
		_, ok := c.Get(t.Context(), sym)
		require.True(t, ok, "just-written %s must survive eviction", sym)
	}
	require.Equal(t, 3, c.Len())
}

func TestMemory_EvictsExpiredFirst(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := cache.NewMemory(time.Minute, 2)
	c.Now = func() time.Time { return now }

	c.Put(t.Context(), sampleQuote("OLD"), "OLD")
	now = now.Add(2 * time.Minute)
	c.Put(t.Context(), sampleQuote("A"), "A")
	c.Put(t.Context(), sampleQuote("B"), "B")

	_, a := c.Get(t.Context(), "A")
	_, b := c.Get(t.Context(), "B")
	require.True(t, a)
	require.True(t, b)
	require.Equal(t, 2, c.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory(0, 16)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := fmt.Sprintf("S%d", i%8)
			c.Put(t.Context(), sampleQuote(sym), sym)
			_, _ = c.Get(t.Context(), sym)
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}
