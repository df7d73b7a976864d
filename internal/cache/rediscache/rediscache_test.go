package rediscache_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockquote/internal/cache/rediscache"
	"stockquote/internal/quote"
)

func newCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *rediscache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, rediscache.New(client, ttl)
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	// Arrange
	mr, c := newCache(t, time.Minute)
	q := quote.Quote{
		Symbol:        "GOOG",
		UnitPrice:     decimal.RequireFromString("123.45"),
		ServerTime:    time.UnixMilli(1700000000000).UTC(),
		CryptoKey:     "abckey",
		UserID:        "alice",
		TransactionID: "1",
	}

	// Act
	c.Put(t.Context(), q, "GOOG")
	got, ok := c.Get(t.Context(), "GOOG")

	// Assert
	require.True(t, ok)
	require.True(t, q.UnitPrice.Equal(got.UnitPrice))
	require.Equal(t, q.Symbol, got.Symbol)
	require.Equal(t, q.CryptoKey, got.CryptoKey)
	require.True(t, q.ServerTime.Equal(got.ServerTime))
	require.True(t, mr.Exists("quote:GOOG"))
	require.Equal(t, time.Minute, mr.TTL("quote:GOOG"))
}

func TestCache_MissAndExpiry(t *testing.T) {
	t.Parallel()

	mr, c := newCache(t, time.Second)

	_, ok := c.Get(t.Context(), "AAPL")
	require.False(t, ok)

	c.Put(t.Context(), quote.Quote{Symbol: "AAPL", UnitPrice: decimal.NewFromInt(1)}, "AAPL")
	mr.FastForward(2 * time.Second)

	_, ok = c.Get(t.Context(), "AAPL")
	require.False(t, ok)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	mr, c := newCache(t, time.Minute)
	require.NoError(t, mr.Set("quote:MSFT", "not json"))

	_, ok := c.Get(t.Context(), "MSFT")
	require.False(t, ok)
}

func TestCache_BackendDownIsMiss(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := rediscache.New(client, 0)

	c.Put(t.Context(), quote.Quote{Symbol: "GOOG"}, "GOOG")
	_, ok := c.Get(t.Context(), "GOOG")
	require.False(t, ok)
}
