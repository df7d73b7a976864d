// Package rediscache shares cached quotes between service instances through
// Redis. Backend failures degrade to cache misses.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"stockquote/internal/cache"
	"stockquote/internal/quote"
)

// KeyPrefix is prepended to the symbol to form the Redis key.
const KeyPrefix = "quote:"

type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns a cache writing entries with the given expiry. A ttl <= 0 means
// cache.DefaultTTL.
func New(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func key(symbol string) string { return KeyPrefix + symbol }

func (c *Cache) Get(ctx context.Context, symbol string) (quote.Quote, bool) {
	raw, err := c.client.Get(ctx, key(symbol)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache read failed")
		}
		return quote.Quote{}, false
	}
	var q quote.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache entry unreadable")
		return quote.Quote{}, false
	}
	return q, true
}

func (c *Cache) Put(ctx context.Context, q quote.Quote, symbol string) {
	raw, err := json.Marshal(q)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key(symbol), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache write failed")
	}
}
