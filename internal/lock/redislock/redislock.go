// Package redislock implements lock.Locker on top of Redis so that every
// service instance pointed at the same Redis shares one lease.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stockquote/internal/lock"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	Name  string        // key to lock, default lock.DefaultName
	TTL   time.Duration // lease expiry, default lock.DefaultTTL
	Retry time.Duration // poll interval while waiting, default lock.DefaultRetry
}

// Locker grants leases with SET NX PX.
type Locker struct {
	cfg    Config
	client redis.UniversalClient
}

func New(client redis.UniversalClient, cfg Config) *Locker {
	if cfg.Name == "" {
		cfg.Name = lock.DefaultName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = lock.DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = lock.DefaultRetry
	}
	return &Locker{cfg: cfg, client: client}
}

// Acquire implements lock.Locker.
func (l *Locker) Acquire(ctx context.Context) (lock.Lease, error) {
	var lease lock.Lease
	err := lock.Poll(ctx, l.cfg.Retry, func(ctx context.Context) (bool, error) {
		var err error
		lease, err = l.TryAcquire(ctx)
		if err == lock.ErrNotAcquired {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// TryAcquire makes a single attempt and returns lock.ErrNotAcquired if the
// lease is held elsewhere.
func (l *Locker) TryAcquire(ctx context.Context) (lock.Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.cfg.Name, token, l.cfg.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: set %s: %w", l.cfg.Name, err)
	}
	if !ok {
		return nil, lock.ErrNotAcquired
	}
	return &lease{client: l.client, key: l.cfg.Name, token: token}, nil
}

type lease struct {
	client redis.UniversalClient
	key    string
	token  string

	mu       sync.Mutex
	released bool
}

func (l *lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redislock: release %s: %w", l.key, err)
	}
	l.released = true
	return nil
}
