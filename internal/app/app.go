// Package app builds the quote service and its collaborators from config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"stockquote/internal/audit"
	"stockquote/internal/audit/sqlitestore"
	"stockquote/internal/cache"
	"stockquote/internal/cache/rediscache"
	"stockquote/internal/config"
	"stockquote/internal/lock"
	"stockquote/internal/lock/redislock"
	"stockquote/internal/lock/sqlitelock"
	"stockquote/internal/quote/throttle"
	"stockquote/internal/quote/wire"
	"stockquote/internal/quoteservice"
	"stockquote/internal/sqlitedb"
)

type App struct {
	Quotes     *quoteservice.Service
	Audit      *audit.Logger
	AuditStore audit.Store
	Locker     lock.Locker
	Throttle   *throttle.Throttle

	closers []func() error
}

// Build opens the configured backends. Close releases them.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet")
		}
		cancel()
	}

	var db *sql.DB
	if cfg.UsesSQLite() {
		var err error
		db, err = sqlitedb.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
	}

	switch cfg.Lock.Backend {
	case "redis":
		a.Locker = redislock.New(rdb, redislock.Config{Name: cfg.Lock.Name, TTL: cfg.Lock.TTL, Retry: cfg.Lock.Retry})
	case "sqlite":
		l, err := sqlitelock.New(ctx, db, sqlitelock.Config{Name: cfg.Lock.Name, TTL: cfg.Lock.TTL, Retry: cfg.Lock.Retry})
		if err != nil {
			return nil, err
		}
		a.Locker = l
	case "local":
		a.Locker = lock.NewLocal()
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}

	var c quoteservice.Cache
	switch cfg.Cache.Backend {
	case "redis":
		c = rediscache.New(rdb, cfg.Cache.TTL)
	case "memory":
		c = cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxItems)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	switch cfg.Audit.Backend {
	case "sqlite":
		s, err := sqlitestore.New(ctx, db)
		if err != nil {
			return nil, err
		}
		a.AuditStore = s
	case "memory":
		a.AuditStore = audit.NewMemory()
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
	a.Audit = audit.New(a.AuditStore, cfg.Audit.ServerName)

	a.Throttle = throttle.New(
		throttle.WithInitial(cfg.Throttle.Initial),
		throttle.WithFloor(cfg.Throttle.Floor),
		throttle.WithFactor(cfg.Throttle.Factor),
		throttle.WithCeiling(cfg.Throttle.MaxPerSecond, cfg.Throttle.Burst),
	)

	client := wire.New(cfg.QuoteServer.Addr,
		wire.WithConnectTimeout(cfg.QuoteServer.ConnectTimeout),
		wire.WithWriteTimeout(cfg.QuoteServer.WriteTimeout),
		wire.WithReadTimeout(cfg.QuoteServer.ReadTimeout),
	)
	a.Quotes = quoteservice.New(quoteservice.FromWire(client), a.Locker, a.Throttle, c, a.Audit,
		quoteservice.WithCacheHitEvents(cfg.Audit.CacheHitEvents),
	)

	ok = true
	return a, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
