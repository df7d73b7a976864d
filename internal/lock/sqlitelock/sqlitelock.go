// Package sqlitelock implements lock.Locker with a lease row in a SQLite
// database file shared by the cooperating processes.
package sqlitelock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockquote/internal/lock"
)

type Config struct {
	Name  string        // lease row name, default lock.DefaultName
	TTL   time.Duration // lease expiry, default lock.DefaultTTL
	Retry time.Duration // poll interval while waiting, default lock.DefaultRetry
	// Now is the clock used for expiry; defaults to time.Now.
	Now func() time.Time
}

type Locker struct {
	cfg Config
	db  *sql.DB
}

// New creates the locks table if needed.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Locker, error) {
	if cfg.Name == "" {
		cfg.Name = lock.DefaultName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = lock.DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = lock.DefaultRetry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);`); err != nil {
		return nil, fmt.Errorf("sqlitelock: migrate: %w", err)
	}
	return &Locker{cfg: cfg, db: db}, nil
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

// TryAcquire takes the lease if it is free or expired, otherwise it returns
// lock.ErrNotAcquired.
func (l *Locker) TryAcquire(ctx context.Context) (lock.Lease, error) {
	owner := uuid.NewString()
	now := l.cfg.Now()
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO locks (name, owner, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE locks.expires_at <= ?`,
		l.cfg.Name, owner, now.Add(l.cfg.TTL).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitelock: acquire %s: %w", l.cfg.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlitelock: acquire %s: %w", l.cfg.Name, err)
	}
	if n == 0 {
		return nil, lock.ErrNotAcquired
	}
	return &lease{db: l.db, name: l.cfg.Name, owner: owner}, nil
}

type lease struct {
	db    *sql.DB
	name  string
	owner string

	mu       sync.Mutex
	released bool
}

func (l *lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND owner = ?`, l.name, l.owner); err != nil {
		return fmt.Errorf("sqlitelock: release %s: %w", l.name, err)
	}
	l.released = true
	return nil
}
