// Package lock provides the named, lease-based mutex that serializes
// outbound requests to the quote server across service instances.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultName is the resource shared by every instance talking to the quote server.
const DefaultName = "quote-service-lock"

const (
	DefaultTTL   = 10 * time.Second
	DefaultRetry = 5 * time.Millisecond
)

// ErrNotAcquired is returned when a single acquisition attempt finds the lock held.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive leases on one named resource.
type Locker interface {
	// Acquire blocks until the lease is granted or ctx ends.
	Acquire(ctx context.Context) (Lease, error)
}

// Lease is held until released or until it expires. Release is idempotent
// and never releases a lease that has since been granted to someone else.
type Lease interface {
	Release(ctx context.Context) error
}

// Poll calls try every interval until it reports success, fails, or ctx ends.
func Poll(ctx context.Context, interval time.Duration, try func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultRetry
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Local is an in-process Locker for single-instance deployments and tests.
// Leases never expire.
type Local struct {
	once sync.Once
	sem  chan struct{}
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	l := &Local{}
	l.init()
	return l
}

func (l *Local) init() {
	l.once.Do(func() { l.sem = make(chan struct{}, 1) })
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context) (Lease, error) {
	l.init()
	select {
	case l.sem <- struct{}{}:
		return &localLease{sem: l.sem}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localLease struct {
	once sync.Once
	sem  chan struct{}
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() { <-l.sem })
	return nil
}
