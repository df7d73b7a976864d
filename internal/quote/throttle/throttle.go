package throttle

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInitial = 50 * time.Millisecond
	DefaultFloor   = 8 * time.Millisecond
	DefaultFactor  = 0.99
)

// Throttle paces requests to the quote server. The delay starts high so a
// cold process does not flood the server, then decays by a fixed factor on
// every use until it reaches the floor. It is advisory pacing; the optional
// ceiling is a hard requests-per-second cap on top of it.
type Throttle struct {
	delay   atomic.Uint64 // math.Float64bits of the delay in milliseconds
	floor   float64
	factor  float64
	ceiling *rate.Limiter
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithInitial sets the starting delay.
func WithInitial(d time.Duration) Option {
	return func(t *Throttle) { t.delay.Store(math.Float64bits(millis(d))) }
}

// WithFloor sets the minimum delay.
func WithFloor(d time.Duration) Option {
	return func(t *Throttle) { t.floor = millis(d) }
}

// WithFactor sets the multiplicative decay applied per request. Values
// outside (0, 1] are ignored.
func WithFactor(f float64) Option {
	return func(t *Throttle) {
		if f > 0 && f <= 1 {
			t.factor = f
		}
	}
}

// WithCeiling caps requests to perSecond with the given burst. perSecond <= 0
// disables the cap.
func WithCeiling(perSecond float64, burst int) Option {
	return func(t *Throttle) {
		if perSecond <= 0 {
			t.ceiling = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		t.ceiling = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New returns a Throttle at its initial delay.
func New(options ...Option) *Throttle {
	t := &Throttle{floor: millis(DefaultFloor), factor: DefaultFactor}
	t.delay.Store(math.Float64bits(millis(DefaultInitial)))
	for _, option := range options {
		option(t)
	}
	return t
}

// NextDelay decays the shared delay one step and returns the new value.
// The result never drops below the floor and never increases.
func (t *Throttle) NextDelay() time.Duration {
	for {
		old := t.delay.Load()
		cur := math.Float64frombits(old)
		next := t.floor
		if cur > t.floor {
			next = math.Max(cur*t.factor, t.floor)
		}
		if t.delay.CompareAndSwap(old, math.Float64bits(next)) {
			return duration(next)
		}
	}
}

// Current returns the delay without changing it.
func (t *Throttle) Current() time.Duration {
	return duration(math.Float64frombits(t.delay.Load()))
}

// Wait sleeps for NextDelay, then for the ceiling if one is configured.
// It returns early with the context error if ctx ends first.
func (t *Throttle) Wait(ctx context.Context) error {
	timer := time.NewTimer(t.NextDelay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	if t.ceiling != nil {
		return t.ceiling.Wait(ctx)
	}
	return nil
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func duration(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }
