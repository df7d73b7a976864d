// Package quoteservice answers quote lookups from the cache when it can and
// otherwise makes one paced, lock-guarded exchange with the quote server.
package quoteservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stockquote/internal/audit"
	"stockquote/internal/quote"
	"stockquote/internal/quote/wire"
)

// DefaultReleaseTimeout bounds how long freeing the lease may take.
const DefaultReleaseTimeout = 2 * time.Second

type Service struct {
	source  Source
	locker  Locker
	pacer   Pacer
	cache   Cache
	auditor Auditor

	cacheHitEvents bool
	releaseTimeout time.Duration
}

type Option func(*Service)

// WithCacheHitEvents toggles the system event written for every cache hit.
// Enabled by default.
func WithCacheHitEvents(enabled bool) Option {
	return func(s *Service) { s.cacheHitEvents = enabled }
}

// WithReleaseTimeout sets how long releasing the lease may take once the
// caller's context is gone.
func WithReleaseTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.releaseTimeout = d
		}
	}
}

func New(source Source, locker Locker, pacer Pacer, cache Cache, auditor Auditor, options ...Option) *Service {
	s := &Service{
		source:         source,
		locker:         locker,
		pacer:          pacer,
		cache:          cache,
		auditor:        auditor,
		cacheHitEvents: true,
		releaseTimeout: DefaultReleaseTimeout,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// GetQuote returns the quote for symbol. Failures are audited once and
// returned as *quote.UnavailableError.
func (s *Service) GetQuote(ctx context.Context, userID, symbol, transactionID string) (quote.Quote, error) {
	symbol = wire.Sanitize(symbol)
	userID = wire.Sanitize(userID)
	transactionID = quote.TransactionIDOrDefault(transactionID)
	if symbol == "" {
		return quote.Quote{}, &quote.UnavailableError{Symbol: symbol, Err: quote.ErrEmptySymbol}
	}

	ev := audit.Event{
		User:          userID,
		TransactionID: transactionID,
		Command:       audit.CmdQuote,
		Symbol:        symbol,
	}

	if q, ok := s.cache.Get(ctx, symbol); ok {
		if s.cacheHitEvents {
			hit := ev
			hit.Funds = decimal.NewNullDecimal(q.UnitPrice)
			s.auditor.LogSystemEvent(ctx, hit)
		}
		return q, nil
	}

	q, err := s.fetch(ctx, userID, symbol, transactionID)
	if err != nil {
		return quote.Quote{}, s.fail(ctx, ev, err)
	}
	s.cache.Put(ctx, q, symbol)
	s.auditor.LogQuoteServer(ctx, q)
	return q, nil
}

// fetch holds the lease from before the connect until the paced send is
// done, then reads the response without it.
func (s *Service) fetch(ctx context.Context, userID, symbol, transactionID string) (quote.Quote, error) {
	lease, err := s.locker.Acquire(ctx)
	if err != nil {
		return quote.Quote{}, quote.NewError(quote.KindLockAcquisition, "acquire", err)
	}
	release := sync.OnceFunc(func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("release quote lock")
		}
	})
	defer release()

	ex, err := s.source.Send(ctx, userID, symbol)
	if err != nil {
		return quote.Quote{}, err
	}
	defer ex.Close()

	if err := s.pacer.Wait(ctx); err != nil {
		return quote.Quote{}, quote.NewError(quote.KindConnectionIO, "throttle", err)
	}
	release()

	resp, err := ex.Receive(ctx)
	if err != nil {
		return quote.Quote{}, err
	}
	return resp.Quote(userID, symbol, transactionID), nil
}

func (s *Service) fail(ctx context.Context, ev audit.Event, err error) error {
	var qe *quote.Error
	if !errors.As(err, &qe) {
		qe = quote.NewError(quote.KindConnectionIO, "fetch", err)
	}
	s.auditor.LogErrorEvent(ctx, ev, qe.Error())
	log.Debug().Err(qe).
		Str("symbol", ev.Symbol).
		Str("user", ev.User).
		Str("kind", qe.Kind.Tag()).
		Msg("quote unavailable")
	return &quote.UnavailableError{Symbol: ev.Symbol, Err: qe}
}
