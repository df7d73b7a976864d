package quoteservice

import (
	"context"

	"stockquote/internal/audit"
	"stockquote/internal/lock"
	"stockquote/internal/quote"
	"stockquote/internal/quote/wire"
)

//go:generate mockgen -package=quoteservice_test -destination=mock_deps_test.go -source=deps.go
//go:generate mockgen -package=quoteservice_test -destination=mock_lease_test.go stockquote/internal/lock Lease

// Cache stores quotes by symbol. Implementations are safe for concurrent use
// and treat backend failures as misses.
type Cache interface {
	Get(ctx context.Context, symbol string) (quote.Quote, bool)
	Put(ctx context.Context, q quote.Quote, symbol string)
}

// Auditor is the part of the audit trail the service writes to.
type Auditor interface {
	LogSystemEvent(ctx context.Context, ev audit.Event)
	LogQuoteServer(ctx context.Context, q quote.Quote)
	LogErrorEvent(ctx context.Context, ev audit.Event, message string)
}

// Source opens an exchange with the quote server.
type Source interface {
	Send(ctx context.Context, userID, symbol string) (Exchange, error)
}

// Exchange is a sent request awaiting its response.
type Exchange interface {
	Receive(ctx context.Context) (wire.Response, error)
	Close() error
}

// Pacer delays each send to the quote server.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Locker serializes sends across instances.
type Locker interface {
	Acquire(ctx context.Context) (lock.Lease, error)
}

// FromWire adapts a wire client to Source.
func FromWire(c *wire.Client) Source { return wireSource{c: c} }

type wireSource struct{ c *wire.Client }

func (w wireSource) Send(ctx context.Context, userID, symbol string) (Exchange, error) {
	ex, err := w.c.Send(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	return ex, nil
}
