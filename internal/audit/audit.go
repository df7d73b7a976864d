// Package audit records the append-only trail of user commands, quote server
// hits, account movements and system, error and debug events.
//
// Logging is fire-and-forget: a store failure is reported through zerolog
// and never surfaces to the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stockquote/internal/quote"
)

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Logger builds entries and appends them to a Store.
type Logger struct {
	store  Store
	server string
	now    func() time.Time
}

type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(l *Logger) { l.now = now } }

// New returns a Logger stamping non quote-server entries with server.
func New(store Store, server string, opts ...Option) *Logger {
	l := &Logger{store: store, server: server, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Logger) append(ctx context.Context, e Entry) {
	e.Timestamp = l.now().UTC()
	e.TransactionNum = quote.TransactionIDOrDefault(e.TransactionNum)
	if e.Server == "" {
		e.Server = l.server
	}
	if err := l.store.Append(ctx, e); err != nil {
		log.Error().Err(err).
			Str("type", string(e.Type)).
			Str("user", e.User).
			Str("tx", e.TransactionNum).
			Msg("audit append failed")
	}
}

func (l *Logger) fromEvent(t LogType, ev Event, msg string) Entry {
	return Entry{
		Type:           t,
		TransactionNum: ev.TransactionID,
		Command:        ev.Command,
		User:           ev.User,
		Symbol:         ev.Symbol,
		Filename:       ev.Filename,
		Funds:          ev.Funds,
		Message:        msg,
	}
}

// LogCommand records a user command as received.
func (l *Logger) LogCommand(ctx context.Context, ev Event) {
	l.append(ctx, l.fromEvent(TypeUserCommand, ev, ""))
}

// LogQuoteServer records one hit to the quote server with the values it returned.
func (l *Logger) LogQuoteServer(ctx context.Context, q quote.Quote) {
	l.append(ctx, Entry{
		Type:           TypeQuoteServer,
		Server:         QuoteServerName,
		TransactionNum: q.TransactionID,
		User:           q.UserID,
		Symbol:         q.Symbol,
		Price:          decimal.NewNullDecimal(q.UnitPrice),
		QuoteTime:      q.ServerTime,
		CryptoKey:      q.CryptoKey,
	})
}

// LogAccountTransaction records funds moving in or out of an account.
// action is "add" or "remove".
func (l *Logger) LogAccountTransaction(ctx context.Context, user, txID, action string, funds decimal.Decimal) {
	l.append(ctx, Entry{
		Type:           TypeAccountTransaction,
		TransactionNum: txID,
		User:           user,
		Action:         action,
		Funds:          decimal.NewNullDecimal(funds),
	})
}

func (l *Logger) LogSystemEvent(ctx context.Context, ev Event) {
	l.append(ctx, l.fromEvent(TypeSystemEvent, ev, ""))
}

func (l *Logger) LogErrorEvent(ctx context.Context, ev Event, message string) {
	l.append(ctx, l.fromEvent(TypeErrorEvent, ev, message))
}

func (l *Logger) LogDebug(ctx context.Context, ev Event, message string) {
	l.append(ctx, l.fromEvent(TypeDebugEvent, ev, message))
}

// Memory is an in-process Store. Entries are returned in insertion order.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
