package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is matched by every error returned from a failed quote lookup.
	ErrUnavailable = errors.New("quote unavailable")
	// ErrEmptySymbol is returned when the requested symbol is blank.
	ErrEmptySymbol = errors.New("empty symbol")
)

// Kind classifies a failed exchange with the quote server.
type Kind int

const (
	KindHostResolution Kind = iota + 1
	KindConnectionIO
	KindProtocol
	KindLockAcquisition
)

// Tag is the short label written into error audit events.
func (k Kind) Tag() string {
	switch k {
	case KindHostResolution:
		return "UnknownHost"
	case KindConnectionIO:
		return "ConnectionIO"
	case KindProtocol:
		return "Protocol"
	case KindLockAcquisition:
		return "LockAcquisition"
	default:
		return "Unknown"
	}
}

func (k Kind) String() string { return k.Tag() }

// Error is a classified failure of one step of a quote fetch.
type Error struct {
	Kind Kind
	Op   string // dial, write, read, parse, acquire, throttle
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind.Tag(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind.Tag(), e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return 0, false
}

// UnavailableError is what callers of the quote service see. The cause stays
// reachable through errors.As for logging, but callers are expected to treat
// every instance the same way.
type UnavailableError struct {
	Symbol string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("quote unavailable for %q: %v", e.Symbol, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
