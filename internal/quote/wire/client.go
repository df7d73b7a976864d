package wire

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"stockquote/internal/quote"
)

// Dialer opens connections to the quote server.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client talks to the quote server. It holds no per-request state: every
// call opens its own connection and closes it when done.
type Client struct {
	// addr is the host:port of the quote server.
	addr string
	// dialer opens the TCP connection.
	dialer Dialer
	// connectTimeout bounds the dial.
	connectTimeout time.Duration
	// writeTimeout bounds sending the request line.
	writeTimeout time.Duration
	// readTimeout bounds waiting for the response line.
	readTimeout time.Duration
}

// ClientOption is a configuration option for the Client.
type ClientOption func(*Client)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithConnectTimeout sets the dial timeout. Zero disables it.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithWriteTimeout sets the timeout for sending the request line. Zero disables it.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// WithReadTimeout sets the timeout for reading the response line. Zero disables it.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// New creates a client for the quote server at addr.
func New(addr string, options ...ClientOption) *Client {
	c := &Client{
		addr:           addr,
		dialer:         &net.Dialer{KeepAlive: -1},
		connectTimeout: 3 * time.Second,
		writeTimeout:   2 * time.Second,
		readTimeout:    5 * time.Second,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Addr returns the quote server address.
func (c *Client) Addr() string { return c.addr }

// Fetch performs one complete request/response exchange.
func (c *Client) Fetch(ctx context.Context, userID, symbol, transactionID string) (quote.Quote, error) {
	ex, err := c.Send(ctx, userID, symbol)
	if err != nil {
		return quote.Quote{}, err
	}
	defer ex.Close()

	resp, err := ex.Receive(ctx)
	if err != nil {
		return quote.Quote{}, err
	}
	return resp.Quote(userID, symbol, transactionID), nil
}

// Send connects and writes the request line. The returned Exchange must be
// closed by the caller. On error the connection is already closed.
func (c *Client) Send(ctx context.Context, userID, symbol string) (*Exchange, error) {
	dialCtx := ctx
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
	if err != nil {
		return nil, classifyDial(err)
	}

	ex := &Exchange{conn: conn, reader: bufio.NewReader(conn), readTimeout: c.readTimeout}
	if err := conn.SetWriteDeadline(deadline(ctx, c.writeTimeout)); err != nil {
		ex.Close()
		return nil, quote.NewError(quote.KindConnectionIO, "write", err)
	}
	if _, err := io.WriteString(conn, RequestLine(symbol, userID)); err != nil {
		ex.Close()
		return nil, quote.NewError(quote.KindConnectionIO, "write", err)
	}
	return ex, nil
}

// Exchange is an open connection whose request has been sent.
type Exchange struct {
	conn        net.Conn
	reader      *bufio.Reader
	readTimeout time.Duration
	closeOnce   sync.Once
	closeErr    error
}

// Receive reads and parses the response line. Cancelling ctx unblocks the read.
func (e *Exchange) Receive(ctx context.Context) (Response, error) {
	if err := e.conn.SetReadDeadline(deadline(ctx, e.readTimeout)); err != nil {
		return Response{}, quote.NewError(quote.KindConnectionIO, "read", err)
	}
	stop := context.AfterFunc(ctx, func() {
		// a deadline in the past wakes up the blocked reader
		_ = e.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	line, err := e.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if errors.Is(err, io.EOF) {
			err = errors.New("connection closed before response")
		}
		return Response{}, quote.NewError(quote.KindConnectionIO, "read", err)
	}
	return ParseResponse(line)
}

// Close closes the connection. It is safe to call more than once.
func (e *Exchange) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

func classifyDial(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return quote.NewError(quote.KindHostResolution, "dial", err)
	}
	return quote.NewError(quote.KindConnectionIO, "dial", err)
}

// deadline is now+d, capped by the context deadline. Zero means no deadline.
func deadline(ctx context.Context, d time.Duration) time.Time {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (t.IsZero() || ctxDeadline.Before(t)) {
		t = ctxDeadline
	}
	return t
}
