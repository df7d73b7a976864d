// Package wiretest provides a fake quote server for tests.
package wiretest

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// Reply maps a request line (terminator stripped) to the raw response written
// back. An empty reply closes the connection without writing anything.
type Reply func(request string) string

// Server is a TCP quote server bound to a loopback port.
type Server struct {
	ln    net.Listener
	reply Reply
	hold  chan struct{}

	closeHold sync.Once

	mu       sync.Mutex
	requests []string
	wg       sync.WaitGroup
}

// Echo answers every request with a fixed price and timestamp, echoing
// symbol and user like the real server does.
func Echo(price string, millis string, key string) Reply {
	return func(request string) string {
		symbol, user, _ := strings.Cut(request, ",")
		return price + "," + symbol + "," + user + "," + millis + "," + key + "\n"
	}
}

// NewServer starts a server that answers with reply. It is closed when the test ends.
func NewServer(t testing.TB, reply Reply) *Server {
	t.Helper()
	return start(t, reply, nil)
}

// NewStalledServer starts a server that reads requests but never answers
// until the test ends.
func NewStalledServer(t testing.TB) *Server {
	t.Helper()
	return start(t, nil, make(chan struct{}))
}

func start(t testing.TB, reply Reply, hold chan struct{}) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{ln: ln, reply: reply, hold: hold}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr is the host:port to dial.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Requests returns the request lines received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close stops accepting and waits for open connections to finish.
func (s *Server) Close() {
	_ = s.ln.Close()
	if s.hold != nil {
		s.closeHold.Do(func() { close(s.hold) })
	}
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	s.mu.Lock()
	s.requests = append(s.requests, line)
	s.mu.Unlock()

	if s.hold != nil {
		<-s.hold
		return
	}
	if s.reply == nil {
		return
	}
	if out := s.reply(line); out != "" {
		_, _ = conn.Write([]byte(out))
	}
}
