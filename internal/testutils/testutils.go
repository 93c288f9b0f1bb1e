package testutils

import (
	"bytes"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"
)

// SyncBuffer is a bytes.Buffer safe for concurrent writers, so log output of
// in-flight senders can be inspected while they run.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SetupTestLogger creates a new slog.Logger that writes to a buffer,
// configured for DEBUG level. Returns the logger and the buffer.
func SetupTestLogger() (*slog.Logger, *SyncBuffer) {
	logBuf := &SyncBuffer{}
	handler := slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), logBuf
}

// Connection is what a Sink recorded for one accepted connection.
type Connection struct {
	Data []byte
}

// Sink is a loopback TCP listener that reads every accepted connection to EOF
// and records what it received.
type Sink struct {
	Listener net.Listener

	mu    sync.Mutex
	conns []Connection
	wg    sync.WaitGroup
}

// NewSink starts a Sink on an ephemeral 127.0.0.1 port. It is closed when the
// test finishes.
func NewSink(t *testing.T) *Sink {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen on a port: %v", err)
	}
	s := &Sink{Listener: l}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = l.Close()
		s.wg.Wait()
	})
	return s
}

// Port returns the port the sink listens on.
func (s *Sink) Port() int {
	return s.Listener.Addr().(*net.TCPAddr).Port
}

func (s *Sink) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			defer conn.Close()
			var data bytes.Buffer
			_, _ = data.ReadFrom(conn)
			s.mu.Lock()
			s.conns = append(s.conns, Connection{Data: data.Bytes()})
			s.mu.Unlock()
		}(conn)
	}
}

// WaitConnections blocks until n connections have been fully read or the
// timeout expires, and returns what was recorded so far.
func (s *Sink) WaitConnections(n int, timeout time.Duration) []Connection {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		got := len(s.conns)
		s.mu.Unlock()
		if got >= n || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Connection(nil), s.conns...)
}
