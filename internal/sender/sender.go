package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/mxk/go-flowrate/flowrate"

	"tcp-loadgen/internal/models"
)

// Sender defines the interface for a single payload transmission.
type Sender interface {
	Send(ctx context.Context, target models.Target, payload []byte) error
}

// ConnectionError is returned for any failure while transmitting one object:
// resolve, connect, deadline setup, write or close. Written holds the number
// of payload bytes the transport accepted before the failure.
type ConnectionError struct {
	Op      string
	Addr    string
	Written int
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Op == "write" {
		return fmt.Sprintf("%s %s: after %d bytes: %v", e.Op, e.Addr, e.Written, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying cause was a network timeout.
func (e *ConnectionError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// TCPSender opens a fresh TCP connection per send, writes the whole payload
// and closes the connection. Nothing is read back from the peer.
type TCPSender struct {
	// Timeout bounds the dial and the full write. Zero leaves both to the
	// operating system defaults.
	Timeout time.Duration
	// RateLimit caps the write rate in bytes per second. Zero is unlimited.
	RateLimit int64
	Logger    *slog.Logger

	dialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPSender creates a new instance of a TCPSender.
func NewTCPSender(timeout time.Duration, rateLimit int64, logger *slog.Logger) *TCPSender {
	dialer := &net.Dialer{Timeout: timeout}
	return &TCPSender{
		Timeout:     timeout,
		RateLimit:   rateLimit,
		Logger:      logger,
		dialContext: dialer.DialContext,
	}
}

// Send performs one connect, write, close cycle against target.
func (s *TCPSender) Send(ctx context.Context, target models.Target, payload []byte) error {
	address := target.Addr()

	s.Logger.Debug("Attempting to dial target",
		"sender", "TCPSender",
		"target", address,
		"timeout", s.Timeout,
	)

	conn, err := s.dialContext(ctx, "tcp", address)
	if err != nil {
		s.Logger.Debug("Failed to dial target", "sender", "TCPSender", "target", address, "error", err)
		return &ConnectionError{Op: "dial", Addr: address, Err: err}
	}

	if s.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.Timeout)); err != nil {
			_ = conn.Close()
			return &ConnectionError{Op: "deadline", Addr: address, Err: err}
		}
	}
	// Unblock a pending write when the run is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	var w io.Writer = conn
	if s.RateLimit > 0 {
		w = flowrate.NewWriter(conn, s.RateLimit)
	}

	written, err := writeFull(w, payload)
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		s.Logger.Debug("Failed to write payload", "sender", "TCPSender", "target", address, "written", written, "error", err)
		return &ConnectionError{Op: "write", Addr: address, Written: written, Err: err}
	}

	if err := conn.Close(); err != nil {
		return &ConnectionError{Op: "close", Addr: address, Written: written, Err: err}
	}

	if local, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		s.Logger.Debug("Payload sent",
			"sender", "TCPSender",
			"source_port", local.Port,
			"target", address,
			"bytes", written,
		)
	}
	return nil
}

// writeFull keeps writing until every byte of p has been accepted. A single
// Write is not guaranteed to take the whole buffer.
func writeFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
