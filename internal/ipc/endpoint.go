package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// maxDatagram bounds the size of a single envelope on the wire. The
// largest legitimate envelope (a player state result) is well under
// 4 KiB; anything bigger is a protocol violation.
const maxDatagram = 64 * 1024

// Logger is the minimal logging surface the ipc package needs. It is
// satisfied by *logging.Logger and by slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Endpoint is a bound unix datagram socket owned by exactly one
// daemon. It is the receive side of the bus: each daemon binds its own
// endpoint and polls it with bounded waits from its main loop.
//
// Endpoint is not safe for concurrent Receive calls; each daemon loop
// is single-threaded by design.
type Endpoint struct {
	path string
	conn *net.UnixConn
	wait time.Duration
	log  Logger
	buf  []byte
}

// EndpointOption customises a new Endpoint.
type EndpointOption func(*Endpoint)

// WithReceiveWait sets the bounded wait used by Receive. The default
// is 50ms, short enough that daemon ticks stay responsive.
func WithReceiveWait(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d > 0 {
			e.wait = d
		}
	}
}

// WithLogger attaches a logger for transport diagnostics.
func WithLogger(log Logger) EndpointOption {
	return func(e *Endpoint) {
		if log != nil {
			e.log = log
		}
	}
}

// Bind creates the socket directory if needed, removes any stale
// socket file left by a previous run, and binds a fresh datagram
// socket at path.
//
// Daemons crash and restart independently, so a leftover socket file
// is expected and silently reclaimed.
func Bind(path string, opts ...EndpointOption) (*Endpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}

	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", path, err)
	}

	ep := &Endpoint{
		path: path,
		conn: conn,
		wait: 50 * time.Millisecond,
		log:  noopLogger{},
		buf:  make([]byte, maxDatagram),
	}
	for _, opt := range opts {
		opt(ep)
	}
	return ep, nil
}

// Path returns the filesystem path the endpoint is bound to. Commands
// carry it as their reply address.
func (e *Endpoint) Path() string {
	return e.path
}

// ReceiveWait returns the bounded-wait duration a single Receive call
// blocks for. Daemon loops use it as their tick period.
func (e *Endpoint) ReceiveWait() time.Duration {
	return e.wait
}

// Receive waits up to the configured bound for one datagram and
// decodes it.
//
// Returns ErrTimeout when no datagram arrives within the bound, which
// is the normal idle outcome and lets the caller run its periodic
// tick. Malformed datagrams are dropped with a warning and do not
// surface to the caller; Receive keeps waiting for the remainder of
// the bound.
func (e *Endpoint) Receive(ctx context.Context) (*Envelope, error) {
	deadline := time.Now().Add(e.wait)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrClosed, err)
		}

		n, err := e.conn.Read(e.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, ErrTimeout
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("reading %s: %w", e.path, err)
		}

		env, derr := Decode(e.buf[:n])
		if derr != nil {
			e.log.Warn("dropping malformed datagram",
				"endpoint", e.path,
				"bytes", n,
				"error", derr)
			continue
		}

		e.log.Debug("received envelope",
			"endpoint", e.path,
			"schema", env.Schema,
			"name", env.Name(),
			"id", env.ID)
		return env, nil
	}
}

// Close unbinds the socket and removes its file.
func (e *Endpoint) Close() error {
	err := e.conn.Close()
	if rmErr := os.Remove(e.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
