// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPort is the daemon's default TCP port.
const DefaultPort = 8888

// Connection is a line-framed TCP duplex to the daemon. It is not safe for
// concurrent use, a single logical task owns the socket at any time:
// request/response pairs do not interleave, and listen streams do not share
// the socket with concurrently issued commands.
type Connection struct {
	host        string
	port        int
	autoConnect bool
	timeout     time.Duration

	conn net.Conn
	rd   *bufio.Reader
}

// NewConnection returns an unconnected Connection. With autoConnect set,
// writes establish (and re-establish) the connection on demand. A zero
// timeout disables I/O deadlines.
func NewConnection(host string, port int, autoConnect bool, timeout time.Duration) *Connection {
	return &Connection{
		host:        host,
		port:        port,
		autoConnect: autoConnect,
		timeout:     timeout,
	}
}

// Host returns the daemon host.
func (c *Connection) Host() string {
	return c.host
}

// Port returns the daemon port.
func (c *Connection) Port() int {
	return c.port
}

// Connect establishes the TCP connection.
func (c *Connection) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	log.Debugf("connecting to %s", addr)
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "connect %s", addr)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	return nil
}

// Disconnect closes the connection. It is idempotent.
func (c *Connection) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	return err
}

// IsConnected reports whether a connection is established. It does not
// check whether the connection is still usable.
func (c *Connection) IsConnected() bool {
	return c.conn != nil
}

// Write sends one line.
func (c *Connection) Write(ctx context.Context, line string) error {
	if err := c.ensureConnection(ctx); err != nil {
		return err
	}
	log.Debugf("send: %q", line)
	if err := c.setDeadline(ctx); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.Disconnect()
		return errors.Wrap(err, "write")
	}
	return nil
}

// ReadLine receives one line, stripped of its terminator. Daemon error
// lines raise a CommandError after draining the remainder of the response.
func (c *Connection) ReadLine(ctx context.Context) (string, error) {
	if err := c.ensureConnection(ctx); err != nil {
		return "", err
	}
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	if err := c.checkLine(ctx, line); err != nil {
		return "", err
	}
	return line, nil
}

// ReadLines receives lines until the first empty one, which is included.
// With infinite set the stream never terminates on its own and is only
// ended by cancelling ctx (which interrupts the pending read). With check
// set, a daemon error line drains the remaining response and surfaces as a
// CommandError from Err.
func (c *Connection) ReadLines(ctx context.Context, infinite, check bool) *LineStream {
	ch := make(chan string)
	stream := &LineStream{ch: ch}
	if err := c.ensureConnection(ctx); err != nil {
		stream.err = err
		close(ch)
		return stream
	}
	stop := c.interruptOnCancel(ctx)
	go func() {
		defer close(ch)
		defer stop()
		// cancellation may have closed the socket under us, drop it so the
		// next operation reconnects
		defer func() {
			if ctx.Err() != nil {
				c.Disconnect()
			}
		}()
		for {
			if ctx.Err() != nil {
				stream.err = ctx.Err()
				return
			}
			line, err := c.readLineDeadline(ctx, !infinite)
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				stream.err = err
				return
			}
			if check {
				if err := c.checkLine(ctx, line); err != nil {
					stream.err = err
					return
				}
			}
			select {
			case ch <- line:
			case <-ctx.Done():
				stream.err = ctx.Err()
				return
			}
			if line == "" && !infinite {
				return
			}
		}
	}()
	return stream
}

// LineStream is a lazy sequence of received lines. Drain C, then consult
// Err.
type LineStream struct {
	ch chan string
	// err is written by the producer before it closes ch, reading it
	// after the channel is drained is race-free
	err error
}

// C returns the line channel. It is closed when the stream ends.
func (s *LineStream) C() <-chan string {
	return s.ch
}

// Err returns the error that ended the stream, if any.
func (s *LineStream) Err() error {
	return s.err
}

func (c *Connection) ensureConnection(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if !c.autoConnect {
		return ErrNotConnected
	}
	return c.Connect(ctx)
}

// interruptOnCancel arranges for a pending blocking read to fail once ctx
// is cancelled, by closing the socket. An infinite stream will not end on
// its own, so cancellation has to release the connection. The returned stop
// function releases the watcher.
func (c *Connection) interruptOnCancel(ctx context.Context) func() {
	conn := c.conn
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *Connection) readLine(ctx context.Context) (string, error) {
	return c.readLineDeadline(ctx, true)
}

func (c *Connection) readLineDeadline(ctx context.Context, deadline bool) (string, error) {
	if c.rd == nil {
		return "", ErrNotConnected
	}
	if deadline {
		if err := c.setDeadline(ctx); err != nil {
			return "", err
		}
	} else if err := c.conn.SetDeadline(time.Time{}); err != nil {
		return "", errors.Wrap(err, "deadline")
	}
	line, err := c.rd.ReadString('\n')
	if err != nil {
		c.Disconnect()
		return "", errors.Wrap(err, "read")
	}
	line = strings.TrimRight(line, "\r\n")
	log.Debugf("recv: %q", line)
	return line, nil
}

// setDeadline applies the configured timeout and any earlier ctx deadline
// to the next I/O operation.
func (c *Connection) setDeadline(ctx context.Context) error {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return errors.Wrap(err, "deadline")
	}
	return nil
}

// checkLine turns a daemon error line into a CommandError, consuming the
// remainder of the response up to the terminating empty line first.
func (c *Connection) checkLine(ctx context.Context, line string) error {
	detail, ok := errLineDetail(line)
	if !ok {
		return nil
	}
	for {
		next, err := c.readLine(ctx)
		if err != nil || next == "" {
			break
		}
	}
	return &CommandError{Detail: detail}
}

// errLineDetail matches both historic daemon error prefixes, "ERR:" and
// "ERR: ".
func errLineDetail(line string) (string, bool) {
	if !strings.HasPrefix(line, "ERR:") {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "ERR:"), " "), true
}
