// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package testdaemon is a scripted stand-in for the ebusd daemon. It
// listens on a loopback TCP port and answers incoming command lines from a
// fixed script, so client tests run against a real socket.
package testdaemon

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
)

// Exchange is one scripted request/response pair. Expect matches the
// received command line ("*" matches any). Respond lines are sent verbatim,
// each terminated by a newline; the empty terminator line of a daemon
// response has to be part of the script.
type Exchange struct {
	Expect  string
	Respond []string
	// Close drops the connection after responding, simulating a daemon
	// restart. The remaining script continues on the next connection.
	Close bool
}

// Daemon is a scripted fake ebusd.
type Daemon struct {
	ln net.Listener

	mu       sync.Mutex
	script   []Exchange
	requests []string
	err      error
	wg       sync.WaitGroup
}

// Start listens on an ephemeral loopback port and serves script to every
// connection, one exchange per received line.
func Start(script []Exchange) (*Daemon, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	d := &Daemon{ln: ln, script: script}
	d.wg.Add(1)
	go d.serve()
	return d, nil
}

// Addr returns host and port of the daemon.
func (d *Daemon) Addr() (string, int) {
	addr := d.ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

// Requests returns the command lines received so far.
func (d *Daemon) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

// Err returns the first script violation, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close stops listening and waits for the serve loop.
func (d *Daemon) Close() {
	d.ln.Close()
	d.wg.Wait()
}

func (d *Daemon) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.handle(conn)
	}
}

func (d *Daemon) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		d.mu.Lock()
		d.requests = append(d.requests, line)
		if len(d.script) == 0 {
			d.setErrLocked(fmt.Errorf("unexpected request %q", line))
			d.mu.Unlock()
			return
		}
		exchange := d.script[0]
		d.script = d.script[1:]
		if exchange.Expect != "*" && exchange.Expect != line {
			d.setErrLocked(fmt.Errorf("got request %q, expected %q", line, exchange.Expect))
		}
		d.mu.Unlock()
		for _, respond := range exchange.Respond {
			if _, err := fmt.Fprintf(conn, "%s\n", respond); err != nil {
				return
			}
		}
		if exchange.Close {
			return
		}
	}
}

func (d *Daemon) setErrLocked(err error) {
	if d.err == nil {
		d.err = err
	}
}
