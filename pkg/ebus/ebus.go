// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package ebus is a client for the ebusd daemon, which bridges the EBUS
// heating field bus to a line-oriented TCP interface. The client retrieves
// the daemon's message catalog, reads and writes messages, and consumes the
// asynchronous update stream, decoding raw field strings into typed values.
package ebus

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// findAllCmd retrieves the daemon's complete message catalog.
const findAllCmd = "find -a -F type,circuit,name,fields"

// scanStableSamples is the number of consecutive equal catalog sizes that
// ends the wait for the daemon's startup device scan.
const scanStableSamples = 4

// Client owns a Connection and the message catalog and exposes the daemon
// operations. A Client is single-tracked: request/response pairs and the
// listen/observe streams never share the socket concurrently. Callers
// wanting parallel reads create additional Clients.
type Client struct {
	Connection *Connection
	MsgDefs    *MsgDefs

	decoder *MsgDecoder
}

// NewClient returns a Client for the daemon at host:port. The connection is
// established on first use and re-established on demand after failures.
func NewClient(host string, port int, timeout time.Duration) *Client {
	msgdefs := NewMsgDefs()
	return &Client{
		Connection: NewConnection(host, port, true, timeout),
		MsgDefs:    msgdefs,
		decoder:    NewMsgDecoder(msgdefs),
	}
}

// Request assembles a daemon command, sends it and collects the response
// lines up to the terminating empty line (excluded). A daemon error line
// surfaces as a CommandError.
func (c *Client) Request(ctx context.Context, verb string, options []cmdOption, args ...string) ([]string, error) {
	cmd, err := buildRequest(verb, options, args...)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, cmd, true)
}

func (c *Client) request(ctx context.Context, cmd string, check bool) ([]string, error) {
	if err := c.Connection.Write(ctx, cmd); err != nil {
		return nil, err
	}
	var lines []string
	stream := c.Connection.ReadLines(ctx, false, check)
	for line := range stream.C() {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WaitScanComplete waits for the daemon's startup device scan to settle. It
// polls the catalog size every interval and returns once the last four
// samples are equal, reporting every sample to progress (which may be nil).
func (c *Client) WaitScanComplete(ctx context.Context, interval time.Duration, progress func(count int)) error {
	var samples []int
	for {
		lines, err := c.request(ctx, findAllCmd, false)
		if err != nil {
			return err
		}
		count := len(lines)
		if progress != nil {
			progress(count)
		}
		samples = append(samples, count)
		if len(samples) >= scanStableSamples {
			stable := true
			for _, sample := range samples[len(samples)-scanStableSamples:] {
				if sample != count {
					stable = false
					break
				}
			}
			if stable {
				return nil
			}
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// LoadMsgDefs clears the catalog and reloads it from the daemon. Malformed
// catalog lines are logged and skipped, the synthetic "scan*" circuits of
// the daemon's discovery pass are dropped.
func (c *Client) LoadMsgDefs(ctx context.Context) error {
	c.MsgDefs.Clear()
	lines, err := c.request(ctx, findAllCmd, false)
	if err != nil {
		return errors.Wrap(err, "load message definitions")
	}
	var msgdefs []*MsgDef
	for _, line := range lines {
		msgdef, err := DecodeMsgDef(line)
		if err != nil {
			log.Warnf("cannot decode message definition (%v)", err)
			continue
		}
		if strings.HasPrefix(msgdef.Circuit, "scan") {
			continue
		}
		msgdefs = append(msgdefs, msgdef)
	}
	sort.SliceStable(msgdefs, func(i, j int) bool {
		if msgdefs[i].Circuit != msgdefs[j].Circuit {
			return msgdefs[i].Circuit < msgdefs[j].Circuit
		}
		return msgdefs[i].Name < msgdefs[j].Name
	})
	for _, msgdef := range msgdefs {
		c.MsgDefs.Add(msgdef)
	}
	return nil
}

// Read polls one message and returns its decoded value. With prio set the
// daemon is told to keep polling the message at the definition's priority.
// A negative ttl leaves the daemon's cache policy alone. A daemon command
// error is logged and returns a nil message, an absent value is normal.
func (c *Client) Read(ctx context.Context, msgdef *MsgDef, prio bool, ttl int) (Message, error) {
	options := []cmdOption{
		{"-c", msgdef.Circuit},
	}
	if prio {
		p := msgdef.Prio
		if p == 0 {
			p = 1
		}
		options = append(options, cmdOption{"-p", p})
	}
	if ttl >= 0 {
		options = append(options, cmdOption{"-m", ttl})
	}
	lines, err := c.Request(ctx, "read", options, msgdef.Name)
	if err != nil {
		if IsCommandError(err) {
			log.Warnf("read %s: %v", msgdef.Ident(), err)
			return nil, nil
		}
		return nil, err
	}
	if len(lines) == 0 {
		return &BrokenMsg{MsgDef: msgdef, Error: "no data stored"}, nil
	}
	return c.decoder.DecodeValue(msgdef, lines[0]), nil
}

// Write writes value to a writable message. When msgdef covers only a
// subset of the cataloged fields the write is a read-modify-write: the
// current payload is read, the caller's values are substituted at the
// fields' payload positions, and the joined payload is written back. Value
// carries one encoded field value per definition field, ";"-separated.
func (c *Client) Write(ctx context.Context, msgdef *MsgDef, value string) error {
	if !msgdef.Write {
		return errors.Errorf("%s is not writable", msgdef.Ident())
	}
	full := c.MsgDefs.Get(msgdef.Circuit, msgdef.Name)
	if full == nil {
		full = msgdef
	}
	if len(msgdef.Fields) < len(full.Fields) {
		return c.writePartial(ctx, msgdef, full, value)
	}
	_, err := c.Request(ctx, "write", []cmdOption{{"-c", msgdef.Circuit}}, msgdef.Name, value)
	return err
}

func (c *Client) writePartial(ctx context.Context, msgdef, full *MsgDef, value string) error {
	if !full.Read {
		return errors.Errorf("%s is not read-modify-writable", full.Ident())
	}
	supplied := strings.Split(value, ";")
	if len(supplied) != len(msgdef.Fields) {
		return errors.Errorf("%s expects %d values, got %d", msgdef.Ident(), len(msgdef.Fields), len(supplied))
	}
	lines, err := c.Request(ctx, "read", []cmdOption{{"-c", full.Circuit}}, full.Name)
	if err != nil {
		return errors.Wrapf(err, "read-modify-write %s", full.Ident())
	}
	if len(lines) == 0 {
		return errors.Errorf("read-modify-write %s: no data", full.Ident())
	}
	values := strings.Split(lines[0], ";")
	for i, fielddef := range msgdef.Fields {
		if fielddef.Idx >= len(values) {
			return errors.Errorf("read-modify-write %s: field %s out of range", full.Ident(), fielddef.Name)
		}
		values[fielddef.Idx] = supplied[i]
	}
	_, err = c.Request(ctx, "write", []cmdOption{{"-c", full.Circuit}}, full.Name, strings.Join(values, ";"))
	return err
}

// State returns the daemon's state, the first comma-separated token of the
// state response. A transport timeout degrades to "no ebusd connection".
func (c *Client) State(ctx context.Context) (string, error) {
	lines, err := c.request(ctx, "state", false)
	if err != nil {
		if isTimeout(err) {
			return "no ebusd connection", nil
		}
		return "", err
	}
	if len(lines) == 0 {
		return "", errors.New("empty state response")
	}
	return strings.TrimSpace(strings.SplitN(lines[0], ",", 2)[0]), nil
}

// Cmd sends a raw daemon command and streams the response lines. In
// infinite mode the stream only ends on cancellation.
func (c *Client) Cmd(ctx context.Context, cmd string, infinite bool) *LineStream {
	if err := c.Connection.Write(ctx, cmd); err != nil {
		stream := &LineStream{ch: make(chan string), err: err}
		close(stream.ch)
		return stream
	}
	return c.Connection.ReadLines(ctx, infinite, false)
}

// MsgStream is a lazy sequence of decoded messages. Drain C, then consult
// Err. Listen streams never end on their own, cancelling the context
// releases the connection.
type MsgStream struct {
	ch chan Message
	// err is written by the producer before it closes ch
	err error
}

// C returns the message channel. It is closed when the stream ends.
func (s *MsgStream) C() <-chan Message {
	return s.ch
}

// Err returns the error that ended the stream, if any.
func (s *MsgStream) Err() error {
	return s.err
}

func (s *MsgStream) emit(ctx context.Context, msg Message) bool {
	select {
	case s.ch <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Listen subscribes to the daemon's update stream and yields every decoded
// message matching selection (nil selects everything). Events for unknown
// messages are dropped silently, undecodable lines are logged and skipped.
// The stream never terminates until ctx is cancelled.
func (c *Client) Listen(ctx context.Context, selection *MsgDefs) *MsgStream {
	stream := &MsgStream{ch: make(chan Message)}
	go func() {
		defer close(stream.ch)
		stream.err = c.listen(ctx, selection, stream, nil)
	}()
	return stream
}

// listen runs the listen loop, emitting into stream. last, when non-nil, is
// kept current for the observe engine.
func (c *Client) listen(ctx context.Context, selection *MsgDefs, stream *MsgStream, last map[*MsgDef]*Msg) error {
	if err := c.Connection.Write(ctx, "listen"); err != nil {
		return err
	}
	lines := c.Connection.ReadLines(ctx, true, false)
	for line := range lines.C() {
		if line == "" || line == "listen started" {
			continue
		}
		msg, err := c.decodeListenLine(line)
		if err != nil || msg == nil {
			continue
		}
		out, msgdef := msg, msg.Definition()
		if selection != nil {
			out, msgdef = filterMsgWithDef(msg, selection)
			if out == nil {
				continue
			}
		}
		if !stream.emit(ctx, out) {
			break
		}
		if last != nil {
			if decoded, ok := out.(*Msg); ok {
				last[msgdef] = decoded
			}
		}
	}
	// drain so the producer has finished before its error is read
	for range lines.C() {
	}
	if err := lines.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Client) decodeListenLine(line string) (Message, error) {
	msg, err := c.decoder.DecodeLine(line)
	if err != nil {
		switch err.(type) {
		case *UnknownMsgError:
			// the daemon announces messages we have not chosen to track
			log.Debugf("listen: %v", err)
		default:
			log.Warnf("cannot decode message (%v)", err)
		}
		return nil, err
	}
	return msg, nil
}

// Observe yields the current value of every message in selection (nil
// selects the whole catalog), then any updates that raced the initial
// sweep, and then follows the live update stream indefinitely. A message is
// only emitted when its value changed against its last observation, except
// in the live phase where the daemon itself emits on change.
func (c *Client) Observe(ctx context.Context, selection *MsgDefs, prio bool, ttl int) *MsgStream {
	if selection == nil {
		selection = c.MsgDefs
	}
	stream := &MsgStream{ch: make(chan Message)}
	go func() {
		defer close(stream.ch)
		last := make(map[*MsgDef]*Msg)
		if err := c.observeRead(ctx, selection, prio, ttl, stream, last); err != nil {
			stream.err = err
			return
		}
		if err := c.observeCatchUp(ctx, selection, stream, last); err != nil {
			stream.err = err
			return
		}
		stream.err = c.listen(ctx, selection, stream, last)
	}()
	return stream
}

// observeRead seeds the observation: every readable message is read once,
// update-only messages get a nil entry so later change detection fires on
// their first event.
func (c *Client) observeRead(ctx context.Context, selection *MsgDefs, prio bool, ttl int, stream *MsgStream, last map[*MsgDef]*Msg) error {
	for _, msgdef := range selection.All() {
		if !msgdef.Read {
			if msgdef.Update {
				last[msgdef] = nil
			}
			continue
		}
		msg, err := c.Read(ctx, msgdef, prio, ttl)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		decoded, ok := msg.(*Msg)
		if !ok {
			continue
		}
		out, key := filterMsgWithDef(decoded, selection)
		if out == nil {
			continue
		}
		filtered, ok := out.(*Msg)
		if !ok || len(filtered.Fields) == 0 {
			continue
		}
		if !stream.emit(ctx, filtered) {
			return ctx.Err()
		}
		last[key] = filtered
	}
	return ctx.Err()
}

// observeCatchUp re-reads recently updated values via `find -d` to cover
// the race with changes that arrived during the initial sweep, emitting
// only values that differ from the seeded ones.
func (c *Client) observeCatchUp(ctx context.Context, selection *MsgDefs, stream *MsgStream, last map[*MsgDef]*Msg) error {
	lines, err := c.Request(ctx, "find", []cmdOption{{"-d", true}})
	if err != nil {
		return errors.Wrap(err, "catch up")
	}
	for _, line := range lines {
		msg, err := c.decodeListenLine(line)
		if err != nil || msg == nil {
			continue
		}
		out, key := filterMsgWithDef(msg, selection)
		if out == nil {
			continue
		}
		filtered, ok := out.(*Msg)
		if !ok {
			continue
		}
		if filtered.Equal(last[key]) {
			continue
		}
		if !stream.emit(ctx, filtered) {
			return ctx.Err()
		}
		last[key] = filtered
	}
	return ctx.Err()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) String() string {
	return fmt.Sprintf("Client(%s:%d)", c.Connection.Host(), c.Connection.Port())
}
