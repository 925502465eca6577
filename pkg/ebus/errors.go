// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package ebus

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned on I/O without an established connection when
// autoconnect is off.
var ErrNotConnected = errors.New("not connected")

// CommandError is a daemon "ERR: ..." reply to a command.
type CommandError struct {
	Detail string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s", e.Detail)
}

// IsCommandError reports whether err is a CommandError.
func IsCommandError(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}

// FormatError is a received event line that does not match the event
// grammar.
type FormatError struct {
	Line string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid line %q", e.Line)
}

// UnknownMsgError is a received event for a message the catalog does not
// know. Listeners drop these silently, the daemon may announce messages we
// have not chosen to track.
type UnknownMsgError struct {
	Circuit string
	Name    string
}

func (e *UnknownMsgError) Error() string {
	return fmt.Sprintf("unknown message circuit=%s, name=%s", e.Circuit, e.Name)
}
