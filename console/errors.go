package console

import (
	"errors"
	"fmt"
)

var (
	ErrAttachFailed    = errors.New("attach failed")
	ErrAttachTimeout   = errors.New("attach timeout")
	ErrClosed          = errors.New("console closed")
	ErrNoBinary        = errors.New("debugger binary not found")
	ErrRegionOverflow  = errors.New("response exceeds region capacity")
	ErrDialectNotFound = errors.New("dialect not found")
)

// CommandError reports a failure while a command was outstanding.
type CommandError struct {
	Cmd string
	Err error
}

func (e *CommandError) Error() string {
	cmd := e.Cmd
	if len(cmd) > 40 {
		cmd = cmd[:40] + "..."
	}
	return fmt.Sprintf("command %q: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
