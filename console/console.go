package console

import (
	"context"
	"io"
)

// Command is one line sent to the debugger together with the tokens whose
// presence in the reply marks it complete.
type Command struct {
	Text string
	// Expect defaults to the dialect prompt when empty.
	Expect []string
	// Accumulate keeps reading past the first match until the prompt shows up
	// again after the last expected token.
	Accumulate bool
}

// Console is an attached debugger session: send text, receive text.
type Console interface {
	io.Closer
	ID() string
	PID() int
	Arch() Arch
	ProcessName() string
	Dialect() *Dialect
	Exec(ctx context.Context, cmd Command) (string, error)
	Post(text string) error
}
