package debugger

import (
	"context"
	"io"

	"github.com/wnxd/memdbg/console"
)

// Debugger is the typed memory API of one attached target. Every method
// blocks until the debugger has answered; the context only bounds how long
// the caller waits.
type Debugger interface {
	io.Closer
	Console() console.Console
	ProcessName() string
	PID() int
	Arch() console.Arch
	PointerSize() uint64
	Exec(ctx context.Context, cmd console.Command) (string, error)
	MemoryManager
	ModuleManager
}

func New(con console.Console, opts ...Option) (Debugger, error) {
	if ctor, ok := lookup(con.Dialect().Name); ok {
		return ctor(con, NewOptions(opts...))
	}
	return nil, ErrDialectUnsupported
}
