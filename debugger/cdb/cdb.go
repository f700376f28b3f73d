// Package cdb attaches to Windows processes through the console debugger.
package cdb

import (
	"context"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	internal "github.com/wnxd/memdbg/internal/debugger"
	internalconsole "github.com/wnxd/memdbg/internal/console"
)

var _ = debugger.Register("cdb", internal.NewCdbDebugger)

// RegisterDialect lets a dialect loaded under another name reuse the cdb
// facade. It reports false if the name is taken.
func RegisterDialect(name string) bool {
	return debugger.Register(name, internal.NewCdbDebugger)
}

// Attach launches cdb non-invasively against the named process and waits
// for it to become ready.
func Attach(ctx context.Context, name string, opts ...debugger.Option) (debugger.Debugger, error) {
	o := debugger.NewOptions(opts...)
	s, err := internalconsole.Launch(ctx, o.Console, name)
	if err != nil {
		return nil, err
	}
	dbg, err := debugger.New(s, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return dbg, nil
}

// AttachSync is Attach for callers that cannot wait on a context: the
// session runs on its own goroutine and every later call blocks until the
// debugger answered.
func AttachSync(ctx context.Context, name string, opts ...debugger.Option) (debugger.SyncDebugger, error) {
	o := debugger.NewOptions(opts...)
	b, err := internalconsole.StartBridge(ctx, o.Console, name)
	if err != nil {
		return nil, err
	}
	return wrapSync(b, opts)
}

// Open builds a facade over an existing console, such as one reached over
// a pipe rather than launched here.
func Open(con console.Console, opts ...debugger.Option) (debugger.Debugger, error) {
	return debugger.New(con, opts...)
}

// OpenSync is Open for a console that should be driven through a bridge.
func OpenSync(ctx context.Context, start func(context.Context) (console.Console, error), opts ...debugger.Option) (debugger.SyncDebugger, error) {
	o := debugger.NewOptions(opts...)
	b, err := internalconsole.NewBridge(ctx, o.Console, start)
	if err != nil {
		return nil, err
	}
	return wrapSync(b, opts)
}

func wrapSync(con console.Console, opts []debugger.Option) (debugger.SyncDebugger, error) {
	dbg, err := debugger.New(con, opts...)
	if err != nil {
		con.Close()
		return nil, err
	}
	return internal.NewSync(dbg), nil
}
