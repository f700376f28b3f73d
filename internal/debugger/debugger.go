package debugger

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/encoding"
	"github.com/wnxd/memdbg/internal/logflags"
)

// Dbg is the memory facade over one console session.
type Dbg struct {
	con     console.Console
	dialect *console.Dialect
	opts    debugger.Options
	codec   *encoding.Codec
	alloc   *regexp.Regexp
	log     *logrus.Entry
	memoryManager

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewCdbDebugger builds the facade for a session speaking the cdb dialect
// or any dialect shaped like it.
func NewCdbDebugger(con console.Console, opts debugger.Options) (debugger.Debugger, error) {
	dbg := new(Dbg)
	if err := dbg.Init(con, opts); err != nil {
		return nil, err
	}
	return dbg, nil
}

func (dbg *Dbg) Init(con console.Console, opts debugger.Options) error {
	dialect := con.Dialect()
	if err := dialect.Validate(); err != nil {
		return err
	}
	alloc, err := regexp.Compile(dialect.AllocPattern)
	if err != nil {
		return fmt.Errorf("dialect %s: %w", dialect.Name, err)
	}
	if opts.AllocSize == 0 {
		opts.AllocSize = debugger.DefaultAllocSize
	}
	dbg.con = con
	dbg.dialect = dialect
	dbg.opts = opts
	dbg.codec = encoding.NewCodec(con.Arch().PointerSize(), dialect.Quote)
	dbg.alloc = alloc
	dbg.log = logflags.DebuggerLogger().WithFields(logrus.Fields{"session": con.ID(), "process": con.ProcessName()})
	dbg.memoryManager.ctor()
	return nil
}

// Close detaches. Regions obtained from Alloc stay allocated in the target.
func (dbg *Dbg) Close() error {
	dbg.closeOnce.Do(func() {
		dbg.closed.Store(true)
		dbg.memoryManager.dtor(dbg)
		dbg.closeErr = dbg.con.Close()
	})
	return dbg.closeErr
}

func (dbg *Dbg) Console() console.Console {
	return dbg.con
}

func (dbg *Dbg) ProcessName() string {
	return dbg.con.ProcessName()
}

func (dbg *Dbg) PID() int {
	return dbg.con.PID()
}

func (dbg *Dbg) Arch() console.Arch {
	return dbg.con.Arch()
}

func (dbg *Dbg) PointerSize() uint64 {
	return dbg.codec.PointerSize()
}

// Exec passes a raw command through to the console.
func (dbg *Dbg) Exec(ctx context.Context, cmd console.Command) (string, error) {
	if dbg.closed.Load() {
		return "", debugger.ErrClosed
	}
	return dbg.con.Exec(ctx, cmd)
}

func (dbg *Dbg) exec(ctx context.Context, text string, expect ...string) (string, error) {
	return dbg.Exec(ctx, console.Command{Text: text, Expect: expect})
}

// execChecked runs a command whose only meaningful output is an error.
func (dbg *Dbg) execChecked(ctx context.Context, text string) (string, error) {
	reply, err := dbg.exec(ctx, text)
	if err != nil {
		return reply, err
	}
	if line, ok := dbg.dialect.Failed(reply); ok {
		return reply, &console.CommandError{Cmd: text, Err: fmt.Errorf("%w: %s", debugger.ErrCommandRejected, line)}
	}
	return reply, nil
}
