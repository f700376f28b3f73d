package console

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/logflags"
)

const (
	opExec  = "exec"
	opPost  = "post"
	opClose = "close"

	kindClosed   = "closed"
	kindOverflow = "overflow"
	kindOther    = "error"
)

// Bridge gives blocking callers a session that lives on its own goroutine.
// Requests and replies cross through two shared regions; callers are
// serialised so only one request is ever in flight.
type Bridge struct {
	mu   sync.Mutex
	req  *region
	resp *region
	wait console.WaitStrategy
	log  *logrus.Entry

	id      string
	pid     int
	arch    console.Arch
	name    string
	dialect *console.Dialect

	closed bool
	done   chan struct{}
}

// StartFunc creates the session owned by the bridge goroutine.
type StartFunc func(ctx context.Context) (console.Console, error)

// NewBridge launches the host goroutine and returns once start has
// produced a session.
func NewBridge(ctx context.Context, cfg console.Config, start StartFunc) (*Bridge, error) {
	b := &Bridge{
		req:  newRegion(cfg.RegionSize),
		resp: newRegion(cfg.RegionSize),
		wait: cfg.Wait,
		done: make(chan struct{}),
	}
	started := make(chan error, 1)
	go b.host(ctx, start, started)
	if err := <-started; err != nil {
		return nil, err
	}
	b.log = logflags.BridgeLogger().WithField("session", b.id)
	b.log.Debugf("bridge up, wait strategy %v", b.wait)
	return b, nil
}

// StartBridge attaches to the named process from inside a bridge.
func StartBridge(ctx context.Context, cfg console.Config, name string) (*Bridge, error) {
	return NewBridge(ctx, cfg, func(ctx context.Context) (console.Console, error) {
		return Launch(ctx, cfg, name)
	})
}

func (b *Bridge) host(ctx context.Context, start StartFunc, started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	con, err := start(ctx)
	if err != nil {
		started <- err
		return
	}
	b.id, b.pid, b.arch, b.name, b.dialect = con.ID(), con.PID(), con.Arch(), con.ProcessName(), con.Dialect()
	started <- nil

	defer b.resp.shutdown()
	for {
		if !b.req.await(1, console.WAIT_BLOCK) {
			return
		}
		frame := gjson.ParseBytes(b.req.bytes())
		op := frame.Get("op").String()
		var (
			text string
			err  error
		)
		switch op {
		case opExec:
			cmd := console.Command{Text: frame.Get("text").String(), Accumulate: frame.Get("accumulate").Bool()}
			for _, e := range frame.Get("expect").Array() {
				cmd.Expect = append(cmd.Expect, e.String())
			}
			text, err = con.Exec(context.Background(), cmd)
		case opPost:
			err = con.Post(frame.Get("text").String())
		case opClose:
			err = con.Close()
		default:
			err = fmt.Errorf("bridge: unknown op %q", op)
		}
		b.reply(op, text, err)
		if op == opClose {
			return
		}
		// the caller clears the request before the reply
		if !b.resp.await(0, console.WAIT_BLOCK) {
			return
		}
	}
}

func (b *Bridge) reply(op, text string, err error) {
	out, _ := sjson.SetBytes(nil, "text", text)
	if err != nil {
		out = encodeError(out, err)
	}
	if perr := b.resp.put(out); perr != nil {
		b.log.Warnf("%s reply: %v", op, perr)
		out = encodeError(nil, perr)
		b.resp.put(out)
	}
}

func encodeError(out []byte, err error) []byte {
	kind := kindOther
	switch {
	case errors.Is(err, console.ErrClosed):
		kind = kindClosed
	case errors.Is(err, console.ErrRegionOverflow):
		kind = kindOverflow
	}
	msg := err.Error()
	var ce *console.CommandError
	if errors.As(err, &ce) {
		out, _ = sjson.SetBytes(out, "cmd", ce.Cmd)
		msg = ce.Err.Error()
	}
	out, _ = sjson.SetBytes(out, "error", msg)
	out, _ = sjson.SetBytes(out, "kind", kind)
	return out
}

func decodeError(frame gjson.Result) error {
	msg := frame.Get("error")
	if !msg.Exists() {
		return nil
	}
	var err error
	switch frame.Get("kind").String() {
	case kindClosed:
		err = console.ErrClosed
	case kindOverflow:
		err = fmt.Errorf("%w: %s", console.ErrRegionOverflow, msg.String())
	default:
		err = errors.New(msg.String())
	}
	if cmd := frame.Get("cmd"); cmd.Exists() {
		return &console.CommandError{Cmd: cmd.String(), Err: err}
	}
	return err
}

// call performs one round trip: publish the request, wait for the reply,
// then clear both regions.
func (b *Bridge) call(req []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", console.ErrClosed
	}
	if err := b.req.put(req); err != nil {
		return "", err
	}
	if !b.resp.await(1, b.wait) {
		b.req.clear()
		return "", console.ErrClosed
	}
	frame := gjson.ParseBytes(b.resp.bytes())
	b.req.clear()
	b.resp.clear()
	return frame.Get("text").String(), decodeError(frame)
}

func (b *Bridge) ID() string {
	return b.id
}

func (b *Bridge) PID() int {
	return b.pid
}

func (b *Bridge) Arch() console.Arch {
	return b.arch
}

func (b *Bridge) ProcessName() string {
	return b.name
}

func (b *Bridge) Dialect() *console.Dialect {
	return b.dialect
}

// Exec blocks until the reply arrives. The context is only checked before
// the request is published.
func (b *Bridge) Exec(ctx context.Context, cmd console.Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req, _ := sjson.SetBytes(nil, "op", opExec)
	req, _ = sjson.SetBytes(req, "text", cmd.Text)
	if len(cmd.Expect) > 0 {
		req, _ = sjson.SetBytes(req, "expect", cmd.Expect)
	}
	req, _ = sjson.SetBytes(req, "accumulate", cmd.Accumulate)
	return b.call(req)
}

func (b *Bridge) Post(text string) error {
	req, _ := sjson.SetBytes(nil, "op", opPost)
	req, _ = sjson.SetBytes(req, "text", text)
	_, err := b.call(req)
	return err
}

// Close detaches the session and stops the host goroutine.
func (b *Bridge) Close() error {
	req, _ := sjson.SetBytes(nil, "op", opClose)
	_, err := b.call(req)
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.req.shutdown()
	<-b.done
	if errors.Is(err, console.ErrClosed) {
		return nil
	}
	return err
}
