package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/logflags"
)

const (
	readBufferSize = 4096
	wireMaxLen     = 120
)

type pending struct {
	cmd    console.Command
	expect []string
	start  time.Time
	buf    string
	text   string
	err    error
	done   chan struct{}
}

// Channel turns a debugger's input and output streams into request and
// reply pairs. At most one command is outstanding at any time: the slot
// taken before writing is only given back by the reader once the reply is
// complete, so a caller that stops waiting cannot let the next command
// overtake the previous reply.
type Channel struct {
	w          io.Writer
	dialect    *console.Dialect
	chunkReset bool
	log        *logrus.Entry

	slot chan struct{}

	mu      sync.Mutex
	pending *pending
	stale   strings.Builder
	err     error
	done    chan struct{}
}

func NewChannel(r io.Reader, w io.Writer, dialect *console.Dialect, chunkReset bool) *Channel {
	c := &Channel{
		w:          w,
		dialect:    dialect,
		chunkReset: chunkReset,
		log:        logflags.WireLogger(),
		slot:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go c.pump(r)
	return c
}

// Done is closed once the output stream has ended.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Exec(ctx context.Context, cmd console.Command) (string, error) {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", &console.CommandError{Cmd: cmd.Text, Err: console.ErrClosed}
	}
	p := &pending{cmd: cmd, expect: cmd.Expect, start: time.Now(), done: make(chan struct{})}
	if len(p.expect) == 0 {
		p.expect = []string{c.dialect.Prompt}
	}
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		<-c.slot
		return "", &console.CommandError{Cmd: cmd.Text, Err: c.err}
	}
	c.drainLocked()
	c.pending = p
	c.mu.Unlock()

	if err := c.write(cmd.Text); err != nil {
		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
			<-c.slot
		}
		c.mu.Unlock()
		recordCommand(statusError, p.start)
		return "", &console.CommandError{Cmd: cmd.Text, Err: err}
	}

	select {
	case <-p.done:
		if p.err != nil {
			return p.text, &console.CommandError{Cmd: cmd.Text, Err: p.err}
		}
		return p.text, nil
	case <-ctx.Done():
		c.log.Debugf("caller gave up on %q, reply still drains", cmd.Text)
		return "", ctx.Err()
	}
}

// Await waits for tokens without sending anything, counting output that
// arrived before the call. It is used for the startup banner.
func (c *Channel) Await(ctx context.Context, expect ...string) (string, error) {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	p := &pending{expect: expect, start: time.Now(), done: make(chan struct{})}
	if len(p.expect) == 0 {
		p.expect = []string{c.dialect.Prompt}
	}
	c.mu.Lock()
	p.buf = c.dialect.Normalize(c.stale.String())
	c.stale.Reset()
	switch {
	case p.complete(c.dialect.Prompt):
		p.text = p.buf
		c.pending = p
		c.resolveLocked(nil)
	case c.err != nil:
		c.mu.Unlock()
		<-c.slot
		return p.buf, c.err
	default:
		c.pending = p
	}
	c.mu.Unlock()

	select {
	case <-p.done:
		return p.text, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Post writes a command without waiting for its reply. It still waits for
// the outstanding command to finish.
func (c *Channel) Post(text string) error {
	select {
	case c.slot <- struct{}{}:
	case <-c.done:
		return &console.CommandError{Cmd: text, Err: console.ErrClosed}
	}
	defer func() { <-c.slot }()
	c.mu.Lock()
	c.drainLocked()
	c.mu.Unlock()
	if err := c.write(text); err != nil {
		return &console.CommandError{Cmd: text, Err: err}
	}
	recordCommand(statusPosted, time.Time{})
	return nil
}

func (c *Channel) write(text string) error {
	if logflags.Wire() {
		c.log.Debugf("<- %s", truncate(text))
	}
	_, err := io.WriteString(c.w, text+"\n")
	return err
}

func (c *Channel) drainLocked() {
	if c.stale.Len() == 0 {
		return
	}
	if logflags.Wire() {
		c.log.Debugf("discard %q", truncate(c.stale.String()))
	}
	c.stale.Reset()
}

func (c *Channel) pump(r io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			receivedBytes.Add(float64(n))
			c.receive(string(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warnf("read: %v", err)
			}
			c.shutdown()
			return
		}
	}
}

func (c *Channel) receive(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	if p == nil {
		c.stale.WriteString(chunk)
		return
	}
	if c.chunkReset && !p.cmd.Accumulate {
		p.buf = ""
	}
	p.buf = c.dialect.Normalize(p.buf + chunk)
	if !p.complete(c.dialect.Prompt) {
		return
	}
	if logflags.Wire() {
		c.log.Debugf("-> %s", truncate(p.buf))
	}
	p.text = p.buf
	c.resolveLocked(nil)
}

func (c *Channel) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = console.ErrClosed
	if c.pending != nil {
		c.pending.text = c.pending.buf
		c.resolveLocked(console.ErrClosed)
	}
	close(c.done)
}

func (c *Channel) resolveLocked(err error) {
	p := c.pending
	c.pending = nil
	p.err = err
	status := statusOK
	if err != nil {
		status = statusError
	}
	recordCommand(status, p.start)
	close(p.done)
	<-c.slot
}

// complete reports whether every expected token is present. Accumulating
// commands also need the prompt after the last token other than the prompt
// itself, which means the debugger has gone idle.
func (p *pending) complete(prompt string) bool {
	last := 0
	for _, tok := range p.expect {
		i := strings.Index(p.buf, tok)
		if i < 0 {
			return false
		}
		if tok != prompt {
			last = max(last, i+len(tok))
		}
	}
	if p.cmd.Accumulate {
		return strings.Contains(p.buf[last:], prompt)
	}
	return true
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > wireMaxLen {
		return s[:wireMaxLen] + "..."
	}
	return s
}
