package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/logflags"
)

const detachGrace = 5 * time.Second

// Session is one attached debugger. It satisfies console.Console.
type Session struct {
	*Channel
	id      string
	pid     int
	arch    console.Arch
	name    string
	dialect *console.Dialect
	stdin   io.Closer
	log     *logrus.Entry

	closeOnce sync.Once
	closeErr  error
	release   func(grace time.Duration) error
}

// NewSession wraps already connected debugger streams and waits for the
// first prompt. On failure the streams are left to the caller.
func NewSession(ctx context.Context, r io.Reader, w io.WriteCloser, cfg console.Config, name string, arch console.Arch) (*Session, error) {
	if cfg.Dialect == nil {
		cfg.Dialect = console.DefaultDialect()
	}
	if err := cfg.Dialect.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		Channel: NewChannel(r, w, cfg.Dialect, cfg.ChunkReset),
		id:      uuid.NewString(),
		arch:    arch,
		name:    name,
		dialect: cfg.Dialect,
		stdin:   w,
	}
	s.log = logflags.ConsoleLogger().WithFields(logrus.Fields{"session": s.id, "process": name})
	if err := s.awaitPrompt(ctx, cfg.AttachTimeout); err != nil {
		return nil, err
	}
	s.log.Debugf("attached, arch %v", arch)
	return s, nil
}

func (s *Session) awaitPrompt(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	banner, err := s.Await(ctx, s.dialect.Prompt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: no prompt after %v", console.ErrAttachTimeout, timeout)
	case errors.Is(err, console.ErrClosed):
		return fmt.Errorf("%w: %s", console.ErrAttachFailed, lastLine(banner))
	}
	return err
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) PID() int {
	return s.pid
}

func (s *Session) Arch() console.Arch {
	return s.arch
}

func (s *Session) ProcessName() string {
	return s.name
}

func (s *Session) Dialect() *console.Dialect {
	return s.dialect
}

// Close detaches from the target and ends the debugger.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.dialect.DetachCmd != "" {
			if err := s.Post(s.dialect.DetachCmd); err != nil {
				s.log.Debugf("detach: %v", err)
			}
		}
		s.closeErr = s.stdin.Close()
		if s.release != nil {
			if err := s.release(detachGrace); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.log.Debug("detached")
	})
	return s.closeErr
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return text
}
