package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/console/consoletest"
)

func newTarget() *consoletest.Target {
	target := consoletest.New()
	target.AddModule("game.exe", 0x7ff6a0000000, 0x100000)
	target.AddModule("ntdll.dll", 0x7ffb10000000, 0x1f0000)
	return target
}

func startSession(t *testing.T, target *consoletest.Target, cfg console.Config) *Session {
	t.Helper()
	r, w := target.Serve()
	s, err := NewSession(context.Background(), r, w, cfg, "game.exe", console.ARCH_X86_64)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionReadReply(t *testing.T) {
	target := newTarget()
	target.PokeUint(0x7ff6a0010000, 4, 0x12345678)
	s := startSession(t, target, console.DefaultConfig())

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "game.exe", s.ProcessName())
	assert.Equal(t, console.ARCH_X86_64, s.Arch())

	reply, err := s.Exec(context.Background(), console.Command{Text: "dd 7ff6a0010000 L 1"})
	require.NoError(t, err)
	assert.Contains(t, reply, "00007ff6a0010000  12345678")
	assert.Contains(t, reply, "0:000>")
}

func TestSessionJoinsSplitAddresses(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 3
	target.PokeUint(0x7ff6a0010000, 8, 0x1122334455667788)
	s := startSession(t, target, console.DefaultConfig())

	reply, err := s.Exec(context.Background(), console.Command{
		Text:   "dq 7ff6a0010000 L 1",
		Expect: []string{"7ff6a0010000", "0:000>"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "00007ff6a0010000  1122334455667788")
}

func TestSessionAttachTimeout(t *testing.T) {
	target := newTarget()
	target.Hang = true
	r, w := target.Serve()
	defer w.Close()

	cfg := console.DefaultConfig()
	cfg.AttachTimeout = 50 * time.Millisecond
	_, err := NewSession(context.Background(), r, w, cfg, "game.exe", console.ARCH_X86_64)
	assert.ErrorIs(t, err, console.ErrAttachTimeout)
}

func TestSessionAttachFailed(t *testing.T) {
	target := newTarget()
	target.Fail = "Cannot debug pid 0, Win32 error 0n87"
	r, w := target.Serve()
	defer w.Close()

	_, err := NewSession(context.Background(), r, w, console.DefaultConfig(), "game.exe", console.ARCH_X86_64)
	require.ErrorIs(t, err, console.ErrAttachFailed)
	assert.Contains(t, err.Error(), "Win32 error")
}

func TestChannelSingleFlight(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 5
	target.Delay = time.Millisecond
	for i := 0; i < 8; i++ {
		target.PokeUint(0x7ff6a0010000+uint64(i)*4, 4, uint64(i)+0x100)
	}
	s := startSession(t, target, console.DefaultConfig())

	var wg sync.WaitGroup
	replies := make([]string, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("%x", 0x7ff6a0010000+uint64(i)*4)
			replies[i], errs[i] = s.Exec(context.Background(), console.Command{
				Text:   "dd " + addr + " L 1",
				Expect: []string{addr, "0:000>"},
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		require.NoError(t, errs[i])
		assert.Contains(t, replies[i], fmt.Sprintf("%08x", i+0x100))
	}
	assert.Zero(t, target.Overlaps())
}

func TestChannelCancelKeepsOrder(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 4
	target.Delay = 5 * time.Millisecond
	target.PokeUint(0x7ff6a0010000, 4, 0xaaaa)
	target.PokeUint(0x7ff6a0010004, 4, 0xbbbb)
	s := startSession(t, target, console.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Exec(ctx, console.Command{Text: "dd 7ff6a0010000 L 1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	reply, err := s.Exec(context.Background(), console.Command{
		Text:   "dd 7ff6a0010004 L 1",
		Expect: []string{"7ff6a0010004", "0:000>"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "0000bbbb")
	assert.NotContains(t, reply, "0000aaaa")
	assert.Zero(t, target.Overlaps())
}

func TestChannelAccumulate(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 16
	s := startSession(t, target, console.DefaultConfig())

	reply, err := s.Exec(context.Background(), console.Command{
		Text:       "lmn",
		Expect:     []string{"start"},
		Accumulate: true,
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "game.exe")
	assert.Contains(t, reply, "ntdll.dll")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(reply), "0:000>"))
}

func TestChannelAccumulateOnPrompt(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 16
	s := startSession(t, target, console.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := s.Exec(ctx, console.Command{Text: "lmn", Accumulate: true})
	require.NoError(t, err)
	assert.Contains(t, reply, "ntdll.dll")

	reply, err = s.Exec(ctx, console.Command{
		Text:       "lmn",
		Expect:     []string{"start", "0:000>"},
		Accumulate: true,
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "game.exe")

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err = <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close blocked after accumulating command")
	}
}

func TestPendingComplete(t *testing.T) {
	const prompt = "0:000>"
	cases := []struct {
		name   string
		expect []string
		accum  bool
		buf    string
		want   bool
	}{
		{"prompt only", []string{prompt}, false, "x\r\n0:000> ", true},
		{"prompt only accumulating", []string{prompt}, true, "x\r\n0:000> ", true},
		{"token without prompt", []string{"start"}, true, "start end\r\n", false},
		{"token then prompt", []string{"start"}, true, "start end\r\n0:000> ", true},
		{"prompt before token", []string{"start"}, true, "0:000> start", false},
		{"token and prompt", []string{"start", prompt}, true, "start\r\n0:000> ", true},
		{"missing token", []string{"start"}, false, "0:000> ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &pending{cmd: console.Command{Accumulate: tc.accum}, expect: tc.expect, buf: tc.buf}
			assert.Equal(t, tc.want, p.complete(prompt))
		})
	}
}

func TestChannelChunkReset(t *testing.T) {
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	go io.Copy(io.Discard, inR)
	c := NewChannel(outR, inW, console.DefaultDialect(), true)

	done := make(chan string)
	go func() {
		reply, _ := c.Exec(context.Background(), console.Command{Text: "dd 1000 L 1"})
		done <- reply
	}()
	time.Sleep(10 * time.Millisecond)
	io.WriteString(outW, "00001000  ")
	io.WriteString(outW, "00000001\r\n0:000> ")
	assert.Equal(t, "00000001\r\n0:000> ", <-done)
	outW.Close()
}

func TestChannelClosed(t *testing.T) {
	target := newTarget()
	s := startSession(t, target, console.DefaultConfig())

	require.NoError(t, s.Post("qd"))
	<-s.Done()
	assert.True(t, target.Detached())

	_, err := s.Exec(context.Background(), console.Command{Text: "dd 0 L 1"})
	assert.ErrorIs(t, err, console.ErrClosed)
	var ce *console.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "dd 0 L 1", ce.Cmd)
}

func TestChannelMetrics(t *testing.T) {
	target := newTarget()
	s := startSession(t, target, console.DefaultConfig())

	before := testutil.ToFloat64(commandsTotal.WithLabelValues(statusOK))
	_, err := s.Exec(context.Background(), console.Command{Text: "dd 7ff6a0000000 L 1"})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(commandsTotal.WithLabelValues(statusOK)))
}

func TestSessionCloseDetaches(t *testing.T) {
	target := newTarget()
	r, w := target.Serve()
	s, err := NewSession(context.Background(), r, w, console.DefaultConfig(), "game.exe", console.ARCH_X86_64)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	<-s.Done()
	assert.True(t, target.Detached())
	assert.Equal(t, []string{"qd"}, target.History())
	assert.NoError(t, s.Close())
}
