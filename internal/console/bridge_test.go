package console

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/internal/console/consoletest"
)

func startBridge(t *testing.T, target *consoletest.Target, cfg console.Config) *Bridge {
	t.Helper()
	b, err := NewBridge(context.Background(), cfg, func(ctx context.Context) (console.Console, error) {
		r, w := target.Serve()
		return NewSession(ctx, r, w, cfg, "game.exe", console.ARCH_X86_64)
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBridgeWaitStrategies(t *testing.T) {
	for _, wait := range []console.WaitStrategy{console.WAIT_BLOCK, console.WAIT_SPIN} {
		t.Run(wait.String(), func(t *testing.T) {
			target := newTarget()
			target.PokeUint(0x7ff6a0010000, 4, 0xdeadbeef)
			cfg := console.DefaultConfig()
			cfg.Wait = wait
			b := startBridge(t, target, cfg)

			assert.Equal(t, "game.exe", b.ProcessName())
			assert.Equal(t, console.ARCH_X86_64, b.Arch())
			assert.NotEmpty(t, b.ID())

			reply, err := b.Exec(context.Background(), console.Command{
				Text:   "dd 7ff6a0010000 L 1",
				Expect: []string{"7ff6a0010000", "0:000>"},
			})
			require.NoError(t, err)
			assert.Contains(t, reply, "deadbeef")

			reply, err = b.Exec(context.Background(), console.Command{Text: "lmn", Expect: []string{"start"}, Accumulate: true})
			require.NoError(t, err)
			assert.Contains(t, reply, "ntdll.dll")
		})
	}
}

func TestBridgeSerialisesCallers(t *testing.T) {
	target := newTarget()
	target.ChunkSize = 6
	cfg := console.DefaultConfig()
	cfg.Wait = console.WAIT_SPIN
	b := startBridge(t, target, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Exec(context.Background(), console.Command{Text: "dd 7ff6a0000000 L 1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, target.Overlaps())
	assert.Equal(t, 6, target.Count("dd "))
}

func TestBridgeRegionOverflow(t *testing.T) {
	target := newTarget()
	cfg := console.DefaultConfig()
	cfg.RegionSize = 256
	b := startBridge(t, target, cfg)

	_, err := b.Exec(context.Background(), console.Command{Text: "db 7ff6a0000000 L 100"})
	assert.ErrorIs(t, err, console.ErrRegionOverflow)

	reply, err := b.Exec(context.Background(), console.Command{Text: "dd 7ff6a0000000 L 1"})
	require.NoError(t, err)
	assert.Contains(t, reply, "7ff6a0000000")
}

func TestBridgeCloseDetaches(t *testing.T) {
	target := newTarget()
	b := startBridge(t, target, console.DefaultConfig())

	require.NoError(t, b.Close())
	assert.Eventually(t, target.Detached, time.Second, time.Millisecond)

	_, err := b.Exec(context.Background(), console.Command{Text: "dd 0 L 1"})
	assert.ErrorIs(t, err, console.ErrClosed)
	assert.NoError(t, b.Close())
}

func TestBridgeStartFailure(t *testing.T) {
	target := newTarget()
	target.Fail = "Cannot debug pid 0"
	_, err := NewBridge(context.Background(), console.DefaultConfig(), func(ctx context.Context) (console.Console, error) {
		r, w := target.Serve()
		return NewSession(ctx, r, w, console.DefaultConfig(), "game.exe", console.ARCH_X86_64)
	})
	assert.ErrorIs(t, err, console.ErrAttachFailed)
}
