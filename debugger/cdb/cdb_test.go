package cdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	internalconsole "github.com/wnxd/memdbg/internal/console"
	"github.com/wnxd/memdbg/internal/console/consoletest"
)

const base = 0x7ff6a0000000

func start(target *consoletest.Target, cfg console.Config) func(context.Context) (console.Console, error) {
	return func(ctx context.Context) (console.Console, error) {
		r, w := target.Serve()
		return internalconsole.NewSession(ctx, r, w, cfg, "game.exe", console.ARCH_X86_64)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	target := consoletest.New()
	target.AddModule("game.exe", base, 0x10000)
	target.PokeUint(base+0x40, 4, 1234)

	con, err := start(target, console.DefaultConfig())(ctx)
	require.NoError(t, err)
	dbg, err := Open(con)
	require.NoError(t, err)
	defer dbg.Close()

	assert.Equal(t, "game.exe", dbg.ProcessName())
	assert.Equal(t, uint64(8), dbg.PointerSize())
	ptr, _, err := dbg.Memory(ctx, debugger.AtModule("game.exe"), 0x40)
	require.NoError(t, err)
	n, err := ptr.Byte4(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), n)
}

func TestOpenSync(t *testing.T) {
	target := consoletest.New()
	target.AddModule("game.exe", base, 0x10000)
	cfg := console.DefaultConfig()

	dbg, err := OpenSync(context.Background(), start(target, cfg), debugger.WithConsole(cfg))
	require.NoError(t, err)

	mod, err := dbg.FindModule("")
	require.NoError(t, err)
	assert.Equal(t, uint64(base), mod.Base)
	require.NoError(t, dbg.ToPointer(base+0x80).SetDouble(0.5))
	f, err := dbg.ToPointer(base + 0x80).Double()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	require.NoError(t, dbg.Close())
	assert.Eventually(t, target.Detached, time.Second, time.Millisecond)
}

func TestOpenUnknownDialect(t *testing.T) {
	target := consoletest.New()
	cfg := console.DefaultConfig()
	cfg.Dialect = console.DefaultDialect()
	cfg.Dialect.Name = "cdb-test-unregistered"

	con, err := start(target, cfg)(context.Background())
	require.NoError(t, err)
	defer con.Close()
	_, err = Open(con)
	assert.ErrorIs(t, err, debugger.ErrDialectUnsupported)

	assert.True(t, RegisterDialect("cdb-test-registered"))
	assert.False(t, RegisterDialect("cdb-test-registered"))
	assert.False(t, RegisterDialect("cdb"))
}
