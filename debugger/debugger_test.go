package debugger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/memdbg/encoding"
)

// sparse is a MemoryManager over a map, enough to drive Pointer.
type sparse struct {
	MemoryManager
	vals map[uint64]encoding.Value
}

func (s *sparse) Read(_ context.Context, typ encoding.Type, addr uint64) (encoding.Value, error) {
	v, ok := s.vals[addr]
	if !ok {
		return encoding.Value{}, ErrAddressInvalid
	}
	return v, nil
}

func (s *sparse) Write(_ context.Context, typ encoding.Type, addr uint64, val encoding.Value) error {
	s.vals[addr] = val
	return nil
}

func TestPointer(t *testing.T) {
	ctx := context.Background()
	mem := &sparse{vals: map[uint64]encoding.Value{}}
	p := NewPointer(mem, 0x1000)
	assert.False(t, p.IsNil())
	assert.True(t, NewPointer(mem, 0).IsNil())

	require.NoError(t, p.SetPtr(ctx, 0x2000))
	next, err := p.Deref(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2000), next.Address())

	require.NoError(t, next.Add(4).SetFloat(ctx, 2.5))
	f, err := next.Add(4).Float(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), f)

	require.NoError(t, next.Add(-4).SetUnicode(ctx, "name"))
	s, err := NewPointer(mem, 0x1ffc).Unicode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "name", s)

	_, err = NewPointer(mem, 0x3000).Byte(ctx)
	assert.ErrorIs(t, err, ErrAddressInvalid)

	var unbound Pointer
	_, err = unbound.Byte4(ctx)
	assert.ErrorIs(t, err, ErrAddressInvalid)
	assert.ErrorIs(t, unbound.WriteBuffer(ctx, []byte{1}), ErrAddressInvalid)

	sp := SyncPointer{p}
	b, err := sp.Add(0).Ptr()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2000), b)
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, AtAddr(0x401000), ParseOrigin("0x401000"))
	assert.Equal(t, AtModule("game.exe"), ParseOrigin("game.exe"))
	assert.Equal(t, AtModule("0xzz"), ParseOrigin("0xzz"))
	assert.Equal(t, "0x401000", AtAddr(0x401000).String())
	assert.True(t, AtModule("a").IsModule())
	assert.False(t, AtAddr(0).IsModule())
}

func TestConvert(t *testing.T) {
	v := encoding.Uint(encoding.TYPE_BYTE, 0xff)
	assert.Equal(t, int8(-1), Convert[int8](v))
	assert.Equal(t, uint32(0xff), Convert[uint32](v))
	assert.Equal(t, 1.5, Convert[float64](encoding.Float(encoding.TYPE_DOUBLE, 1.5)))
	assert.True(t, Plausible(0x7ff6a0000000))
	assert.False(t, Plausible(0x20))
}

func TestNewUnknownDialect(t *testing.T) {
	assert.True(t, Register("test-only", nil))
	assert.False(t, Register("test-only", nil))
	_, ok := lookup("nope")
	assert.False(t, ok)
}

func TestModule(t *testing.T) {
	m := Module{Name: "game.exe", Module: "game", Base: 0x1000, End: 0x3000}
	assert.Equal(t, uint64(0x2000), m.Size())
	assert.True(t, m.Contains(0x2fff))
	assert.False(t, m.Contains(0x3000))
	assert.Equal(t, Region{Addr: 0x10, Size: 0x10}.End(), uint64(0x20))
}
