package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vec3 struct {
	X, Y, Z float32
}

type entity struct {
	Alive  bool
	Health int16
	ID     uint32
	Pos    vec3
	Owner  uintptr
	Tags   [2]int8
	scratch []byte `encoding:"ignore"`
}

func TestSizeof(t *testing.T) {
	n, err := Sizeof(8, entity{})
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	n, err = Sizeof(4, &entity{})
	require.NoError(t, err)
	assert.Equal(t, 28, n)

	_, err = Sizeof(8, "text")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Sizeof(8, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestMarshalLayout(t *testing.T) {
	data, err := Marshal(4, entity{Alive: true, Health: -2, ID: 0x01020304, Pos: vec3{X: 1}, Owner: 0x401000, Tags: [2]int8{-1, 5}})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1, 0, 0xfe, 0xff, 4, 3, 2, 1,
		0, 0, 0x80, 0x3f, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0x10, 0x40, 0,
		0xff, 5, 0, 0,
	}, data)

	var got entity
	require.NoError(t, Unmarshal(data, 4, &got))
	assert.Equal(t, int16(-2), got.Health)
	assert.Equal(t, [2]int8{-1, 5}, got.Tags)
	assert.Equal(t, uintptr(0x401000), got.Owner)
}

func TestUnmarshalErrors(t *testing.T) {
	var e entity
	assert.ErrorIs(t, Unmarshal(make([]byte, 4), 8, &e), ErrShortBuffer)
	assert.ErrorIs(t, Unmarshal(make([]byte, 32), 8, e), ErrUnsupported)

	type withMap struct{ M map[string]int }
	_, err := Marshal(8, withMap{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestUnexportedFields(t *testing.T) {
	type pair struct {
		a uint8
		b uint64
	}
	data, err := Marshal(8, pair{a: 7, b: 9})
	require.NoError(t, err)
	require.Len(t, data, 16)

	var got pair
	require.NoError(t, Unmarshal(data, 8, &got))
	assert.Equal(t, pair{a: 7, b: 9}, got)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(0x2000), Align[uint64](0x1001, 0x1000))
	assert.Equal(t, 8, Align(8, 8))
	assert.Equal(t, 12, Align(9, 4))
}

func TestPointerWidthFields(t *testing.T) {
	type slot struct {
		Index int
		Next  uintptr
		Flag  uint8
	}
	in := slot{Index: -2, Next: 0x401000, Flag: 1}

	data, err := Marshal(4, &in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xff, 0xff, 0xff, 0, 0x10, 0x40, 0, 1, 0, 0, 0}, data)

	var out slot
	require.NoError(t, Unmarshal(data, 4, &out))
	assert.Equal(t, in, out)

	n, err := Sizeof(8, out)
	require.NoError(t, err)
	assert.Equal(t, 24, n)
}
