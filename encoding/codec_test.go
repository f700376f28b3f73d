package encoding

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEchoedAddress(t *testing.T) {
	c := NewCodec(8, `"`)
	v, err := c.Decode(TYPE_BYTE4, 0x7ff6a0010000, "7ff6a0010000  12345678  ")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), v.Uint())

	v, err = c.Decode(TYPE_BYTE8, 0x7ff6a0010000, "00007ff6a0010000  00000001`00000002\r\n0:000> ")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x100000002), v.Uint())
}

func TestDecodeNeedsWholeAddress(t *testing.T) {
	c := NewCodec(8, `"`)
	_, err := c.Decode(TYPE_BYTE4, 0x100, "00001000  11111111\r\n")
	require.ErrorIs(t, err, ErrDecode)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, TYPE_BYTE4, de.Type)
	assert.Equal(t, uint64(0x100), de.Addr)
}

func TestDecodeUnreadable(t *testing.T) {
	c := NewCodec(8, `"`)
	_, err := c.Decode(TYPE_BYTE4, 0x1000, "0000000000001000  ????????\r\n")
	assert.ErrorIs(t, err, ErrDecode)
	_, err = c.Decode(TYPE_DOUBLE, 0x1000, "0000000000001000  ????????\r\n")
	assert.ErrorIs(t, err, ErrDecode)
	_, err = c.Decode(Type(42), 0x1000, "")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncodeDecode(t *testing.T) {
	for _, ptrSize := range []uint64{4, 8} {
		c := NewCodec(ptrSize, `"`)
		for _, v := range []Value{
			Uint(TYPE_BYTE, 0x7f),
			Uint(TYPE_BYTE2, 0x8001),
			Uint(TYPE_BYTE4, 0xfffffffe),
			Uint(TYPE_BYTE8, 0xfedcba9876543210),
			Uint(TYPE_POINTER, 0x00a10000),
			Float(TYPE_FLOAT, 0.25),
			Float(TYPE_DOUBLE, 1e-300),
			Text(TYPE_ASCII, "two words"),
			Text(TYPE_UNICODE, "ünï"),
		} {
			text, err := c.Encode(v.Type(), v)
			require.NoError(t, err)
			got, err := c.Decode(v.Type(), 0x401000, "00401000  "+text+"\r\n0:000> ")
			require.NoError(t, err, "%v %s", v.Type(), text)
			assert.Equal(t, v, got)
		}
	}
}

func TestEncode(t *testing.T) {
	c := NewCodec(4, `"`)
	tests := []struct {
		v    Value
		want string
	}{
		{Uint(TYPE_BYTE, 0x1ff), "ff"},
		{Uint(TYPE_BYTE2, 0xabcdef), "cdef"},
		{Uint(TYPE_POINTER, 0x1_0040_1000), "401000"},
		{Uint(TYPE_BYTE8, 0x1_0040_1000), "100401000"},
		{Float(TYPE_FLOAT, 1.5), "1.5"},
		{Float(TYPE_DOUBLE, -0.1), "-0.1"},
		{Text(TYPE_ASCII, "hi"), `"hi"`},
	}
	for _, tt := range tests {
		got, err := c.Encode(tt.v.Type(), tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEncodeBytes(t *testing.T) {
	assert.Equal(t, "00 0a ff", EncodeBytes([]byte{0, 10, 255}))
	assert.Equal(t, "", EncodeBytes(nil))
}

const dump = "00007ff6a0010000  48 65 6c 6c 6f 2c 20 77-6f 72 6c 64 21 00 01 02  Hello, world!...\r\n" +
	"00007ff6a0010010  03 04 05                                         ...\r\n" +
	"0:000> "

func TestDecodeDump(t *testing.T) {
	data, err := DecodeDump(0x7ff6a0010000, dump, 19)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("Hello, world!"), 0, 1, 2, 3, 4, 5), data)

	data, err = DecodeDump(0x7ff6a0010000, dump, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), data)

	_, err = DecodeDump(0x7ff6a0010000, dump, 20)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeDumpUnreadable(t *testing.T) {
	text := "0000000000001000  00 01 ?? ?? ?? ?? ?? ??-?? ?? ?? ?? ?? ?? ?? ??  ..??????????????\r\n"
	_, err := DecodeDump(0x1000, text, 16)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint64(0x1002), de.Addr)
}

func TestParseAlloc(t *testing.T) {
	re := regexp.MustCompile(`starting at ([0-9a-fA-F]+)`)
	addr, err := ParseAlloc("Allocated 1000 bytes starting at 7ff600000000\r\n0:000> ", re)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7ff600000000), addr)

	_, err = ParseAlloc("       ^ Syntax error in '.dvalloc'\r\n", re)
	assert.ErrorIs(t, err, ErrDecode)
}
