package console

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDialectCommands(t *testing.T) {
	d := DefaultDialect()
	require.NoError(t, d.Validate())

	code, ok := d.TypeCode("byte4")
	require.True(t, ok)
	assert.Equal(t, "dd 7ff6a0010000 L 1", d.Read(code, "7ff6a0010000"))
	assert.Equal(t, "ea 401000 \"hi\"", d.Write("a", "401000", `"hi"`))
	assert.Equal(t, "db 401000 L 100", d.Dump("401000", 256))
	assert.Equal(t, "eb 401000 01 02", d.WriteBytes("401000", "01 02"))
	assert.Equal(t, ".dvalloc 1000", d.Alloc(0x1000))
	assert.Equal(t, ".dvfree a10000 1000", d.Free("a10000", 0x1000))
	assert.Equal(t, "cdb64.exe", d.Binary(ARCH_X86_64))
	assert.Equal(t, "cdb32.exe", d.Binary(ARCH_X86))
}

func TestNormalize(t *testing.T) {
	d := DefaultDialect()
	assert.Equal(t, "00007ff6a0010000  0000000112345678", d.Normalize("00007ff6`a0010000  00000001`12345678"))
	assert.Equal(t, "00401000  12345678", d.Normalize("00401000  12345678"))
}

func TestFailed(t *testing.T) {
	d := DefaultDialect()
	line, ok := d.Failed("Memory access error at '1000 1'\r\n0:000> ")
	assert.True(t, ok)
	assert.Equal(t, "Memory access error at '1000 1'", line)
	_, ok = d.Failed("0:000> ")
	assert.False(t, ok)
}

func TestLoadDialect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windbgx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: windbgx\nprompt: \"1:001>\"\nbinary64: windbgx.exe\n"), 0o644))

	d, err := LoadDialect(path)
	require.NoError(t, err)
	assert.Equal(t, "windbgx", d.Name)
	assert.Equal(t, "1:001>", d.Prompt)
	assert.Equal(t, "windbgx.exe", d.Binary64)
	assert.Equal(t, "cdb32.exe", d.Binary32)
	assert.Equal(t, "lmn", d.ModulesCmd)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: x\nnormalize:\n  - pattern: \"(\"\n"), 0o644))
	_, err = LoadDialect(bad)
	assert.Error(t, err)

	_, err = LoadDialect(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrDialectNotFound)
}
