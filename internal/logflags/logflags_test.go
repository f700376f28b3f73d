package logflags

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLayers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(true, "wire,bridge", &buf))
	defer Setup(false, "", nil)

	assert.True(t, Wire())
	assert.True(t, Bridge())
	assert.False(t, Console())
	assert.False(t, Debugger())

	WireLogger().Debug("dd 1000 L 1")
	assert.Contains(t, buf.String(), "layer=wire")
	assert.Contains(t, buf.String(), "dd 1000 L 1")

	buf.Reset()
	DebuggerLogger().Debug("hidden")
	assert.Empty(t, buf.String())
	DebuggerLogger().Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupErrors(t *testing.T) {
	assert.Error(t, Setup(false, "wire", nil))
	assert.Error(t, Setup(true, "nope", nil))
	require.NoError(t, Setup(true, "", nil))
	assert.True(t, Debugger())
	require.NoError(t, Setup(false, "", nil))
	assert.Equal(t, logrus.WarnLevel, DebuggerLogger().Logger.Level)
}
