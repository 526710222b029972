package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("json", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("console", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("json", "loud")
	assert.Error(t, err)
}

func TestWithThreadAndModel(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	WithModel(WithThread(l, "abc"), "gemini", "  ").Info("hello")

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "abc", ctx[FieldThreadID])
	assert.Equal(t, "gemini", ctx[FieldProvider])
	_, hasModel := ctx[FieldModel]
	assert.False(t, hasModel)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	assert.NotPanics(t, func() { WithThread(nil, "x").Info("ignored") })
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 10))
	assert.Equal(t, "ab...", TruncateForLog("abcdef", 2))
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "hé...", TruncateForLog("héllo", 2))
}
