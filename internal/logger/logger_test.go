package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestComponent_AddsField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Component(FromZap(zap.New(core)), "merge")

	l.Info("merged", Int64("added", 3))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "merged", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "merge", ctx["component"])
	assert.Equal(t, int64(3), ctx["added"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	l.Debug("hello")

	assert.NotNil(t, NewNop())
}
