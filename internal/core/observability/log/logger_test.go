package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.With(String("room", "r1")).Warn("decode fault",
		String("piece_id", "42"),
		Int("tokens", 3),
		Strings("raw", []string{"a", "b"}),
		Error(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "decode fault", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "r1", ctx["room"])
	assert.Equal(t, "42", ctx["piece_id"])
	assert.Equal(t, int64(3), ctx["tokens"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLoggerNilErrorIsSkipped(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("ok", Error(nil))

	require.Equal(t, 1, logs.Len())
	_, present := logs.All()[0].ContextMap()["error"]
	assert.False(t, present)
}

func TestLoggerLevels(t *testing.T) {
	l := NewNop()
	l.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, l.GetLevel())

	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
