package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/metaport/internal/config"
)

func TestNew_ValidConfig(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestContextHelpers(t *testing.T) {
	log := NewNop()

	assert.NotNil(t, log.WithRun("run-1"))
	assert.NotNil(t, log.WithKind("domain"))
	assert.NotNil(t, log.WithBatch(3))
}
