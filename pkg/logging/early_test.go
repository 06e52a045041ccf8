package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEarlyLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := newEarlyLogger(core, "notification-service")

	log.Errorw("Failed to load config", "config_file", "configs/missing.yaml", "error", errors.New("no such file"))
	log.Debugw("dropped below info")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Failed to load config", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "notification-service", fields["service_name"])
	assert.Equal(t, "configs/missing.yaml", fields["config_file"])
	assert.Equal(t, "no such file", fields["error"])
}

func TestNewEarlyLogger(t *testing.T) {
	log := NewEarlyLogger("user-service")
	require.NotNil(t, log)
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}
