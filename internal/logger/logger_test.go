package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"herald/internal/config"
	"herald/pkg/logging"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		enabled zapcore.Level
		muted   []zapcore.Level
		wantErr bool
	}{
		{name: "defaults to info", cfg: config.LoggingConfig{}, enabled: zapcore.InfoLevel, muted: []zapcore.Level{zapcore.DebugLevel}},
		{name: "debug console", cfg: config.LoggingConfig{Level: "debug", Format: "console"}, enabled: zapcore.DebugLevel},
		{name: "warn json", cfg: config.LoggingConfig{Level: "warn", Format: "json"}, enabled: zapcore.WarnLevel, muted: []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel}},
		{name: "unknown level", cfg: config.LoggingConfig{Level: "verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg, "notification-service")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "logging.level")
				return
			}
			require.NoError(t, err)

			core := log.(*SugaredLogger).Desugar().Core()
			assert.True(t, core.Enabled(tt.enabled))
			for _, lvl := range tt.muted {
				assert.False(t, core.Enabled(lvl), lvl.String())
			}
		})
	}
}

func TestSugaredLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core, "notification-service")

	ctx := logging.WithDelivery(logging.WithEventID(context.Background(), "u-1"), "user.created", 2, 41)
	log.WarnwCtx(ctx, "Welcome notification failed", "error", "timeout")

	replayCtx := logging.WithServiceName(context.Background(), "dlt-replay")
	log.InfowCtx(replayCtx, "Dead-letter record replayed")

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "notification-service", fields["service_name"])
	assert.Equal(t, "u-1", fields["event_id"])
	assert.Equal(t, "user.created", fields["topic"])
	assert.Equal(t, "2", fields["partition"])
	assert.Equal(t, "41", fields["offset"])
	assert.Equal(t, "timeout", fields["error"])

	assert.Equal(t, "dlt-replay", entries[1].ContextMap()["service_name"])
}
