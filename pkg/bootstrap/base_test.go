package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
)

func memoryBase(t *testing.T, db config.DatabaseConfig) *Base {
	t.Helper()
	cfg := &config.Config{
		Broker: config.BrokerConfig{
			Type:   constants.BrokerMemory,
			Memory: config.MemoryConfig{Partitions: 1},
		},
		Database: db,
	}
	return NewBase(cfg, logger.NopLogger(), "notification-service")
}

func TestBase_InitAndShutdown(t *testing.T) {
	base := memoryBase(t, redisConfig(t))
	assert.Equal(t, "notification-service", base.ServiceName())

	require.NoError(t, base.InitBroker())
	require.NotNil(t, base.Broker)
	require.NotNil(t, base.Producer)

	require.NoError(t, base.ConnectStores(context.Background(), 0, Redis))
	require.NotNil(t, base.Stores.Redis)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var appCtxErr error
	err := base.Shutdown(ctx, func(ctx context.Context) []error {
		appCtxErr = ctx.Err()
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, appCtxErr)
	assert.Error(t, base.Stores.Redis.Ping(context.Background()).Err())
}

func TestBase_ShutdownJoinsErrors(t *testing.T) {
	base := memoryBase(t, config.DatabaseConfig{})
	require.NoError(t, base.InitBroker())

	errServer := errors.New("server shutdown error")
	err := base.Shutdown(context.Background(), func(context.Context) []error {
		return []error{errServer}
	})
	require.ErrorIs(t, err, errServer)
	assert.Contains(t, err.Error(), "notification-service shutdown")
}

func TestBase_ConnectStoresRequired(t *testing.T) {
	base := memoryBase(t, config.DatabaseConfig{})
	err := base.ConnectStores(context.Background(), MongoDB, 0)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, base.Stores)
}
