package bootstrap

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/logger"
)

func redisConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.DatabaseConfig{Redis: config.RedisConfig{Host: mr.Host(), Port: port}}
}

func TestDatabaseConnector_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("required redis", func(t *testing.T) {
		stores, err := NewDatabaseConnector(redisConfig(t), "test", logger.NopLogger()).Connect(ctx, Redis, 0)
		require.NoError(t, err)
		require.NotNil(t, stores.Redis)
		assert.NoError(t, stores.Redis.Ping(ctx).Err())
		assert.Nil(t, stores.Postgres)
		assert.Nil(t, stores.MongoDB)
		assert.Empty(t, stores.Close(ctx))
	})

	t.Run("required but not configured", func(t *testing.T) {
		_, err := NewDatabaseConnector(config.DatabaseConfig{}, "user-service", logger.NopLogger()).Connect(ctx, Postgres, 0)
		require.ErrorIs(t, err, ErrNotConfigured)
		assert.Contains(t, err.Error(), "user-service requires postgres")
	})

	t.Run("optional and not configured", func(t *testing.T) {
		stores, err := NewDatabaseConnector(config.DatabaseConfig{}, "test", logger.NopLogger()).Connect(ctx, 0, Postgres|MongoDB)
		require.NoError(t, err)
		assert.Nil(t, stores.Postgres)
		assert.Nil(t, stores.MongoClient)
	})

	t.Run("unrequested stores are not opened", func(t *testing.T) {
		stores, err := NewDatabaseConnector(redisConfig(t), "test", logger.NopLogger()).Connect(ctx, 0, 0)
		require.NoError(t, err)
		assert.Nil(t, stores.Redis)
	})

	t.Run("failure closes opened stores", func(t *testing.T) {
		cfg := redisConfig(t)
		_, err := NewDatabaseConnector(cfg, "test", logger.NopLogger()).Connect(ctx, Redis|MongoDB, 0)
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestStore_String(t *testing.T) {
	assert.Equal(t, "postgres", Postgres.String())
	assert.Equal(t, "redis+mongodb", (Redis | MongoDB).String())
	assert.Equal(t, "", Store(0).String())
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "herald",
		Password: "p@ss:word",
		DBName:   "users",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://herald:p%40ss%3Aword@db:5432/users?sslmode=disable", dsn)
}

func TestStores_CloseNil(t *testing.T) {
	var stores *Stores
	assert.Empty(t, stores.Close(context.Background()))
}
