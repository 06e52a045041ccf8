//go:build integration

package notification

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}

	opts, err := redis.ParseURL(conn)
	if err != nil {
		t.Fatalf("failed to parse redis uri: %v", err)
	}

	client := redis.NewClient(opts)
	t.Cleanup(func() {
		client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisSentStore(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisSentStore(client, time.Hour)
	ctx := context.Background()

	sent, err := store.WasSent(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, store.MarkSent(ctx, "evt-1"))
	require.NoError(t, store.MarkSent(ctx, "evt-1"))

	sent, err = store.WasSent(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, sent)

	ttl, err := client.TTL(ctx, store.key("evt-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	sent, err = store.WasSent(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, sent)
}
