package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"herald/internal/constants"
)

// SentStore remembers which events already produced a notification, so a
// redelivered message does not notify twice.
type SentStore interface {
	WasSent(ctx context.Context, eventID string) (bool, error)
	MarkSent(ctx context.Context, eventID string) error
}

type RedisSentStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSentStore(client *redis.Client, ttl time.Duration) *RedisSentStore {
	return &RedisSentStore{client: client, ttl: ttl}
}

func (s *RedisSentStore) key(eventID string) string {
	return constants.CacheKeyPrefixSent + eventID
}

func (s *RedisSentStore) WasSent(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSentStore) MarkSent(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SetNX failed: %w", err)
	}
	return nil
}
