package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	"herald/internal/logger"
	"herald/pkg/models"
	"herald/pkg/retry"
)

type welcomerFunc func(ctx context.Context, event models.UserCreatedEvent) error

func (f welcomerFunc) SendWelcome(ctx context.Context, event models.UserCreatedEvent) error {
	return f(ctx, event)
}

func message(t *testing.T, event models.UserCreatedEvent) broker.Message {
	t.Helper()
	value, err := event.Marshal()
	require.NoError(t, err)
	return broker.Message{Topic: "user.created", Key: []byte(event.Key()), Value: value}
}

func TestUserCreatedConsumer_OnMessage(t *testing.T) {
	event := models.NewUserCreatedEvent(uuid.New(), "johndoe", "john@example.com", time.Now())
	boom := errors.New("provider down")

	tests := []struct {
		name     string
		welcomer welcomerFunc
		wantErr  error
	}{
		{
			name:     "success",
			welcomer: func(context.Context, models.UserCreatedEvent) error { return nil },
		},
		{
			name:     "failure is rethrown",
			welcomer: func(context.Context, models.UserCreatedEvent) error { return boom },
			wantErr:  boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.UserCreatedEvent
			c := NewUserCreatedConsumer(welcomerFunc(func(ctx context.Context, e models.UserCreatedEvent) error {
				got = e
				return tt.welcomer(ctx, e)
			}), logger.NopLogger())

			err := c.OnMessage(context.Background(), message(t, event))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, retry.IsFatal(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, event, got)
		})
	}
}

func TestUserCreatedConsumer_UndecodableIsFatal(t *testing.T) {
	called := false
	c := NewUserCreatedConsumer(welcomerFunc(func(context.Context, models.UserCreatedEvent) error {
		called = true
		return nil
	}), logger.NopLogger())

	err := c.OnMessage(context.Background(), broker.Message{Topic: "user.created", Value: []byte("{oops")})
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	assert.False(t, called)
}
