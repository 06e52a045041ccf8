package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	"herald/internal/eventbus"
	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/models"
)

type senderFunc func(ctx context.Context, msg broker.Message, callback func(error)) error

func (f senderFunc) PublishAsync(ctx context.Context, msg broker.Message, callback func(error)) error {
	return f(ctx, msg, callback)
}

func fakeEvent() models.UserCreatedEvent {
	return models.NewUserCreatedEvent(uuid.New(), gofakeit.Username(), gofakeit.Email(), gofakeit.Date())
}

func TestPublisher_LocalFailureIsCritical(t *testing.T) {
	bus := eventbus.New[models.UserCreatedEvent]()
	bus.Subscribe("audit", func(context.Context, models.UserCreatedEvent) error {
		return errors.New("audit store down")
	})

	sent := false
	p := New(bus, senderFunc(func(context.Context, broker.Message, func(error)) error {
		sent = true
		return nil
	}), "user.created", logger.NopLogger())

	err := p.Publish(context.Background(), fakeEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLocalHandler)
	assert.Contains(t, err.Error(), "audit store down")
	assert.False(t, sent)
}

func TestPublisher_BrokerFailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name   string
		sender senderFunc
	}{
		{
			name: "queue full",
			sender: func(context.Context, broker.Message, func(error)) error {
				return broker.ErrQueueFull
			},
		},
		{
			name: "synchronous panic",
			sender: func(context.Context, broker.Message, func(error)) error {
				panic("client not initialised")
			},
		},
		{
			name: "asynchronous failure",
			sender: func(_ context.Context, _ broker.Message, callback func(error)) error {
				callback(errors.New("leader not available"))
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.New[models.UserCreatedEvent]()
			var handled []models.UserCreatedEvent
			bus.Subscribe("welcome-log", func(_ context.Context, e models.UserCreatedEvent) error {
				handled = append(handled, e)
				return nil
			})

			event := fakeEvent()
			p := New(bus, tt.sender, "user.created", logger.NopLogger())

			assert.NotPanics(t, func() {
				assert.NoError(t, p.Publish(context.Background(), event))
			})
			assert.Equal(t, []models.UserCreatedEvent{event}, handled)
		})
	}
}

func TestPublisher_KeyedBrokerMessage(t *testing.T) {
	mem := broker.NewMemoryBroker(3)
	async := broker.NewAsyncProducer(mem.Producer(), broker.AsyncConfig{QueueSize: 8, Timeout: time.Second}, logger.NopLogger())

	p := New(eventbus.New[models.UserCreatedEvent](), async, "user.created", logger.NopLogger())
	event := fakeEvent()
	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, async.Close())

	msgs := mem.Messages("user.created")
	require.Len(t, msgs, 1)
	assert.Equal(t, event.Key(), string(msgs[0].Key))
	assert.Equal(t, EventTypeUserCreated, msgs[0].Header(HeaderEventType))

	decoded, err := models.UnmarshalUserCreatedEvent(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}
