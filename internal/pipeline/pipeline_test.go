package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/consumer"
	"herald/internal/deadletter"
	"herald/internal/eventbus"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/internal/publisher"
	"herald/pkg/circuitbreaker"
	"herald/pkg/models"
	"herald/pkg/retry"
)

func testConfig() Config {
	return Config{
		ServiceName:       "test",
		Topic:             "user.created",
		GroupID:           "notification-service",
		DeadLetterGroupID: "notification-service-dlt",
		Concurrency:       2,
		QueueSize:         4,
		Router: deadletter.RouterConfig{
			ServiceName: "test",
			Suffix:      ".dlt",
			Retry: retry.Policy{
				MaxRetries:      3,
				InitialInterval: time.Millisecond,
				MaxInterval:     4 * time.Millisecond,
				Multiplier:      2,
			},
			Publish: retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1},
		},
	}
}

type countingNotifier struct {
	calls atomic.Int32
	fail  bool
}

func (n *countingNotifier) Name() string { return "counting" }

func (n *countingNotifier) Notify(context.Context, string, string) error {
	n.calls.Add(1)
	if n.fail {
		return errors.New("downstream unavailable")
	}
	return nil
}

func newMemoryFactory(t *testing.T, partitions int) (*broker.Factory, *broker.MemoryBroker) {
	t.Helper()

	factory, err := broker.NewFactory(config.BrokerConfig{
		Type:   constants.BrokerMemory,
		Memory: config.MemoryConfig{Partitions: partitions},
	}, "test", logger.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	return factory, factory.Memory()
}

func TestPipeline_FailingNotifierDeadLettersOnce(t *testing.T) {
	factory, mem := newMemoryFactory(t, 3)
	log := logger.NopLogger()

	async := broker.NewAsyncProducer(mem.Producer(), broker.AsyncConfig{QueueSize: 8, Timeout: time.Second}, log)
	defer async.Close()

	bus := eventbus.New[models.UserCreatedEvent]()
	pub := publisher.New(bus, async, "user.created", log)

	notifier := &countingNotifier{fail: true}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:                     "notifier",
		WindowSize:               100,
		MinimumCalls:             100,
		FailureRateThreshold:     50,
		WaitDurationInOpen:       time.Minute,
		PermittedCallsInHalfOpen: 1,
	})
	service := notification.NewService(notifier, breaker, log)
	handler := consumer.NewUserCreatedConsumer(service, log)

	store := deadletter.NewMemoryStore()
	p := New(testConfig(), factory, factory.NewProducer(), handler.OnMessage, deadletter.NewConsumer(store, log), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	u1 := uuid.New()
	t0 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	event := models.NewUserCreatedEvent(u1, "johndoe", "john@example.com", t0)
	require.NoError(t, pub.Publish(context.Background(), event))

	original := waitForMessages(t, mem, "user.created", 1)
	require.Eventually(t, func() bool {
		return mem.Committed("notification-service", "user.created", original[0].Partition) == original[0].Offset+1 &&
			mem.Committed("notification-service-dlt", "user.created.dlt", 0) == 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int32(4), notifier.calls.Load())

	records, err := store.List(context.Background(), deadletter.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user.created", records[0].OriginalTopic)
	assert.Equal(t, "downstream unavailable", records[0].ExceptionMessage)

	dlt := mem.Messages("user.created.dlt")
	require.Len(t, dlt, 1)
	assert.Equal(t, "user.created", dlt[0].Header(constants.HeaderOriginalTopic))
	assert.Equal(t, u1.String(), string(dlt[0].Key))
	assert.Equal(t, original[0].Value, dlt[0].Value)
	assert.Equal(t, "4", dlt[0].Header(constants.HeaderAttempts))

	decoded, err := models.UnmarshalUserCreatedEvent(dlt[0].Value)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestPipeline_OpenBreakerRejectionsDeadLetterOnce(t *testing.T) {
	factory, mem := newMemoryFactory(t, 1)
	log := logger.NopLogger()

	notifier := &countingNotifier{fail: true}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:                     "notifier",
		WindowSize:               10,
		MinimumCalls:             2,
		FailureRateThreshold:     50,
		WaitDurationInOpen:       time.Minute,
		PermittedCallsInHalfOpen: 1,
	})
	service := notification.NewService(notifier, breaker, log)
	handler := consumer.NewUserCreatedConsumer(service, log)

	store := deadletter.NewMemoryStore()
	p := New(testConfig(), factory, factory.NewProducer(), handler.OnMessage, deadletter.NewConsumer(store, log), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	event := models.NewUserCreatedEvent(uuid.New(), "janedoe", "jane@example.com", time.Now().UTC())
	payload, err := event.Marshal()
	require.NoError(t, err)
	require.NoError(t, mem.Producer().Publish(context.Background(), broker.Message{
		Topic: "user.created",
		Key:   []byte(event.Key()),
		Value: payload,
	}))

	require.Eventually(t, func() bool {
		return mem.Committed("notification-service", "user.created", 0) == 1 &&
			mem.Committed("notification-service-dlt", "user.created.dlt", 0) == 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// Two failures trip the breaker; attempts three and four never reach the notifier.
	assert.Equal(t, int32(2), notifier.calls.Load())
	assert.True(t, breaker.IsOpen())

	dlt := mem.Messages("user.created.dlt")
	require.Len(t, dlt, 1)
	assert.Equal(t, "4", dlt[0].Header(constants.HeaderAttempts))
	assert.Equal(t, circuitbreaker.ErrOpen.Error(), dlt[0].Header(constants.HeaderExceptionMessage))

	records, err := store.List(context.Background(), deadletter.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, event.Key(), records[0].Key)
	assert.Equal(t, circuitbreaker.ErrOpen.Error(), records[0].ExceptionMessage)
}

func waitForMessages(t *testing.T, mem *broker.MemoryBroker, topic string, n int) []broker.Message {
	t.Helper()

	var msgs []broker.Message
	require.Eventually(t, func() bool {
		msgs = mem.Messages(topic)
		return len(msgs) == n
	}, 5*time.Second, 5*time.Millisecond)
	return msgs
}

func TestPipeline_SuccessfulNotificationIsNotDeadLettered(t *testing.T) {
	factory, mem := newMemoryFactory(t, 2)
	log := logger.NopLogger()

	notifier := &countingNotifier{}
	service := notification.NewService(notifier, circuitbreaker.New(circuitbreaker.DefaultConfig("notifier")), log)
	handler := consumer.NewUserCreatedConsumer(service, log)
	p := New(testConfig(), factory, mem.Producer(), handler.OnMessage, deadletter.NewConsumer(deadletter.NewMemoryStore(), log), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 5; i++ {
		event := models.NewUserCreatedEvent(uuid.New(), "user", "user@example.com", time.Now())
		payload, err := event.Marshal()
		require.NoError(t, err)
		require.NoError(t, mem.Producer().Publish(context.Background(), broker.Message{
			Topic: "user.created",
			Key:   []byte(event.Key()),
			Value: payload,
		}))
	}

	require.Eventually(t, func() bool {
		return notifier.calls.Load() == 5
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, mem.Messages("user.created.dlt"))
}

func TestPipeline_DeadLetterPublishFailureStops(t *testing.T) {
	factory, mem := newMemoryFactory(t, 1)
	log := logger.NopLogger()

	notifier := &countingNotifier{fail: true}
	service := notification.NewService(notifier, circuitbreaker.New(circuitbreaker.DefaultConfig("notifier")), log)
	handler := consumer.NewUserCreatedConsumer(service, log)

	p := New(testConfig(), factory, failingProducer{}, handler.OnMessage, deadletter.NewConsumer(deadletter.NewMemoryStore(), log), log)

	event := models.NewUserCreatedEvent(uuid.New(), "johndoe", "john@example.com", time.Now())
	payload, err := event.Marshal()
	require.NoError(t, err)
	require.NoError(t, mem.Producer().Publish(context.Background(), broker.Message{
		Topic: "user.created",
		Key:   []byte(event.Key()),
		Value: payload,
	}))

	err = p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, deadletter.ErrPublishFailed)
	assert.Equal(t, int64(0), mem.Committed("notification-service", "user.created", 0))
}

type failingProducer struct{}

func (failingProducer) Publish(context.Context, broker.Message) error {
	return errors.New("broker unavailable")
}

func (failingProducer) Close() error { return nil }

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Broker: config.BrokerConfig{Kafka: config.KafkaConfig{
			Topic:             "user.created",
			GroupID:           "g",
			DeadLetterGroupID: "g-dlt",
		}},
		Consumer: config.ConsumerConfig{Concurrency: 3, QueueSize: 10},
		Retry: config.RetryConfig{
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
		},
		DeadLetter: config.DeadLetterConfig{Suffix: ".dlt", PublishAttempts: 5, PublishBackoff: 100 * time.Millisecond},
	}

	got := ConfigFrom(cfg, "notification-service")
	assert.Equal(t, "g-dlt", got.DeadLetterGroupID)
	assert.Equal(t, 3, got.Router.Retry.MaxRetries)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, got.Router.Retry.Schedule())
	assert.Equal(t, 4, got.Router.Publish.MaxRetries)
	assert.Equal(t, time.Second, got.Router.Publish.MaxInterval)
}
