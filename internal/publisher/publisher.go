package publisher

import (
	"context"
	"fmt"
	"time"

	"herald/internal/broker"
	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/models"
	"herald/pkg/tracing"
)

const (
	DestinationLocal  = "local"
	DestinationBroker = "broker"

	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"

	EventTypeUserCreated = "user.created"
)

type LocalChannel interface {
	Publish(ctx context.Context, event models.UserCreatedEvent) error
}

type AsyncSender interface {
	PublishAsync(ctx context.Context, msg broker.Message, callback func(error)) error
}

// Publisher delivers a UserCreatedEvent to the in-process channel and then to
// the broker. Only the in-process delivery can fail the call.
type Publisher struct {
	local  LocalChannel
	sender AsyncSender
	topic  string
	logger logger.Logger
}

func New(local LocalChannel, sender AsyncSender, topic string, log logger.Logger) *Publisher {
	return &Publisher{
		local:  local,
		sender: sender,
		topic:  topic,
		logger: log,
	}
}

// Publish runs the local handlers synchronously and returns their failure as an
// ErrLocalHandler so the caller can roll back. The broker send is queued and its
// outcome, including a synchronous client error or panic, is only logged.
func (p *Publisher) Publish(ctx context.Context, event models.UserCreatedEvent) error {
	ctx = logging.WithEventID(ctx, event.Key())

	if err := p.local.Publish(ctx, event); err != nil {
		metrics.IncEventPublished(DestinationLocal, "failed")
		p.logger.ErrorwCtx(ctx, "Local event handler failed", "error", err)
		return apperrors.ErrLocalHandler.WithCause(err).AsFatal()
	}
	metrics.IncEventPublished(DestinationLocal, "success")

	p.publishToBroker(ctx, event)
	return nil
}

func (p *Publisher) publishToBroker(ctx context.Context, event models.UserCreatedEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.brokerFailed(ctx, apperrors.RecoverPanic(r))
		}
	}()

	payload, err := event.Marshal()
	if err != nil {
		p.brokerFailed(ctx, fmt.Errorf("failed to marshal event: %w", err))
		return
	}

	headers := []broker.Header{
		broker.StringHeader(HeaderEventType, EventTypeUserCreated),
		broker.StringHeader(HeaderContentType, "application/json"),
	}
	headers = tracing.InjectTraceContext(ctx, headers)

	msg := broker.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key()),
		Value:   payload,
		Headers: headers,
		Time:    time.Now().UTC(),
	}

	err = p.sender.PublishAsync(ctx, msg, func(err error) {
		if err != nil {
			p.brokerFailed(ctx, err)
			return
		}
		metrics.IncEventPublished(DestinationBroker, "success")
		p.logger.DebugwCtx(ctx, "Event published to broker", "topic", p.topic)
	})
	if err != nil {
		p.brokerFailed(ctx, err)
	}
}

func (p *Publisher) brokerFailed(ctx context.Context, err error) {
	metrics.IncEventPublished(DestinationBroker, "failed")
	p.logger.WarnwCtx(ctx, "Broker publish failed, event not delivered to broker",
		"error", err,
		"topic", p.topic,
	)
}
