package consumer

import (
	"context"
	"fmt"

	"herald/internal/broker"
	"herald/internal/logger"
	"herald/pkg/logging"
	"herald/pkg/models"
	"herald/pkg/retry"
)

type Welcomer interface {
	SendWelcome(ctx context.Context, event models.UserCreatedEvent) error
}

// UserCreatedConsumer turns user.created messages into welcome notifications.
type UserCreatedConsumer struct {
	welcomer Welcomer
	logger   logger.Logger
}

func NewUserCreatedConsumer(welcomer Welcomer, log logger.Logger) *UserCreatedConsumer {
	return &UserCreatedConsumer{welcomer: welcomer, logger: log}
}

// OnMessage returns nil when the message is handled, including when the breaker
// fallback absorbed a failure. Any other error is returned unchanged so the
// message is retried and eventually dead-lettered. Undecodable payloads are
// fatal and skip the retries.
func (c *UserCreatedConsumer) OnMessage(ctx context.Context, msg broker.Message) error {
	event, err := models.UnmarshalUserCreatedEvent(msg.Value)
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("decode user created event: %w", err))
	}

	ctx = logging.WithEventID(ctx, event.Key())
	if key := string(msg.Key); key != "" && key != event.Key() {
		c.logger.WarnwCtx(ctx, "Message key does not match user id", "key", key)
	}

	if err := c.welcomer.SendWelcome(ctx, event); err != nil {
		c.logger.WarnwCtx(ctx, "Welcome notification failed", "error", err)
		return err
	}

	c.logger.DebugwCtx(ctx, "Welcome notification handled", "username", event.Username)
	return nil
}
