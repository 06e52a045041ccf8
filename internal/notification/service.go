package notification

import (
	"context"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/circuitbreaker"
	"herald/pkg/models"
)

type Service struct {
	notifier Notifier
	breaker  *circuitbreaker.Breaker
	sent     SentStore
	absorb   bool
	logger   logger.Logger
}

type ServiceOption func(*Service)

// WithSentStore skips events already notified and records successful sends.
func WithSentStore(store SentStore) ServiceOption {
	return func(s *Service) {
		s.sent = store
	}
}

// WithFallbackPolicy selects "absorb" (failures degrade to a logged no-op) or
// "propagate" (failures reach the caller). Propagate is the default.
func WithFallbackPolicy(policy string) ServiceOption {
	return func(s *Service) {
		s.absorb = policy == constants.FallbackAbsorb
	}
}

func NewService(notifier Notifier, breaker *circuitbreaker.Breaker, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		notifier: notifier,
		breaker:  breaker,
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SendWelcome notifies the user behind event through the circuit breaker.
func (s *Service) SendWelcome(ctx context.Context, event models.UserCreatedEvent) error {
	eventID := event.Key()

	if s.sent != nil {
		sent, err := s.sent.WasSent(ctx, eventID)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Sent-marker lookup failed, notifying anyway", "error", err)
		} else if sent {
			s.logger.InfowCtx(ctx, "Welcome notification already sent, skipping")
			return nil
		}
	}

	delivered := false
	err := s.breaker.Run(ctx, func(ctx context.Context) error {
		if err := s.notifier.Notify(ctx, event.Email, event.Username); err != nil {
			return err
		}
		delivered = true
		return nil
	}, s.fallback())
	if err != nil {
		return err
	}

	if delivered && s.sent != nil {
		if err := s.sent.MarkSent(ctx, eventID); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to record sent marker", "error", err)
		}
	}

	return nil
}

func (s *Service) fallback() circuitbreaker.Fallback {
	if !s.absorb {
		return nil
	}
	return func(ctx context.Context, err error) {
		s.logger.WarnwCtx(ctx, "Welcome notification skipped",
			"error", err,
			"breaker_state", s.breaker.State().String(),
		)
	}
}
