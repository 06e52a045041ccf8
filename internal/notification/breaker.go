package notification

import (
	"github.com/sony/gobreaker"

	"herald/internal/config"
	"herald/internal/logger"
	"herald/pkg/circuitbreaker"
)

const BreakerName = "notification"

// NewBreaker builds the breaker guarding the notifier. One instance is shared
// by every worker lane.
func NewBreaker(cfg config.CircuitBreakerConfig, log logger.Logger) *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:                     BreakerName,
		WindowSize:               cfg.WindowSize,
		MinimumCalls:             cfg.MinimumCalls,
		FailureRateThreshold:     cfg.FailureRateThreshold,
		WaitDurationInOpen:       cfg.WaitDurationInOpen,
		PermittedCallsInHalfOpen: cfg.PermittedCallsInHalfOpen,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}
