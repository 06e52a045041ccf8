package notification

import (
	"context"
	"fmt"
	"time"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/metrics"
)

// Notifier sends the welcome notification to a newly registered user. Any
// returned error means the notification was not delivered.
type Notifier interface {
	Notify(ctx context.Context, email, displayName string) error
	Name() string
}

func NewNotifier(cfg config.NotifierConfig, log logger.Logger) (Notifier, error) {
	switch cfg.Type {
	case constants.NotifierHTTP:
		return NewHTTPNotifier(cfg), nil
	case constants.NotifierSimulated:
		return NewSimulatedNotifier(cfg.FailureRatio, cfg.Latency), nil
	case constants.NotifierLog, "":
		return NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}

// instrumented records call outcomes for any Notifier.
type instrumented struct {
	Notifier
}

func Instrument(n Notifier) Notifier {
	return instrumented{Notifier: n}
}

func (n instrumented) Notify(ctx context.Context, email, displayName string) error {
	start := time.Now()
	err := n.Notifier.Notify(ctx, email, displayName)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.ObserveNotification(n.Name(), status, time.Since(start))

	return err
}
