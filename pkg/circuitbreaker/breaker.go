package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	apperrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

var (
	// ErrOpen is returned, or handed to the fallback, when the breaker rejects a call while open.
	ErrOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when all half-open trial slots are taken.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Config defines circuit breaker configuration
type Config struct {
	Name string
	// WindowSize is the number of most recent outcomes considered in the closed state.
	WindowSize int
	// MinimumCalls is the number of outcomes required before the failure rate is evaluated.
	MinimumCalls int
	// FailureRateThreshold is a percentage in (0, 100].
	FailureRateThreshold float64
	// WaitDurationInOpen is how long the breaker stays open before allowing trial calls.
	WaitDurationInOpen time.Duration
	// PermittedCallsInHalfOpen trial calls must all succeed to close the breaker.
	PermittedCallsInHalfOpen uint32
	// OnStateChange runs while the breaker holds its lock and must not call back into it.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:                     name,
		WindowSize:               10,
		MinimumCalls:             5,
		FailureRateThreshold:     50,
		WaitDurationInOpen:       10 * time.Second,
		PermittedCallsInHalfOpen: 3,
	}
}

// Fallback runs in place of a failed or rejected call. err is the failure, or
// ErrOpen/ErrTooManyRequests when the call was never attempted.
type Fallback func(ctx context.Context, err error)

// Snapshot is a point-in-time view of the rolling window.
type Snapshot struct {
	Calls       int
	Failures    int
	FailureRate float64
}

// Breaker guards a single downstream operation. It is safe for concurrent use;
// callers that must share state share the same *Breaker.
type Breaker struct {
	name   string
	cb     *gobreaker.TwoStepCircuitBreaker
	window *window
}

func New(cfg Config) *Breaker {
	b := &Breaker{
		name:   cfg.Name,
		window: newWindow(cfg.WindowSize, cfg.MinimumCalls, cfg.FailureRateThreshold),
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.PermittedCallsInHalfOpen,
		Interval:    0,
		Timeout:     cfg.WaitDurationInOpen,
		ReadyToTrip: func(gobreaker.Counts) bool {
			return b.window.shouldTrip()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.window.reset()
			updateCircuitBreakerMetrics(name, to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	b.cb = gobreaker.NewTwoStepCircuitBreaker(settings)
	updateCircuitBreakerMetrics(cfg.Name, gobreaker.StateClosed)

	return b
}

// Run calls fn through the breaker. With a nil fallback the failure (or
// rejection) is returned to the caller; otherwise fallback absorbs it and Run
// returns nil. Panics in fn count as failures; panics in fallback are swallowed.
func (b *Breaker) Run(ctx context.Context, fn func(ctx context.Context) error, fallback Fallback) error {
	var fb func(context.Context, error) struct{}
	if fallback != nil {
		fb = func(ctx context.Context, err error) struct{} {
			fallback(ctx, err)
			return struct{}{}
		}
	}

	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, fb)
	return err
}

// Execute is the value-returning form of Breaker.Run.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error), fallback func(ctx context.Context, err error) T) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	gen := b.window.currentGeneration()
	closed := b.cb.State() == gobreaker.StateClosed

	done, err := b.cb.Allow()
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return runFallback(ctx, b.name, fallback, err)
	}

	result, err := invoke(ctx, fn)
	success := err == nil

	trip := false
	if closed {
		_, trip = b.window.record(gen, success)
	}
	// The engine only evaluates its trip condition on failure, so a success
	// that completes a failing window is reported as one.
	done(success && !trip)

	b.RecordRequest(success)

	if err != nil {
		return runFallback(ctx, b.name, fallback, err)
	}
	return result, nil
}

func invoke[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return fn(ctx)
}

func runFallback[T any](ctx context.Context, name string, fallback func(context.Context, error) T, cause error) (result T, err error) {
	if fallback == nil {
		return result, cause
	}

	reason := "failure"
	if errors.Is(cause, ErrOpen) || errors.Is(cause, ErrTooManyRequests) {
		reason = "rejected"
	}
	metrics.IncFallbackUsage(name, "fallback", reason)

	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, err = zero, nil
		}
	}()
	return fallback(ctx, cause), nil
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Window returns the outcomes currently held in the closed-state window.
func (b *Breaker) Window() Snapshot {
	return b.window.snapshot()
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen returns true if the circuit breaker is in open state
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// IsHalfOpen returns true if the circuit breaker is in half-open state
func (b *Breaker) IsHalfOpen() bool {
	return b.cb.State() == gobreaker.StateHalfOpen
}

// IsClosed returns true if the circuit breaker is in closed state
func (b *Breaker) IsClosed() bool {
	return b.cb.State() == gobreaker.StateClosed
}

// RecordRequest records a request through the circuit breaker
func (b *Breaker) RecordRequest(success bool) {
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, b.cb.State().String()).Inc()
	if !success {
		metrics.CircuitBreakerFailures.WithLabelValues(b.name).Inc()
	}
}

// updateCircuitBreakerMetrics updates Prometheus metrics for circuit breaker
func updateCircuitBreakerMetrics(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}
