package deadletter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"herald/internal/broker"
	"herald/internal/constants"
	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/metrics"
	"herald/pkg/retry"
)

// ErrPublishFailed means a message could not be written to its dead-letter
// topic. The original message must then stay uncommitted.
var ErrPublishFailed = errors.New("dead-letter publish failed")

type RouterConfig struct {
	ServiceName string
	Suffix      string
	Retry       retry.Policy
	// Publish is the policy for writing to the dead-letter topic itself.
	Publish retry.Policy
}

// Router retries a failing handler with backoff and, once the budget is spent,
// republishes the untouched message to <topic><suffix> with failure headers.
type Router struct {
	cfg      RouterConfig
	producer broker.Producer
	logger   logger.Logger
	now      func() time.Time
}

func NewRouter(cfg RouterConfig, producer broker.Producer, log logger.Logger) *Router {
	if cfg.Suffix == "" {
		cfg.Suffix = constants.DefaultDeadLetterSuffix
	}
	return &Router{
		cfg:      cfg,
		producer: producer,
		logger:   log,
		now:      time.Now,
	}
}

func (r *Router) Topic(original string) string {
	return original + r.cfg.Suffix
}

// Wrap returns a handler that only fails when the message could be neither
// processed nor dead-lettered, or when ctx was cancelled mid-way.
func (r *Router) Wrap(handler broker.HandlerFunc) broker.HandlerFunc {
	return func(ctx context.Context, msg broker.Message) error {
		return r.Handle(ctx, msg, handler)
	}
}

func (r *Router) Handle(ctx context.Context, msg broker.Message, handler broker.HandlerFunc) error {
	attempts := 0
	err := retry.RetryWithCallback(ctx, r.cfg.Retry, func() error {
		attempts++
		return invoke(ctx, handler, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(r.cfg.ServiceName, msg.Topic).Inc()
		r.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_retries", r.cfg.Retry.MaxRetries,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	reason := "max_retries_exceeded"
	if retry.IsFatal(err) {
		reason = "non_retryable"
	}

	cause := retry.Cause(err)
	dlt := r.deadLetter(msg, cause, attempts)

	if pubErr := r.publish(ctx, dlt); pubErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.ErrorwCtx(ctx, "Failed to publish to dead-letter topic",
			"dlt_topic", dlt.Topic,
			"error", pubErr,
			"cause", cause,
		)
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, dlt.Topic, pubErr)
	}

	metrics.DLQMessagesTotal.WithLabelValues(r.cfg.ServiceName, msg.Topic, reason).Inc()
	r.logger.WarnwCtx(ctx, "Message sent to dead-letter topic",
		"dlt_topic", dlt.Topic,
		"reason", reason,
		"attempts", attempts,
		"error", cause,
	)

	return nil
}

func (r *Router) deadLetter(msg broker.Message, cause error, attempts int) broker.Message {
	dlt := msg.WithHeaders(
		broker.StringHeader(constants.HeaderOriginalTopic, msg.Topic),
		broker.StringHeader(constants.HeaderOriginalPartition, strconv.Itoa(msg.Partition)),
		broker.StringHeader(constants.HeaderOriginalOffset, strconv.FormatInt(msg.Offset, 10)),
		broker.StringHeader(constants.HeaderExceptionType, exceptionType(cause)),
		broker.StringHeader(constants.HeaderExceptionMessage, exceptionMessage(cause)),
		broker.StringHeader(constants.HeaderExceptionStack, StackTrace(cause)),
		broker.StringHeader(constants.HeaderAttempts, strconv.Itoa(attempts)),
		broker.StringHeader(constants.HeaderFailedAt, r.now().UTC().Format(time.RFC3339Nano)),
	)
	dlt.Topic = r.Topic(msg.Topic)
	dlt.Partition = 0
	dlt.Offset = 0
	dlt.Time = time.Time{}
	return dlt
}

func (r *Router) publish(ctx context.Context, msg broker.Message) error {
	return retry.RetryWithCallback(ctx, r.cfg.Publish, func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = apperrors.RecoverPanic(rec)
			}
		}()
		return r.producer.Publish(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		r.logger.WarnwCtx(ctx, "Retrying dead-letter publish",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

func invoke(ctx context.Context, handler broker.HandlerFunc, msg broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return handler(ctx, msg)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// StackTrace renders the most detailed stack available for err: a
// github.com/pkg/errors stack, a recovered panic stack, or the current one.
func StackTrace(err error) string {
	if err == nil {
		return ""
	}

	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%+v", err)
	}

	if stack := apperrors.StackTrace(err); stack != "" {
		return err.Error() + "\n" + stack
	}

	return fmt.Sprintf("%+v", pkgerrors.WithStack(err))
}

func exceptionMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}

// exceptionType names the innermost error in the chain.
func exceptionType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
