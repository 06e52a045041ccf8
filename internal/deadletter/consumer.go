package deadletter

import (
	"context"
	"time"

	"herald/internal/broker"
	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

// Consumer is the terminal handler for dead-letter topics. It records the
// message for investigation and always returns nil; it never republishes.
type Consumer struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewConsumer(store Store, log logger.Logger) *Consumer {
	return &Consumer{store: store, logger: log, now: time.Now}
}

func (c *Consumer) OnMessage(ctx context.Context, msg broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorwCtx(ctx, "Panic while handling dead-letter message",
				"error", apperrors.RecoverPanic(r),
			)
			metrics.IncDeadLetterRecord("unknown", "panic")
		}
		err = nil
	}()

	rec := RecordFromMessage(msg, c.now())

	c.logger.ErrorwCtx(ctx, "Dead-letter message received",
		"record_id", rec.ID,
		"key", rec.Key,
		"payload", string(rec.Payload),
		"original_topic", rec.OriginalTopic,
		"original_partition", rec.OriginalPartition,
		"original_offset", rec.OriginalOffset,
		"exception_type", rec.ExceptionType,
		"exception_message", rec.ExceptionMessage,
		"stacktrace", rec.StackTrace,
		"attempts", rec.Attempts,
		"decode_error", rec.DecodeError,
	)

	status := "recorded"
	if c.store != nil {
		if saveErr := c.store.Save(ctx, rec); saveErr != nil {
			status = "store_failed"
			c.logger.ErrorwCtx(ctx, "Failed to persist dead-letter record",
				"record_id", rec.ID,
				"error", saveErr,
			)
		}
	}
	metrics.IncDeadLetterRecord(rec.OriginalTopic, status)

	return nil
}
