package user

import (
	"context"

	"herald/internal/logger"
	"herald/pkg/metrics"
	"herald/pkg/models"
)

// AuditHandler is the in-process subscriber for UserCreatedEvent. It runs
// inside the registration transaction.
func AuditHandler(log logger.Logger) func(ctx context.Context, event models.UserCreatedEvent) error {
	return func(ctx context.Context, event models.UserCreatedEvent) error {
		metrics.UsersRegisteredTotal.Inc()
		log.InfowCtx(ctx, "Audit: user created",
			"user_id", event.UserID,
			"username", event.Username,
			"created_at", event.CreatedAt,
		)
		return nil
	}
}
