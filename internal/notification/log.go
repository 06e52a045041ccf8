package notification

import (
	"context"

	"herald/internal/constants"
	"herald/internal/logger"
)

type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Name() string {
	return constants.NotifierLog
}

func (n *LogNotifier) Notify(ctx context.Context, email, displayName string) error {
	n.logger.InfowCtx(ctx, "Welcome notification sent",
		"email", email,
		"display_name", displayName,
	)
	return nil
}
