package deadletter

import (
	"context"

	"github.com/google/cel-go/cel"

	hcel "herald/pkg/cel"
)

// Filter selects dead-letter records with a CEL expression such as
// `original_topic == "user.created" && attempts > 3`.
type Filter struct {
	expression string
	program    cel.Program
}

func NewFilter(evaluator *hcel.Evaluator, expression string) (*Filter, error) {
	program, err := evaluator.CompileFilter(expression)
	if err != nil {
		return nil, err
	}
	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) String() string {
	return f.expression
}

func (f *Filter) Match(ctx context.Context, rec Record) (bool, error) {
	return hcel.EvaluateFilter(ctx, f.program, recordVars(rec))
}

func recordVars(rec Record) map[string]interface{} {
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	event := map[string]interface{}{}
	if rec.Event != nil {
		event["user_id"] = rec.Event.UserID.String()
		event["username"] = rec.Event.Username
		event["email"] = rec.Event.Email
		event["created_at"] = rec.Event.CreatedAt
	}

	return map[string]interface{}{
		"id":                 rec.ID,
		"topic":              rec.Topic,
		"key":                rec.Key,
		"original_topic":     rec.OriginalTopic,
		"original_partition": rec.OriginalPartition,
		"original_offset":    rec.OriginalOffset,
		"exception_type":     rec.ExceptionType,
		"exception_message":  rec.ExceptionMessage,
		"stack_trace":        rec.StackTrace,
		"attempts":           rec.Attempts,
		"failed_at":          rec.FailedAt,
		"received_at":        rec.ReceivedAt,
		"headers":            headers,
		"event":              event,
	}
}
