package logging

import (
	"context"
	"strconv"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	RequestIDKey   contextKey = "request_id"
	EventIDKey     contextKey = "event_id"
	ServiceNameKey contextKey = "service_name"
	TopicKey       contextKey = "topic"
	PartitionKey   contextKey = "partition"
	OffsetKey      contextKey = "offset"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

// WithDelivery tags the context with the broker coordinates of the message being handled.
func WithDelivery(ctx context.Context, topic string, partition int, offset int64) context.Context {
	ctx = context.WithValue(ctx, TopicKey, topic)
	ctx = context.WithValue(ctx, PartitionKey, strconv.Itoa(partition))
	return context.WithValue(ctx, OffsetKey, strconv.FormatInt(offset, 10))
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func GetEventID(ctx context.Context) string {
	return stringValue(ctx, EventIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 14)

	for _, key := range []contextKey{TraceIDKey, RequestIDKey, EventIDKey, ServiceNameKey, TopicKey, PartitionKey, OffsetKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}

	return fields
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
