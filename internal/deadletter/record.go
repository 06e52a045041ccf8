package deadletter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"herald/internal/broker"
	"herald/internal/constants"
	"herald/pkg/models"
)

var recordNamespace = uuid.MustParse("0d2c8f5e-4b7a-4f0e-9a47-6f1b0c3e2d11")

// Record is a dead-lettered message kept for manual triage.
type Record struct {
	ID                string                   `json:"id" bson:"_id"`
	Topic             string                   `json:"topic" bson:"topic"`
	Partition         int                      `json:"partition" bson:"partition"`
	Offset            int64                    `json:"offset" bson:"offset"`
	Key               string                   `json:"key" bson:"key"`
	Payload           []byte                   `json:"payload" bson:"payload"`
	Headers           map[string]string        `json:"headers" bson:"headers"`
	OriginalTopic     string                   `json:"original_topic" bson:"original_topic"`
	OriginalPartition int                      `json:"original_partition" bson:"original_partition"`
	OriginalOffset    int64                    `json:"original_offset" bson:"original_offset"`
	ExceptionType     string                   `json:"exception_type" bson:"exception_type"`
	ExceptionMessage  string                   `json:"exception_message" bson:"exception_message"`
	StackTrace        string                   `json:"stack_trace" bson:"stack_trace"`
	Attempts          int                      `json:"attempts" bson:"attempts"`
	FailedAt          time.Time                `json:"failed_at" bson:"failed_at"`
	ReceivedAt        time.Time                `json:"received_at" bson:"received_at"`
	Event             *models.UserCreatedEvent `json:"event,omitempty" bson:"event,omitempty"`
	DecodeError       string                   `json:"decode_error,omitempty" bson:"decode_error,omitempty"`
}

// RecordID is stable for a given dead-letter delivery, so redelivery of the
// same message overwrites rather than duplicates its record.
func RecordID(topic string, partition int, offset int64) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s/%d/%d", topic, partition, offset))).String()
}

// RecordFromMessage extracts everything known about a dead-lettered message.
// Missing or malformed metadata headers yield empty values, never an error.
func RecordFromMessage(msg broker.Message, receivedAt time.Time) Record {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	rec := Record{
		ID:                RecordID(msg.Topic, msg.Partition, msg.Offset),
		Topic:             msg.Topic,
		Partition:         msg.Partition,
		Offset:            msg.Offset,
		Key:               string(msg.Key),
		Payload:           append([]byte(nil), msg.Value...),
		Headers:           headers,
		OriginalTopic:     msg.Header(constants.HeaderOriginalTopic),
		OriginalPartition: parseInt(msg.Header(constants.HeaderOriginalPartition), -1),
		OriginalOffset:    int64(parseInt(msg.Header(constants.HeaderOriginalOffset), -1)),
		ExceptionType:     msg.Header(constants.HeaderExceptionType),
		ExceptionMessage:  msg.Header(constants.HeaderExceptionMessage),
		StackTrace:        msg.Header(constants.HeaderExceptionStack),
		Attempts:          parseInt(msg.Header(constants.HeaderAttempts), 0),
		ReceivedAt:        receivedAt.UTC(),
	}

	if failedAt, err := time.Parse(time.RFC3339Nano, msg.Header(constants.HeaderFailedAt)); err == nil {
		rec.FailedAt = failedAt.UTC()
	}

	if event, err := models.UnmarshalUserCreatedEvent(msg.Value); err == nil {
		rec.Event = &event
	} else {
		rec.DecodeError = err.Error()
	}

	return rec
}

// Message rebuilds the original message for an administrative replay.
func (r Record) Message() (broker.Message, error) {
	if r.OriginalTopic == "" {
		return broker.Message{}, fmt.Errorf("record %s has no original topic", r.ID)
	}

	return broker.Message{
		Topic: r.OriginalTopic,
		Key:   []byte(r.Key),
		Value: append([]byte(nil), r.Payload...),
		Headers: []broker.Header{
			broker.StringHeader("dlt-replayed-from", r.ID),
		},
	}, nil
}

func parseInt(s string, fallback int) int {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return int(v)
}
