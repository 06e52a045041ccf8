package broker

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrClosed    = errors.New("broker: closed")
	ErrQueueFull = errors.New("broker: publish queue full")
)

// Header is a single message header. Values are text on every topic herald writes.
type Header = kafka.Header

// Message is a record read from or written to a topic. Partition and Offset are
// assigned by the broker on publish and ignored by producers.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Time      time.Time
}

// Header returns the value of the last header named key, or "".
func (m Message) Header(key string) string {
	for i := len(m.Headers) - 1; i >= 0; i-- {
		if m.Headers[i].Key == key {
			return string(m.Headers[i].Value)
		}
	}
	return ""
}

// WithHeaders returns a copy of m with extra headers appended. Existing headers
// and the payload are left untouched.
func (m Message) WithHeaders(headers ...Header) Message {
	out := m
	out.Headers = make([]Header, 0, len(m.Headers)+len(headers))
	out.Headers = append(out.Headers, m.Headers...)
	out.Headers = append(out.Headers, headers...)
	return out
}

func StringHeader(key, value string) Header {
	return Header{Key: key, Value: []byte(value)}
}

type Producer interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Source delivers the messages of one topic to one consumer group. Fetch blocks
// until a message is available or ctx is done. Commit marks msg and everything
// before it on the same partition as processed for the group.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

type HandlerFunc func(ctx context.Context, msg Message) error
