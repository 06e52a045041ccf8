package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/metrics"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, serviceName string, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: serviceName}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   msg.Topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: msg.Headers,
			Time:    ts,
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, msg.Topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, msg.Topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, msg.Topic, "out", len(msg.Value))

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaSource reads one topic as a member of a consumer group. Offsets are
// committed explicitly, one message at a time.
type KafkaSource struct {
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
	topic       string
}

func NewKafkaSource(cfg config.KafkaConfig, groupID, topic, serviceName string, log logger.Logger) *KafkaSource {
	log.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", cfg.Brokers,
		"group_id", groupID,
		"service_name", serviceName,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaSource{
		reader:      reader,
		logger:      log,
		serviceName: serviceName,
		topic:       topic,
	}
}

func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return Message{}, ErrClosed
		}
		return Message{}, fmt.Errorf("failed to fetch kafka message: %w", err)
	}

	metrics.IncKafkaMessagesRead(s.serviceName, m.Topic)
	metrics.ObserveKafkaMessageSize(s.serviceName, m.Topic, "in", len(m.Value))
	if lag := m.HighWaterMark - m.Offset - 1; lag >= 0 {
		metrics.SetKafkaConsumerLag(s.serviceName, m.Topic, m.Partition, lag)
	}

	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   m.Headers,
		Time:      m.Time,
	}, nil
}

func (s *KafkaSource) Commit(ctx context.Context, msg Message) error {
	err := s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
	if err != nil {
		return fmt.Errorf("failed to commit kafka offset %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
