package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/deadletter"
	"herald/internal/logger"
	"herald/internal/worker"
	"herald/pkg/retry"
)

type SourceFactory interface {
	NewSource(groupID, topic string) broker.Source
}

type Config struct {
	ServiceName       string
	Topic             string
	GroupID           string
	DeadLetterGroupID string
	Concurrency       int
	QueueSize         int
	Router            deadletter.RouterConfig
}

func ConfigFrom(cfg *config.Config, serviceName string) Config {
	return Config{
		ServiceName:       serviceName,
		Topic:             cfg.Broker.Kafka.Topic,
		GroupID:           cfg.Broker.Kafka.GroupID,
		DeadLetterGroupID: cfg.Broker.Kafka.DeadLetterGroupID,
		Concurrency:       cfg.Consumer.Concurrency,
		QueueSize:         cfg.Consumer.QueueSize,
		Router: deadletter.RouterConfig{
			ServiceName: serviceName,
			Suffix:      cfg.DeadLetter.Suffix,
			Retry:       RetryPolicy(cfg.Retry),
			Publish:     PublishPolicy(cfg.DeadLetter),
		},
	}
}

func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxRetries:          cfg.MaxRetries,
		InitialInterval:     cfg.InitialInterval,
		MaxInterval:         cfg.MaxInterval,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: cfg.RandomizationFactor,
	}
}

// PublishPolicy bounds dead-letter writes to PublishAttempts calls in total.
func PublishPolicy(cfg config.DeadLetterConfig) retry.Policy {
	attempts := cfg.PublishAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Policy{
		MaxRetries:      attempts - 1,
		InitialInterval: cfg.PublishBackoff,
		MaxInterval:     10 * cfg.PublishBackoff,
		Multiplier:      2,
	}
}

// Pipeline runs the primary consumer behind the retry/dead-letter router and
// the dead-letter consumer, each on its own worker pool and consumer group.
type Pipeline struct {
	cfg        Config
	router     *deadletter.Router
	main       *worker.Pool
	deadLetter *worker.Pool
	logger     logger.Logger
}

func New(cfg Config, sources SourceFactory, producer broker.Producer, handler broker.HandlerFunc, dlt *deadletter.Consumer, log logger.Logger) *Pipeline {
	router := deadletter.NewRouter(cfg.Router, producer, log)

	main := worker.NewPool(worker.Config{
		Name:         cfg.GroupID,
		Concurrency:  cfg.Concurrency,
		QueueSize:    cfg.QueueSize,
		FetchBackoff: time.Second,
	}, sources.NewSource(cfg.GroupID, cfg.Topic), router.Wrap(handler), log)

	deadLetter := worker.NewPool(worker.Config{
		Name:         cfg.DeadLetterGroupID,
		Concurrency:  1,
		QueueSize:    cfg.QueueSize,
		FetchBackoff: time.Second,
	}, sources.NewSource(cfg.DeadLetterGroupID, router.Topic(cfg.Topic)), dlt.OnMessage, log)

	return &Pipeline{
		cfg:        cfg,
		router:     router,
		main:       main,
		deadLetter: deadLetter,
		logger:     log,
	}
}

func (p *Pipeline) DeadLetterTopic() string {
	return p.router.Topic(p.cfg.Topic)
}

// Run blocks until ctx is done or either pool fails. A failure stops both pools
// and is returned; uncommitted messages are redelivered on the next start.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Infow("Starting event pipeline",
		"topic", p.cfg.Topic,
		"dead_letter_topic", p.DeadLetterTopic(),
		"group_id", p.cfg.GroupID,
		"dlt_group_id", p.cfg.DeadLetterGroupID,
		"retry_schedule", p.cfg.Router.Retry.Schedule(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.main.Run(gctx)
	})
	g.Go(func() error {
		return p.deadLetter.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		p.logger.Errorw("Event pipeline stopped with error", "error", err)
	} else {
		p.logger.Infow("Event pipeline stopped")
	}
	return err
}
