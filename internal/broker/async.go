package broker

import (
	"context"
	"sync"
	"time"

	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/metrics"
)

type AsyncConfig struct {
	QueueSize int
	Timeout   time.Duration
}

type asyncItem struct {
	ctx      context.Context
	msg      Message
	callback func(error)
}

// AsyncProducer hands messages to a single background sender so that callers
// never wait on the broker. Messages are sent in submission order.
type AsyncProducer struct {
	producer Producer
	cfg      AsyncConfig
	logger   logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan asyncItem
	wg     sync.WaitGroup
}

func NewAsyncProducer(producer Producer, cfg AsyncConfig, log logger.Logger) *AsyncProducer {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	a := &AsyncProducer{
		producer: producer,
		cfg:      cfg,
		logger:   log,
		queue:    make(chan asyncItem, cfg.QueueSize),
	}

	a.wg.Add(1)
	go a.run()

	return a
}

// PublishAsync enqueues msg and returns immediately. It fails only when the
// queue is full or the producer is closed; callback receives the send outcome.
func (a *AsyncProducer) PublishAsync(ctx context.Context, msg Message, callback func(error)) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- asyncItem{ctx: context.WithoutCancel(ctx), msg: msg, callback: callback}:
		metrics.SetPublisherQueueSize(msg.Topic, len(a.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncProducer) run() {
	defer a.wg.Done()

	for item := range a.queue {
		err := a.send(item)
		metrics.SetPublisherQueueSize(item.msg.Topic, len(a.queue))

		if item.callback != nil {
			item.callback(err)
		} else if err != nil {
			a.logger.ErrorwCtx(item.ctx, "Async publish failed",
				"error", err,
				"topic", item.msg.Topic,
			)
		}
	}
}

func (a *AsyncProducer) send(item asyncItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()

	ctx, cancel := context.WithTimeout(item.ctx, a.cfg.Timeout)
	defer cancel()

	return a.producer.Publish(ctx, item.msg)
}

// Close stops accepting messages, drains the queue and closes the underlying producer.
func (a *AsyncProducer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
	return a.producer.Close()
}
