package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"herald/internal/broker"
	"herald/internal/logger"
	apperrors "herald/pkg/errors"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

var ErrAlreadyStarted = errors.New("worker: pool already started")

type Config struct {
	// Name labels logs and metrics, e.g. the consumer group.
	Name string
	// Concurrency is the number of lanes. Partition p is always handled by lane p % Concurrency.
	Concurrency int
	// QueueSize is the buffer of fetched-but-unhandled messages per lane.
	QueueSize int
	// FetchBackoff is the pause after a failed fetch.
	FetchBackoff time.Duration
}

// Pool pulls messages from a Source and runs the handler on them. Each lane
// handles its partitions sequentially and commits a message only after the
// handler returns nil. A handler error is fatal: the pool stops without
// committing, so the message is redelivered to the next consumer of the group.
type Pool struct {
	cfg     Config
	source  broker.Source
	handler broker.HandlerFunc
	logger  logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func NewPool(cfg Config, source broker.Source, handler broker.HandlerFunc, log logger.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = time.Second
	}

	return &Pool{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  log,
		done:    make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)

	lanes := make([]chan broker.Message, p.cfg.Concurrency)
	for i := range lanes {
		lanes[i] = make(chan broker.Message, p.cfg.QueueSize)
	}

	for i, lane := range lanes {
		id, lane := i, lane
		g.Go(func() error {
			return p.runLane(gctx, id, lane)
		})
	}

	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		return p.dispatch(gctx, lanes)
	})

	p.logger.Infow("Worker pool started",
		"pool", p.cfg.Name,
		"concurrency", p.cfg.Concurrency,
	)

	go func() {
		err := g.Wait()
		cancel()
		if closeErr := p.source.Close(); closeErr != nil {
			p.logger.Warnw("Failed to close source", "pool", p.cfg.Name, "error", closeErr)
		}
		p.err = err
		close(p.done)
	}()

	return nil
}

// Wait blocks until the pool has stopped and returns the fatal error, if any.
func (p *Pool) Wait() error {
	<-p.done
	return p.err
}

// Stop cancels the pool and waits for in-flight handlers to return.
func (p *Pool) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return p.Wait()
}

// Run starts the pool and blocks until it stops.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	return p.Wait()
}

func (p *Pool) dispatch(ctx context.Context, lanes []chan broker.Message) error {
	for {
		msg, err := p.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, broker.ErrClosed) {
				return nil
			}
			p.logger.Errorw("Error fetching message",
				"pool", p.cfg.Name,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.cfg.FetchBackoff):
			}
			continue
		}

		select {
		case lanes[msg.Partition%len(lanes)] <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Pool) runLane(ctx context.Context, id int, lane <-chan broker.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-lane:
			if !ok {
				return nil
			}
			if err := p.process(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("worker %s lane %d: %s/%d@%d: %w", p.cfg.Name, id, msg.Topic, msg.Partition, msg.Offset, err)
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, msg broker.Message) error {
	msgCtx, span := tracing.StartSpanFromMessage(ctx, msg.Topic+" process", msg.Headers)
	defer span.End()

	msgCtx = logging.WithDelivery(msgCtx, msg.Topic, msg.Partition, msg.Offset)
	if traceID := tracing.TraceID(msgCtx); traceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, traceID)
	}

	start := time.Now()
	err := p.handle(msgCtx, msg)
	metrics.ObserveMessageProcessing(p.cfg.Name, msg.Topic, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncMessageConsumed(p.cfg.Name, msg.Topic, "failed")
		if ctx.Err() == nil {
			p.logger.ErrorwCtx(msgCtx, "Handler failed, stopping worker pool", "error", err)
		}
		return err
	}

	metrics.IncMessageConsumed(p.cfg.Name, msg.Topic, "success")

	if err := p.source.Commit(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.ErrorwCtx(msgCtx, "Failed to commit message", "error", err)
	}

	return nil
}

func (p *Pool) handle(ctx context.Context, msg broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return p.handler(ctx, msg)
}
