package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/consumer"
	"herald/internal/deadletter"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/internal/pipeline"
	"herald/pkg/bootstrap"
	"herald/pkg/circuitbreaker"
	"herald/pkg/health"
	"herald/pkg/metrics"
	"herald/pkg/migrations"
	"herald/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	breaker        *circuitbreaker.Breaker
	pipeline       *pipeline.Pipeline
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log, serviceName),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initStores(ctx); err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterNotificationMetrics()

	service, err := a.initNotification(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize notification service: %w", err)
	}

	store, err := a.initDeadLetterStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dead-letter store: %w", err)
	}

	a.pipeline = pipeline.New(
		pipeline.ConfigFrom(a.Config, serviceName),
		a.Broker,
		a.Producer,
		consumer.NewUserCreatedConsumer(service, a.Logger).OnMessage,
		deadletter.NewConsumer(store, a.Logger),
		a.Logger,
	)

	a.initHTTPServer()
	return nil
}

func (a *App) initNotification(ctx context.Context) (*notification.Service, error) {
	notifier, err := notification.NewNotifier(a.Config.Notifier, a.Logger)
	if err != nil {
		return nil, err
	}

	a.breaker = notification.NewBreaker(a.Config.CircuitBreaker, a.Logger)

	opts := []notification.ServiceOption{
		notification.WithFallbackPolicy(a.Config.CircuitBreaker.Fallback),
	}

	if a.Stores.Redis != nil {
		opts = append(opts, notification.WithSentStore(notification.NewRedisSentStore(a.Stores.Redis, a.Config.Deduplication.TTL)))
	}

	a.Logger.InfowCtx(ctx, "Notifier configured",
		"notifier", notifier.Name(),
		"fallback", a.Config.CircuitBreaker.Fallback,
		"deduplication", a.Stores.Redis != nil,
	)

	return notification.NewService(notification.Instrument(notifier), a.breaker, a.Logger, opts...), nil
}

// requiredStores lists the stores the configuration depends on: MongoDB backs
// the persistent dead-letter store and Redis the sent markers.
func requiredStores(cfg *config.Config) bootstrap.Store {
	var required bootstrap.Store
	if cfg.DeadLetter.Store == constants.StoreMongoDB {
		required |= bootstrap.MongoDB
	}
	if cfg.Deduplication.Enabled {
		required |= bootstrap.Redis
	}
	return required
}

func (a *App) initStores(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return a.ConnectStores(initCtx, requiredStores(a.Config), 0)
}

func (a *App) initDeadLetterStore(ctx context.Context) (deadletter.Store, error) {
	if a.Stores.MongoDB == nil {
		return deadletter.NewMemoryStore(), nil
	}

	if err := migrations.EnsureDeadLetterIndexes(ctx, a.Stores.MongoDB); err != nil {
		return nil, err
	}
	return deadletter.NewMongoStore(a.Stores.MongoDB), nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewBreakerChecker(a.breaker))
	if a.Config.Broker.Type == constants.BrokerKafka {
		healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	}
	if a.Stores.Redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.Stores.Redis))
	}
	if a.Stores.MongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.Stores.MongoClient))
	}

	mux.HandleFunc("/health", healthRegistry.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Run blocks until ctx is cancelled or the pipeline stops on a fatal error, in
// which case the error is returned and the process exits non-zero.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.pipeline.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	if err := a.Shutdown(ctx); err != nil {
		a.Logger.ErrorwCtx(ctx, "Shutdown error", "error", err)
	}
	return runErr
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		if a.tracerProvider == nil {
			return nil
		}
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			return []error{fmt.Errorf("tracer provider shutdown error: %w", err)}
		}
		return nil
	})
}
