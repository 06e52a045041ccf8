package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	_ "herald/docs"
	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/eventbus"
	"herald/internal/logger"
	"herald/internal/publisher"
	"herald/internal/user"
	"herald/pkg/bootstrap"
	"herald/pkg/health"
	"herald/pkg/metrics"
	"herald/pkg/middleware"
	"herald/pkg/migrations"
	"herald/pkg/models"
	"herald/pkg/ratelimit"
	"herald/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	db             *sql.DB
	async          *broker.AsyncProducer
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log, serviceName),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterUserMetrics()
	metrics.RegisterBrokerMetrics()

	router := a.initRouter(ctx)
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	if err := a.ConnectStores(ctx, bootstrap.Postgres, 0); err != nil {
		return err
	}
	a.db = a.Stores.Postgres

	if a.Config.Database.RunMigrations {
		if err := migrations.MigratePostgres(a.db); err != nil {
			return err
		}
		a.Logger.InfowCtx(ctx, "PostgreSQL migrations applied")
	}
	return nil
}

func (a *App) initRouter(ctx context.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName, a.tracerProvider)...)
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	if a.Config.RateLimit.Enabled {
		router.Use(ratelimit.RateLimitMiddleware(ctx, a.Config.RateLimit))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", a.Config.RateLimit.RPS, "burst", a.Config.RateLimit.Burst)
	}

	bus := eventbus.New[models.UserCreatedEvent]()
	bus.Subscribe("audit", user.AuditHandler(a.Logger))

	a.async = broker.NewAsyncProducer(a.Broker.NewProducer(), broker.AsyncConfig{
		QueueSize: a.Config.Publisher.QueueSize,
		Timeout:   a.Config.Publisher.Timeout,
	}, a.Logger)
	pub := publisher.New(bus, a.async, a.Config.Broker.Kafka.Topic, a.Logger)

	svc := user.NewService(user.NewRepository(serviceName), user.NewUnitOfWork(a.db, a.Logger), pub, a.Logger)
	user.NewHandler(svc, a.Logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.Config.Broker.Type == constants.BrokerKafka {
		healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	}

	router.GET("/health", gin.WrapF(healthRegistry.Handler()))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.async != nil {
			if err := a.async.Close(); err != nil {
				errs = append(errs, fmt.Errorf("async producer close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
