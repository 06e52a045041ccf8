package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
)

// Base holds what both herald services share: configuration, logger, the
// broker factory with its synchronous producer, and the store connections.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Broker   *broker.Factory
	Producer broker.Producer
	Stores   *Stores

	serviceName string
}

func NewBase(cfg *config.Config, log logger.Logger, serviceName string) *Base {
	return &Base{
		Config:      cfg,
		Logger:      log,
		serviceName: serviceName,
	}
}

func (b *Base) ServiceName() string {
	return b.serviceName
}

// InitBroker creates the broker factory and the shared synchronous producer.
func (b *Base) InitBroker() error {
	factory, err := broker.NewFactory(b.Config.Broker, b.serviceName, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create broker factory: %w", err)
	}

	b.Broker = factory
	b.Producer = factory.NewProducer()
	return nil
}

// ConnectStores opens the stores the service depends on. See DatabaseConnector.Connect.
func (b *Base) ConnectStores(ctx context.Context, required, optional Store) error {
	stores, err := NewDatabaseConnector(b.Config.Database, b.serviceName, b.Logger).Connect(ctx, required, optional)
	if err != nil {
		return err
	}
	b.Stores = stores
	return nil
}

func (b *Base) closeBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Broker != nil {
		if err := b.Broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker close error: %w", err))
		}
	}

	return errs
}

// Shutdown closes the service's own components first, then the producer and
// broker factory they publish through, then the stores. Closing continues past
// errors; all of them are returned joined.
func (b *Base) Shutdown(ctx context.Context, appShutdown func(ctx context.Context) []error) error {
	b.Logger.Infow("Shutting down", "service_name", b.serviceName)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	var errs []error
	if appShutdown != nil {
		errs = append(errs, appShutdown(closeCtx)...)
	}
	errs = append(errs, b.closeBroker()...)
	errs = append(errs, b.Stores.Close(closeCtx)...)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s shutdown: %w", b.serviceName, err)
	}

	b.Logger.Infow("Shutdown complete", "service_name", b.serviceName)
	return nil
}
