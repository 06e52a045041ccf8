package broker

import (
	"fmt"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
)

// Factory builds producers and sources for the configured broker type. A memory
// factory shares one MemoryBroker between everything it builds.
type Factory struct {
	cfg         config.BrokerConfig
	serviceName string
	logger      logger.Logger
	memory      *MemoryBroker
}

func NewFactory(cfg config.BrokerConfig, serviceName string, log logger.Logger) (*Factory, error) {
	f := &Factory{cfg: cfg, serviceName: serviceName, logger: log}

	switch cfg.Type {
	case constants.BrokerKafka:
	case constants.BrokerMemory:
		f.memory = NewMemoryBroker(cfg.Memory.Partitions)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}

	return f, nil
}

func (f *Factory) NewProducer() Producer {
	if f.memory != nil {
		return f.memory.Producer()
	}
	return NewKafkaProducer(f.cfg.Kafka, f.serviceName, f.logger)
}

func (f *Factory) NewSource(groupID, topic string) Source {
	if f.memory != nil {
		return f.memory.Source(groupID, topic)
	}
	return NewKafkaSource(f.cfg.Kafka, groupID, topic, f.serviceName, f.logger)
}

// Memory returns the shared in-memory broker, or nil for Kafka.
func (f *Factory) Memory() *MemoryBroker {
	return f.memory
}

func (f *Factory) Close() error {
	if f.memory != nil {
		return f.memory.Close()
	}
	return nil
}
