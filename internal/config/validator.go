package config

import (
	"fmt"
	"strings"

	"herald/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateConsumer(c.Consumer) },
		func(c *Config) error { return validateRetry(c.Retry) },
		func(c *Config) error { return validateDeadLetter(c.DeadLetter) },
		func(c *Config) error { return validateCircuitBreaker(c.CircuitBreaker) },
		func(c *Config) error { return validateNotifier(c.Notifier) },
		func(c *Config) error { return validateDatabase(c.Database) },
	}

	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	if cfg.Kafka.Topic == "" {
		return &ValidationError{
			Field:   "broker.kafka.topic",
			Message: "topic is required",
		}
	}

	switch cfg.Type {
	case constants.BrokerKafka:
		return validateKafka(cfg.Kafka)
	case constants.BrokerMemory:
		if cfg.Memory.Partitions < 1 {
			return &ValidationError{
				Field:   "broker.memory.partitions",
				Message: "at least one partition is required",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, memory)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.DeadLetterGroupID != "" && cfg.DeadLetterGroupID == cfg.GroupID {
		return &ValidationError{
			Field:   "broker.kafka.dlt_group_id",
			Message: "dead-letter group ID must differ from the primary group ID",
		}
	}

	return nil
}

func validateConsumer(cfg ConsumerConfig) error {
	if cfg.Concurrency < 1 {
		return &ValidationError{
			Field:   "consumer.concurrency",
			Message: "concurrency must be at least 1",
		}
	}

	if cfg.QueueSize < 1 {
		return &ValidationError{
			Field:   "consumer.queue_size",
			Message: "queue size must be at least 1",
		}
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxRetries < 0 {
		return &ValidationError{
			Field:   "retry.max_retries",
			Message: "max_retries must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   "retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   "retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier < 1 {
		return &ValidationError{
			Field:   "retry.multiplier",
			Message: "multiplier must be at least 1",
		}
	}

	if cfg.RandomizationFactor < 0 || cfg.RandomizationFactor >= 1 {
		return &ValidationError{
			Field:   "retry.randomization_factor",
			Message: "randomization_factor must be in [0, 1)",
		}
	}

	return nil
}

func validateDeadLetter(cfg DeadLetterConfig) error {
	if cfg.Suffix == "" {
		return &ValidationError{
			Field:   "dead_letter.suffix",
			Message: "suffix is required",
		}
	}

	if cfg.PublishAttempts < 1 {
		return &ValidationError{
			Field:   "dead_letter.publish_attempts",
			Message: "publish_attempts must be at least 1",
		}
	}

	switch cfg.Store {
	case constants.StoreMemory, constants.StoreMongoDB:
		return nil
	default:
		return &ValidationError{
			Field:   "dead_letter.store",
			Message: fmt.Sprintf("unknown store: %s (supported: memory, mongodb)", cfg.Store),
		}
	}
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if cfg.WindowSize < 1 {
		return &ValidationError{
			Field:   "circuit_breaker.window_size",
			Message: "window_size must be at least 1",
		}
	}

	if cfg.MinimumCalls < 1 || cfg.MinimumCalls > cfg.WindowSize {
		return &ValidationError{
			Field:   "circuit_breaker.minimum_calls",
			Message: fmt.Sprintf("minimum_calls must be between 1 and window_size (%d)", cfg.WindowSize),
		}
	}

	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 100 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_rate_threshold",
			Message: "failure_rate_threshold must be in (0, 100]",
		}
	}

	if cfg.WaitDurationInOpen <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.wait_duration_in_open",
			Message: "wait_duration_in_open must be positive",
		}
	}

	if cfg.PermittedCallsInHalfOpen < 1 {
		return &ValidationError{
			Field:   "circuit_breaker.permitted_calls_in_half_open",
			Message: "permitted_calls_in_half_open must be at least 1",
		}
	}

	switch strings.ToLower(cfg.Fallback) {
	case constants.FallbackPropagate, constants.FallbackAbsorb:
		return nil
	default:
		return &ValidationError{
			Field:   "circuit_breaker.fallback",
			Message: fmt.Sprintf("invalid fallback policy: %s (valid: propagate, absorb)", cfg.Fallback),
		}
	}
}

func validateNotifier(cfg NotifierConfig) error {
	switch cfg.Type {
	case constants.NotifierHTTP:
		if cfg.URL == "" {
			return &ValidationError{
				Field:   "notifier.url",
				Message: "url is required for the http notifier",
			}
		}
	case constants.NotifierSimulated:
		if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
			return &ValidationError{
				Field:   "notifier.failure_ratio",
				Message: "failure_ratio must be in [0, 1]",
			}
		}
	case constants.NotifierLog:
	default:
		return &ValidationError{
			Field:   "notifier.type",
			Message: fmt.Sprintf("unknown notifier type: %s (supported: http, simulated, log)", cfg.Type),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "notifier.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}
