package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"herald/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)

	viper.SetDefault("broker.type", constants.BrokerKafka)
	viper.SetDefault("broker.kafka.topic", constants.DefaultUserCreatedTopic)
	viper.SetDefault("broker.kafka.group_id", "notification-service")
	viper.SetDefault("broker.kafka.dlt_group_id", "notification-service-dlt")
	viper.SetDefault("broker.memory.partitions", 4)

	viper.SetDefault("consumer.concurrency", 3)
	viper.SetDefault("consumer.queue_size", 64)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_interval", time.Second)
	viper.SetDefault("retry.max_interval", 10*time.Second)
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.randomization_factor", 0.0)

	viper.SetDefault("dead_letter.suffix", constants.DefaultDeadLetterSuffix)
	viper.SetDefault("dead_letter.publish_attempts", 5)
	viper.SetDefault("dead_letter.publish_backoff", 500*time.Millisecond)
	viper.SetDefault("dead_letter.store", constants.StoreMemory)

	viper.SetDefault("publisher.queue_size", 256)
	viper.SetDefault("publisher.timeout", 5*time.Second)

	viper.SetDefault("circuit_breaker.window_size", 10)
	viper.SetDefault("circuit_breaker.minimum_calls", 5)
	viper.SetDefault("circuit_breaker.failure_rate_threshold", 50.0)
	viper.SetDefault("circuit_breaker.wait_duration_in_open", 10*time.Second)
	viper.SetDefault("circuit_breaker.permitted_calls_in_half_open", 3)
	viper.SetDefault("circuit_breaker.fallback", constants.FallbackPropagate)

	viper.SetDefault("notifier.type", constants.NotifierLog)
	viper.SetDefault("notifier.timeout", 2*time.Second)

	viper.SetDefault("deduplication.ttl", 24*time.Hour)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.dlt_group_id", "BROKER_KAFKA_DLT_GROUP_ID")
	viper.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("notifier.type", "NOTIFIER_TYPE")
	viper.BindEnv("notifier.url", "NOTIFIER_URL")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	viper.BindEnv("tracing.environment", "TRACING_ENVIRONMENT")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
