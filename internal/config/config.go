package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Consumer       ConsumerConfig
	Retry          RetryConfig
	DeadLetter     DeadLetterConfig `mapstructure:"dead_letter"`
	Publisher      PublisherConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Notifier       NotifierConfig
	Deduplication  DeduplicationConfig
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Logging        LoggingConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type   string       `mapstructure:"type"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	DeadLetterGroupID string   `mapstructure:"dlt_group_id"`
	Topic             string   `mapstructure:"topic"`
}

type MemoryConfig struct {
	Partitions int `mapstructure:"partitions"`
}

type ConsumerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueSize   int `mapstructure:"queue_size"`
}

// RetryConfig is the redelivery policy applied before a message is dead-lettered.
type RetryConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	Multiplier          float64       `mapstructure:"multiplier"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
}

type DeadLetterConfig struct {
	Suffix          string        `mapstructure:"suffix"`
	PublishAttempts int           `mapstructure:"publish_attempts"`
	PublishBackoff  time.Duration `mapstructure:"publish_backoff"`
	Store           string        `mapstructure:"store"`
}

type PublisherConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CircuitBreakerConfig struct {
	WindowSize               int           `mapstructure:"window_size"`
	MinimumCalls             int           `mapstructure:"minimum_calls"`
	FailureRateThreshold     float64       `mapstructure:"failure_rate_threshold"`
	WaitDurationInOpen       time.Duration `mapstructure:"wait_duration_in_open"`
	PermittedCallsInHalfOpen uint32        `mapstructure:"permitted_calls_in_half_open"`
	Fallback                 string        `mapstructure:"fallback"` // "propagate" or "absorb"
}

type NotifierConfig struct {
	Type         string        `mapstructure:"type"` // "http", "simulated", "log"
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RPS          float64       `mapstructure:"rps"`
	Burst        int           `mapstructure:"burst"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	Latency      time.Duration `mapstructure:"latency"`
}

type DeduplicationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	Environment string        `mapstructure:"environment"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// DeadLetterTopic is the topic failed messages from Topic are routed to.
func (c *Config) DeadLetterTopic() string {
	return c.Broker.Kafka.Topic + c.DeadLetter.Suffix
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
