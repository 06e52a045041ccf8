package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultUserCreatedTopic = "user.created"
	DefaultDeadLetterSuffix = ".dlt"
)

const (
	CacheKeyPrefixSent = "notification:sent:"
)

const (
	DefaultMongoDBName         = "herald"
	DeadLetterCollection       = "dead_letters"
	DefaultDeadLetterListLimit = 50
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackPropagate = "propagate"
	FallbackAbsorb    = "absorb"
)

const (
	NotifierHTTP      = "http"
	NotifierSimulated = "simulated"
	NotifierLog       = "log"
)

const (
	BrokerKafka  = "kafka"
	BrokerMemory = "memory"
)

const (
	StoreMongoDB = "mongodb"
	StoreMemory  = "memory"
)

// Dead-letter header names. All values are text.
const (
	HeaderOriginalTopic     = "dlt-original-topic"
	HeaderOriginalPartition = "dlt-original-partition"
	HeaderOriginalOffset    = "dlt-original-offset"
	HeaderExceptionMessage  = "dlt-exception-message"
	HeaderExceptionType     = "dlt-exception-type"
	HeaderExceptionStack    = "dlt-exception-stacktrace"
	HeaderAttempts          = "dlt-attempts"
	HeaderFailedAt          = "dlt-failed-at"
)
