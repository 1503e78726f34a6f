package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "teamup"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultJWTIssuer   = "teamup"
	MinJWTSecretLength = 16

	DefaultTimeZone    = "Asia/Kolkata"
	DefaultSlotLockTTL = 10 * time.Second

	DefaultKafkaEnabled     = false
	DefaultEventsTopic      = "teamup.domain-events"
	DefaultEventsDLQTopic   = "teamup.domain-events.dlq"
	DefaultNotifierGroupID  = "teamup-notifier"
	DefaultNotifierBaseWait = 500 * time.Millisecond
	DefaultNotifierMaxWait  = 30 * time.Second

	DefaultPageSize        = 20
	DefaultPaginationLimit = 100
)
