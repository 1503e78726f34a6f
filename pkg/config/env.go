package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTIssuer = "JWT_ISSUER"

	EnvTimeZone    = "TIME_ZONE"
	EnvSlotLockTTL = "SLOT_LOCK_TTL"

	EnvKafkaEnabled     = "KAFKA_ENABLED"
	EnvEventsTopic      = "EVENTS_TOPIC"
	EnvEventsDLQTopic   = "EVENTS_DLQ_TOPIC"
	EnvNotifierGroupID  = "NOTIFIER_GROUP_ID"
	EnvNotifierBaseWait = "NOTIFIER_RETRY_BASE_WAIT"
	EnvNotifierMaxWait  = "NOTIFIER_RETRY_MAX_WAIT"
)
