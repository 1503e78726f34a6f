package kafka_middleware

import (
	"context"
	"time"

	"teamup/pkg/kafka"
	"teamup/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		logOutcome(log, "Published event", "Failed to publish event", msg, time.Since(start), err)
		return err
	}
}

func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		logOutcome(log, "Processed event", "Failed to process event", msg, time.Since(start), err)
		return err
	}
}

func logOutcome(log *logger.Logger, okMsg, failMsg string, msg kafka.Message, took time.Duration, err error) {
	args := []any{
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", msg.Key,
		"event_id", msg.GetEventID(),
		"event_type", msg.GetEventType(),
		"correlation_id", msg.GetCorrelationID(),
		"duration_ms", took.Milliseconds(),
	}
	if err != nil {
		log.Error(failMsg, append(args, "error", err)...)
		return
	}
	log.Debug(okMsg, args...)
}
