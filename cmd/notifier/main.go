package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"teamup/internal/notifications"
	"teamup/pkg/config"
	"teamup/pkg/kafka"
	kafka_config "teamup/pkg/kafka/config"
	kafka_middleware "teamup/pkg/kafka/middleware"
)

const ServiceName = "teamup-notifier"

const metricsInterval = time.Minute

func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	router := notifications.NewRouter(notifications.NewLogNotifier(cfg.Log), cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, kafka.ConsumerOptions{
		Topic:    cfg.EventsTopic,
		GroupID:  cfg.NotifierGroupID,
		DLQTopic: cfg.EventsDLQTopic,
		BaseWait: cfg.NotifierBaseWait,
		MaxWait:  cfg.NotifierMaxWait,
	}, router.HandleMessage, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := &kafka_middleware.Metrics{}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reportMetrics(ctx, metrics, cfg)

	cfg.Log.Info("Starting notifier", "topic", cfg.EventsTopic, "group_id", cfg.NotifierGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	metrics.Log(cfg.Log)
	cfg.Log.Info("Notifier stopped")
}

func reportMetrics(ctx context.Context, metrics *kafka_middleware.Metrics, cfg *config.Config) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.Log(cfg.Log)
		}
	}
}
