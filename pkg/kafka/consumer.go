package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafka_config "teamup/pkg/kafka/config"
	"teamup/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader the consumer relies on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerMiddleware func(ctx context.Context, msg Message, next MessageHandler) error

// ConsumerOptions names the subscription and its retry policy.
type ConsumerOptions struct {
	Topic    string
	GroupID  string
	DLQTopic string
	// BaseWait is the delay before the first retry; each further retry doubles it up to MaxWait.
	BaseWait time.Duration
	MaxWait  time.Duration
}

type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	opts       ConsumerOptions
	maxRetries int
	handler    MessageHandler
	middleware []ConsumerMiddleware
	log        *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	closed     bool
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

func NewConsumer(cfg *kafka_config.Config, opts ConsumerOptions, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if opts.GroupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             opts.Topic,
		GroupID:           opts.GroupID,
		MinBytes:          cfg.ConsumerMinBytes,
		MaxBytes:          cfg.ConsumerMaxBytes,
		MaxWait:           cfg.ConsumerMaxWait,
		CommitInterval:    cfg.ConsumerCommitInterval,
		HeartbeatInterval: cfg.ConsumerHeartbeatInterval,
		SessionTimeout:    cfg.ConsumerSessionTimeout,
		RebalanceTimeout:  cfg.ConsumerRebalanceTimeout,
		StartOffset:       cfg.ConsumerStartOffset,
		ErrorLogger:       kafka.LoggerFunc(log.Printf),
	})

	var dlq messageWriter
	if opts.DLQTopic != "" {
		dlq = newDLQWriter(cfg.Brokers, opts.DLQTopic, compressionCodec(cfg.ProducerCompression), log)
	}

	return newConsumer(reader, dlq, opts, cfg.ConsumerMaxRetries, handler, log), nil
}

func newConsumer(reader messageReader, dlq messageWriter, opts ConsumerOptions, maxRetries int, handler MessageHandler, log *logger.Logger) *Consumer {
	if opts.BaseWait <= 0 {
		opts.BaseWait = 500 * time.Millisecond
	}
	if opts.MaxWait < opts.BaseWait {
		opts.MaxWait = opts.BaseWait
	}
	return &Consumer{
		reader:     reader,
		dlqWriter:  dlq,
		opts:       opts,
		maxRetries: maxRetries,
		handler:    handler,
		log:        log.Component("kafka-consumer").With("topic", opts.Topic, "group_id", opts.GroupID),
		sleep:      sleepContext,
	}
}

func (c *Consumer) Use(middleware ConsumerMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

// Start consumes until ctx is cancelled. Offsets are committed only after a
// message was handled or parked on the DLQ, so delivery is at least once.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	fetchFailures := 0
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				// reader closed
				return nil
			}
			fetchFailures++
			wait := c.backoff(fetchFailures)
			c.log.Error("Failed to fetch message", "error", err, "retry_in", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		fetchFailures = 0

		msg := fromKafkaMessage(km)
		if err := c.processMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Message processing failed", "event_id", msg.GetEventID(), "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, km); err != nil {
			c.log.Error("Failed to commit offset", "offset", km.Offset, "error", err)
		}
	}
}

// processMessage retries transient failures with exponential backoff and
// parks everything else on the DLQ.
func (c *Consumer) processMessage(ctx context.Context, msg Message) error {
	c.mu.RLock()
	handler := wrap(c.middleware, c.handler)
	c.mu.RUnlock()

	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}

		retries := msg.GetRetryCount()
		if ShouldRetry(err, retries, c.maxRetries) {
			msg.IncrementRetryCount()
			wait := c.backoff(retries + 1)
			c.log.Warn("Retrying message",
				"event_id", msg.GetEventID(),
				"attempt", retries+1,
				"max_retries", c.maxRetries,
				"retry_in", wait,
				"error", err,
			)
			if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if c.dlqWriter != nil {
			if dlqErr := writeDLQ(ctx, c.dlqWriter, msg, c.opts.Topic, c.opts.GroupID, err); dlqErr != nil {
				c.log.Error("Failed to send message to DLQ", "event_id", msg.GetEventID(), "error", dlqErr, "cause", err)
			} else {
				c.log.Warn("Message sent to DLQ", "event_id", msg.GetEventID(), "retries", retries, "cause", err)
			}
		}
		return err
	}
}

// backoff returns BaseWait * 2^(attempt-1), capped at MaxWait.
func (c *Consumer) backoff(attempt int) time.Duration {
	wait := c.opts.BaseWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= c.opts.MaxWait {
			return c.opts.MaxWait
		}
	}
	return min(wait, c.opts.MaxWait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.reader.Close()
	c.wg.Wait()

	if c.dlqWriter != nil {
		if dlqErr := c.dlqWriter.Close(); err == nil {
			err = dlqErr
		}
	}
	return err
}
