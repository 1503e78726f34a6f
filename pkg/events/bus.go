package events

import (
	"context"
	"sync"
	"time"

	"teamup/pkg/logger"
)

// Handler reacts to an event. Handlers run by Dispatch share the caller's
// context, so inside a transaction they join it.
type Handler func(ctx context.Context, evt Event) error

// Publisher ships events out of process.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type Bus struct {
	mu             sync.RWMutex
	handlers       map[Type][]Handler
	publisher      Publisher
	publishTimeout time.Duration
	log            *logger.Logger
	wg             sync.WaitGroup
}

// NewBus builds a bus; a nil publisher disables asynchronous fan-out.
func NewBus(log *logger.Logger, publisher Publisher) *Bus {
	return &Bus{
		handlers:       make(map[Type][]Handler),
		publisher:      publisher,
		publishTimeout: 10 * time.Second,
		log:            log.Component("events"),
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Dispatch runs every subscriber of evt.Type in registration order and stops
// at the first error, which the caller uses to abort its transaction.
func (b *Bus) Dispatch(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := b.handlers[evt.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			b.log.FromContext(ctx).Warn("Event handler failed", "event_type", evt.Type, "event_id", evt.ID, "error", err)
			return err
		}
	}
	return nil
}

// Publish hands evt to the publisher in the background. It never blocks the
// caller and failures are only logged.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b.publisher == nil {
		return
	}

	requestID := logger.RequestID(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		pctx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), requestID), b.publishTimeout)
		defer cancel()

		if err := b.publisher.Publish(pctx, evt); err != nil {
			b.log.Error("Failed to publish event",
				logger.RequestIDKey, requestID,
				"event_type", evt.Type,
				"event_id", evt.ID,
				"aggregate_id", evt.AggregateID,
				"error", err,
			)
		}
	}()
}

// Emit builds an event and publishes it; a payload that cannot be encoded is logged.
func (b *Bus) Emit(ctx context.Context, t Type, aggregateID, actorID string, payload any) {
	evt, err := New(t, aggregateID, actorID, payload)
	if err != nil {
		b.log.Error("Failed to build event", "event_type", t, "error", err)
		return
	}
	b.Publish(ctx, evt)
}

// Close waits for in-flight publishes, bounded by ctx, then closes the publisher.
func (b *Bus) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.log.Warn("Timed out waiting for pending event publishes")
	}

	if b.publisher == nil {
		return nil
	}
	return b.publisher.Close()
}
