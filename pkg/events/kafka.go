package events

import (
	"context"

	"teamup/pkg/kafka"
	"teamup/pkg/logger"
)

const schemaVersion = "1"

// KafkaPublisher writes events to the domain-events topic keyed by aggregate
// id, so events of one aggregate stay ordered.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := ToMessage(evt, p.source, logger.RequestID(ctx))
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func ToMessage(evt Event, source, correlationID string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(evt.AggregateID).
		WithValue(evt).
		WithEventID(evt.ID).
		WithEventType(string(evt.Type)).
		WithCorrelationID(correlationID).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		Build()
}

// FromMessage decodes a consumed record back into an Event.
func FromMessage(msg kafka.Message) (Event, error) {
	var evt Event
	if err := msg.DecodeValue(&evt); err != nil {
		return Event{}, kafka.NewPermanentError("undecodable event", err)
	}
	if evt.Type == "" {
		evt.Type = Type(msg.GetEventType())
	}
	return evt, nil
}
