package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated          Type = "booking.created"
	BookingStatusChanged    Type = "booking.status_changed"
	BookingRated            Type = "booking.rated"
	OrderCreated            Type = "order.created"
	OrderCancelled          Type = "order.cancelled"
	DeliveryMarkedDelivered Type = "delivery.marked_delivered"
)

// Event is the envelope shared by in-process subscribers and the Kafka topic.
type Event struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	AggregateID string          `json:"aggregateId"`
	ActorID     string          `json:"actorId,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

func New(t Type, aggregateID, actorID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
		Payload:     data,
	}, nil
}

func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type BookingPayload struct {
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	CoachID   string    `json:"coachId"`
	Sport     string    `json:"sport"`
	Date      time.Time `json:"date"`
	Slot      string    `json:"slot"`
	Status    string    `json:"status"`
	Previous  string    `json:"previousStatus,omitempty"`
}

type BookingRatedPayload struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	CoachID   string `json:"coachId"`
	Rating    int    `json:"rating"`
}

type OrderPayload struct {
	OrderID    string `json:"orderId"`
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	TotalPrice string `json:"totalPrice"`
	Items      int    `json:"items"`
	Reason     string `json:"reason,omitempty"`
}

type DeliveryPayload struct {
	DeliveryID     string    `json:"deliveryId"`
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId,omitempty"`
	TrackingNumber string    `json:"trackingNumber"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}
