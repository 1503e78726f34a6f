package notifications

import (
	"context"
	"fmt"

	"teamup/pkg/events"
	"teamup/pkg/kafka"
	"teamup/pkg/logger"
)

// Router turns domain events into notifications and hands each to the notifier.
type Router struct {
	notifier Notifier
	log      *logger.Logger
}

func NewRouter(notifier Notifier, log *logger.Logger) *Router {
	return &Router{
		notifier: notifier,
		log:      log.Component("notifications"),
	}
}

// HandleMessage is the Kafka consumer entry point. Undecodable records are
// permanent failures; notifier errors are retried.
func (r *Router) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := events.FromMessage(msg)
	if err != nil {
		return err
	}
	if id := msg.GetCorrelationID(); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	return r.Handle(ctx, evt)
}

func (r *Router) Handle(ctx context.Context, evt events.Event) error {
	notes, err := Build(evt)
	if err != nil {
		return kafka.NewPermanentError("invalid event payload", err)
	}
	if len(notes) == 0 {
		r.log.FromContext(ctx).Debug("No notifications for event", "event_type", evt.Type, "event_id", evt.ID)
		return nil
	}

	for _, n := range notes {
		if err := r.notifier.Notify(ctx, n); err != nil {
			return kafka.NewTransientError("notification delivery failed", err)
		}
	}
	return nil
}

// Build derives the notifications for evt. Event types without recipients
// yield none.
func Build(evt events.Event) ([]Notification, error) {
	base := Notification{EventID: evt.ID, EventType: string(evt.Type)}
	note := func(channel, recipient, subject, body string) Notification {
		n := base
		n.Channel = channel
		n.Recipient = recipient
		n.Subject = subject
		n.Body = body
		return n
	}

	switch evt.Type {
	case events.BookingCreated:
		var p events.BookingPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		when := fmt.Sprintf("%s %s", p.Date.Format("2006-01-02"), p.Slot)
		return []Notification{
			note(ChannelEmail, p.UserID, "Booking received", fmt.Sprintf("Your %s session on %s is pending confirmation.", p.Sport, when)),
			note(ChannelPush, p.CoachID, "New booking request", fmt.Sprintf("A %s session was requested for %s.", p.Sport, when)),
		}, nil

	case events.BookingStatusChanged:
		var p events.BookingPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []Notification{
			note(ChannelEmail, p.UserID, "Booking "+p.Status,
				fmt.Sprintf("Your session on %s %s is now %s.", p.Date.Format("2006-01-02"), p.Slot, p.Status)),
		}, nil

	case events.BookingRated:
		var p events.BookingRatedPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []Notification{
			note(ChannelPush, p.CoachID, "New rating", fmt.Sprintf("A player rated your session %d/5.", p.Rating)),
		}, nil

	case events.OrderCreated:
		var p events.OrderPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []Notification{
			note(ChannelEmail, p.UserID, "Order placed",
				fmt.Sprintf("Order %s with %d item(s) totalling %s was placed.", p.OrderID, p.Items, p.TotalPrice)),
		}, nil

	case events.OrderCancelled:
		var p events.OrderPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		return []Notification{
			note(ChannelEmail, p.UserID, "Order cancelled",
				fmt.Sprintf("Order %s was cancelled (%s).", p.OrderID, p.Reason)),
		}, nil

	case events.DeliveryMarkedDelivered:
		var p events.DeliveryPayload
		if err := evt.Decode(&p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, nil
		}
		return []Notification{
			note(ChannelPush, p.UserID, "Order delivered",
				fmt.Sprintf("Shipment %s for order %s was delivered.", p.TrackingNumber, p.OrderID)),
		}, nil
	}
	return nil, nil
}
