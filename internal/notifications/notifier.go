package notifications

import (
	"context"

	"teamup/pkg/logger"
)

const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Notification is one message for one recipient, derived from a domain event.
type Notification struct {
	EventID   string
	EventType string
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log instead of
// delivering them.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Component("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.log.FromContext(ctx).Info("Notification sent",
		"event_id", msg.EventID,
		"event_type", msg.EventType,
		"channel", msg.Channel,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return nil
}
