package notification

import (
	"context"
	"fmt"

	"slotbook/models"
)

// Dispatcher hands notification intents to the downstream notification
// system, at most once per transaction id.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent models.NotificationIntent) error
}

// Sender is the external notification system boundary. Template content,
// channels, and delivery are its concern; this core only guarantees a
// deterministic transaction id per logical event.
type Sender interface {
	Send(ctx context.Context, intent models.NotificationIntent) error
}

// TransactionID derives the dedup key for one logical notification. It is a
// pure function of the event, never of the wall clock, so redelivered
// webhooks compute the same id and downstream dedup holds.
func TransactionID(eventKind string, role models.RecipientRole, refID string) string {
	return fmt.Sprintf("notify:%s:%s:%s", eventKind, role, refID)
}
