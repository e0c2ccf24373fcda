package reconciler

import (
	"errors"
	"fmt"
)

// DuplicateEventError means this processor event id was already handled.
// Silently acknowledged, never surfaced as a failure.
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("duplicate event: %s", e.EventID)
}

// IsDuplicateEvent reports whether err is a redelivered-event no-op.
func IsDuplicateEvent(err error) bool {
	var de *DuplicateEventError
	return errors.As(err, &de)
}
