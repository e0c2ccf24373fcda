package reservation

import (
	"errors"
	"fmt"
	"time"
)

// ConflictError means the slot is already held or booked by someone else.
// Terminal for this attempt; the caller must pick another slot. It carries
// enough detail for the client to retry elsewhere.
type ConflictError struct {
	ResourceID string
	Holder     string
	StartTime  time.Time
	EndTime    time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict: resource %s interval [%s, %s) is held by %s",
		e.ResourceID, e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339), e.Holder)
}

// ValidationError means the request was malformed; reject immediately,
// retrying the same input cannot succeed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// UpstreamError means the gateway or database failed transiently. No partial
// state was committed, so the whole operation is safe to retry with the same
// idempotency key.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotFoundError means the referenced hold or session does not exist.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

// IsConflict reports whether err is a slot conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a missing-reference failure.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
