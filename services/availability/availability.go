package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/utils"
)

// RuleError means the requested interval violates a booking rule. The
// request itself is at fault; retrying the same input cannot succeed.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

// IsRuleViolation distinguishes rule rejections from transient lookup
// failures, which callers should treat as retryable.
func IsRuleViolation(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// ExternalCalendar answers whether an interval already carries an event on
// the provider's own calendar. Calendar integration itself lives outside
// this core.
type ExternalCalendar interface {
	HasEvent(ctx context.Context, resourceID string, start, end time.Time) (bool, error)
}

// Checker validates that a requested interval is bookable for a resource.
type Checker interface {
	Check(ctx context.Context, resourceID string, start, end time.Time) error
}

// Rules carries the notice and buffer tunables applied to every request.
type Rules struct {
	MinNotice    time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
}

// DefaultChecker enforces interval sanity, minimum notice, and external
// calendar conflicts (with buffers applied).
type DefaultChecker struct {
	Calendar ExternalCalendar
	Clock    utils.Clock
	Rules    Rules
}

func NewDefaultChecker(calendar ExternalCalendar, clock utils.Clock, rules Rules) *DefaultChecker {
	return &DefaultChecker{Calendar: calendar, Clock: clock, Rules: rules}
}

func (c *DefaultChecker) Check(ctx context.Context, resourceID string, start, end time.Time) error {
	if !end.After(start) {
		return &RuleError{Reason: "interval end must be after start"}
	}
	now := c.Clock.Now()
	if !utils.WithinNotice(now, start, c.Rules.MinNotice) {
		return &RuleError{Reason: fmt.Sprintf("slot starts within the minimum notice window of %s", c.Rules.MinNotice)}
	}

	checkStart, checkEnd := utils.BufferedInterval(start, end, c.Rules.BufferBefore, c.Rules.BufferAfter)
	if c.Calendar != nil {
		busy, err := c.Calendar.HasEvent(ctx, resourceID, checkStart, checkEnd)
		if err != nil {
			// Transient lookup failure, not a verdict on the interval.
			return fmt.Errorf("calendar lookup failed: %w", err)
		}
		if busy {
			return &RuleError{Reason: "interval conflicts with an external calendar event"}
		}
	}
	return nil
}
