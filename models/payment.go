package models

import "time"

// EventKind discriminates processor webhook events.
type EventKind string

const (
	EventSessionCreated      EventKind = "session_created"
	EventSettlementSucceeded EventKind = "settlement_succeeded"
	EventSettlementFailed    EventKind = "settlement_failed"
	EventSessionExpired      EventKind = "session_expired"
)

// PaymentEvent is the normalized form of a processor webhook. Events are
// delivered at least once, possibly out of order and duplicated; EventID is
// the dedup key.
type PaymentEvent struct {
	EventID    string    `json:"eventId"`
	Kind       EventKind `json:"kind"`
	SessionID  string    `json:"sessionId"`
	PaymentRef string    `json:"paymentRef,omitempty"`

	// Slot metadata embedded in the checkout session. Only populated on
	// session_created (delayed-payment path) and settlement_succeeded.
	ResourceID     string    `json:"resourceId,omitempty"`
	HolderIdentity string    `json:"holderIdentity,omitempty"`
	StartTime      time.Time `json:"startTime,omitempty"`
	EndTime        time.Time `json:"endTime,omitempty"`
	AmountMinor    int64     `json:"amountMinor,omitempty"`
	Currency       string    `json:"currency,omitempty"`
}

// CheckoutSession is this core's view of the processor's checkout object.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentRef    string
	AmountMinor   int64
	Currency      string
	Status        string // open | complete | expired
	PaymentStatus string // paid | unpaid | no_payment_required
	Metadata      map[string]string
}
