package models

import "time"

// Booking represents a confirmed booking record. Created exactly once per
// settled payment, keyed on the checkout session id.
type Booking struct {
	ID             string    `bson:"id" json:"id"`
	ResourceID     string    `bson:"resource_id" json:"resourceId"`
	HolderIdentity string    `bson:"holder_identity" json:"holderIdentity"`
	StartTime      time.Time `bson:"start_time" json:"startTime"`
	EndTime        time.Time `bson:"end_time" json:"endTime"`
	SessionID      string    `bson:"session_id" json:"sessionId"`
	AmountMinor    int64     `bson:"amount_minor" json:"amountMinor"`
	Currency       string    `bson:"currency" json:"currency"`
	PaymentRef     string    `bson:"payment_ref,omitempty" json:"paymentRef,omitempty"` // Processor payment-intent reference
	SettledAt      time.Time `bson:"settled_at" json:"settledAt"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}
