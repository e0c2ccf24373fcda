package models

import "time"

// SlotReservation is an exclusive, time-bounded hold on a bookable interval.
// It exists between checkout creation and payment settlement; the sweeper
// reclaims it once ExpiresAt has passed.
type SlotReservation struct {
	ID             string    `bson:"id" json:"id"`
	ResourceID     string    `bson:"resource_id" json:"resourceId"`           // Provider being booked
	HolderIdentity string    `bson:"holder_identity" json:"holderIdentity"`   // Buyer email or account id
	StartTime      time.Time `bson:"start_time" json:"startTime"`             // UTC
	EndTime        time.Time `bson:"end_time" json:"endTime"`                 // UTC, exclusive
	ExpiresAt      time.Time `bson:"expires_at" json:"expiresAt"`             // Hold is void after this instant
	SessionID      string    `bson:"session_id,omitempty" json:"sessionId,omitempty"` // Checkout session that created it
	AmountMinor    int64     `bson:"amount_minor" json:"amountMinor"`         // Integer minor units
	Currency       string    `bson:"currency" json:"currency"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// Expired reports whether the hold is past its lifetime at the given instant.
func (r SlotReservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
