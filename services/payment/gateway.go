package payment

import (
	"context"
	"time"

	"slotbook/models"
)

// CreateSessionInput describes one checkout attempt. Amounts are integer
// minor units; the slot metadata rides on the session so webhooks can
// reconstruct the hold without a local lookup.
type CreateSessionInput struct {
	ResourceID     string
	HolderIdentity string
	StartTime      time.Time
	EndTime        time.Time
	HoldID         string
	AmountMinor    int64
	Currency       string
	Description    string
	ExpiresAt      time.Time
}

// CheckoutGateway is the boundary to the external payment processor. Only
// this contract is guaranteed; the processor's ledger is out of scope.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*models.CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
}
