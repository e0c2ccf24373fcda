package reservation

import (
	"context"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	reservationRepo "slotbook/database/repository/reservation"
	"slotbook/models"
	"slotbook/services/availability"
	"slotbook/services/idempotency"
	"slotbook/services/payment"
	"slotbook/utils"

	"go.uber.org/zap"
)

// ReserveRequest is one attempt to claim a slot.
type ReserveRequest struct {
	ResourceID     string    `json:"resourceId"`
	HolderIdentity string    `json:"holderIdentity"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	AmountMinor    int64     `json:"amountMinor"`
	Currency       string    `json:"currency"`
	IdempotencyKey string    `json:"-"`
}

// ReserveResult is returned to the client: the hold reference plus the
// checkout URL to complete payment.
type ReserveResult struct {
	HoldID     string    `json:"holdId"`
	SessionID  string    `json:"sessionId"`
	SessionURL string    `json:"sessionUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Service orchestrates slot reservation and hold expiry.
type Service interface {
	Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error)
	GetHold(ctx context.Context, holdID string) (*models.SlotReservation, error)
	// Cancel releases a hold at the holder's request and expires its
	// checkout session.
	Cancel(ctx context.Context, holdID, holderIdentity string) error
	// Sweep deletes holds past their expiry and reconciles orphaned
	// checkout sessions. Safe to run concurrently with itself and with
	// webhook processing.
	Sweep(ctx context.Context) (int, error)
}

// DefaultService is the production implementation.
type DefaultService struct {
	Holds        reservationRepo.ReservationRepository
	Bookings     bookingRepo.BookingRepository
	Gateway      payment.CheckoutGateway
	Idempotency  idempotency.Store
	Availability availability.Checker
	Clock        utils.Clock
	HoldTTL      time.Duration
	IdemTTL      time.Duration
	Logger       *zap.Logger
}
