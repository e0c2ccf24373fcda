package reconciler

import (
	"context"
	"errors"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	reservationRepo "slotbook/database/repository/reservation"
	webhookeventRepo "slotbook/database/repository/webhookevent"
	"slotbook/models"
	"slotbook/services/notification"
	"slotbook/services/payment"
	"slotbook/services/reservation"
	"slotbook/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service consumes payment-processor events and drives the hold/booking
// state machine. Events arrive at least once, in any order.
type Service interface {
	HandleEvent(ctx context.Context, ev models.PaymentEvent) error
	// ForceReconcile re-reads a session from the gateway and replays the
	// transition its current state implies. Operator recovery for lost
	// webhooks.
	ForceReconcile(ctx context.Context, sessionID string) error
}

// DefaultService is the production implementation.
type DefaultService struct {
	Holds      reservationRepo.ReservationRepository
	Bookings   bookingRepo.BookingRepository
	Events     webhookeventRepo.EventRepository
	Gateway    payment.CheckoutGateway
	Dispatcher notification.Dispatcher
	Clock      utils.Clock
	HoldTTL    time.Duration
	Logger     *zap.Logger
}

// HandleEvent absorbs duplicates, then applies exactly one transition. A
// transient failure after the dedup mark releases the mark and returns a
// retryable error so the processor's redelivery gets another attempt.
func (s *DefaultService) HandleEvent(ctx context.Context, ev models.PaymentEvent) error {
	if ev.EventID == "" || ev.SessionID == "" {
		return &reservation.NotFoundError{Kind: "event", Ref: ev.EventID}
	}

	now := s.Clock.Now()
	if err := s.Events.MarkProcessed(ctx, ev.EventID, string(ev.Kind), now); err != nil {
		if errors.Is(err, webhookeventRepo.ErrAlreadyProcessed) {
			s.Logger.Debug("duplicate event absorbed", zap.String("eventID", ev.EventID))
			return &DuplicateEventError{EventID: ev.EventID}
		}
		return &reservation.UpstreamError{Op: "event dedup", Err: err}
	}

	var err error
	switch ev.Kind {
	case models.EventSessionCreated:
		err = s.handleSessionCreated(ctx, ev)
	case models.EventSettlementSucceeded:
		err = s.handleSettled(ctx, ev)
	case models.EventSettlementFailed, models.EventSessionExpired:
		err = s.handleFailed(ctx, ev)
	default:
		// Unknown kinds are acknowledged, never crashed on.
		s.Logger.Warn("unknown event kind, ignoring",
			zap.String("eventID", ev.EventID), zap.String("kind", string(ev.Kind)))
		return nil
	}

	var ue *reservation.UpstreamError
	if errors.As(err, &ue) {
		// Release the dedup mark so redelivery can retry the transition.
		if unmarkErr := s.Events.Unmark(ctx, ev.EventID); unmarkErr != nil {
			s.Logger.Error("failed to release event mark after transient error",
				zap.String("eventID", ev.EventID), zap.Error(unmarkErr))
		}
	}
	return err
}

// handleSessionCreated inserts the hold for a delayed-payment checkout: the
// buyer committed at the processor, settlement arrives later. Runs the same
// overlap-check-then-insert discipline as the reservation manager.
func (s *DefaultService) handleSessionCreated(ctx context.Context, ev models.PaymentEvent) error {
	if existing, err := s.Holds.FindBySessionID(ctx, ev.SessionID); err == nil && existing != nil {
		// The manager already created this hold on the instant path.
		return nil
	}
	if ev.ResourceID == "" || ev.HolderIdentity == "" || ev.StartTime.IsZero() || ev.EndTime.IsZero() {
		s.Logger.Warn("session_created without slot metadata, ignoring",
			zap.String("sessionID", ev.SessionID))
		return nil
	}

	now := s.Clock.Now()
	hold := models.SlotReservation{
		ID:             uuid.New().String(),
		ResourceID:     ev.ResourceID,
		HolderIdentity: ev.HolderIdentity,
		StartTime:      ev.StartTime.UTC(),
		EndTime:        ev.EndTime.UTC(),
		ExpiresAt:      now.Add(s.HoldTTL),
		SessionID:      ev.SessionID,
		AmountMinor:    ev.AmountMinor,
		Currency:       ev.Currency,
		CreatedAt:      now,
	}

	txErr := s.Holds.WithTransaction(ctx, func(txCtx context.Context) error {
		overlapping, err := s.Holds.FindOverlapping(txCtx, ev.ResourceID, hold.StartTime, hold.EndTime, now)
		if err != nil {
			return &reservation.UpstreamError{Op: "overlap check", Err: err}
		}
		for i := range overlapping {
			if overlapping[i].SessionID == ev.SessionID {
				return nil
			}
			return reservationRepo.ErrDuplicateHold
		}
		booked, err := s.Bookings.FindOverlapping(txCtx, ev.ResourceID, hold.StartTime, hold.EndTime)
		if err != nil {
			return &reservation.UpstreamError{Op: "booking overlap check", Err: err}
		}
		if len(booked) > 0 {
			return reservationRepo.ErrDuplicateHold
		}
		return s.Holds.Insert(txCtx, hold)
	})

	if errors.Is(txErr, reservationRepo.ErrDuplicateHold) {
		// The slot went to someone else while the buyer sat in checkout.
		// Expire the session so the delayed payment cannot settle.
		s.Logger.Warn("slot taken before delayed checkout settled, expiring session",
			zap.String("sessionID", ev.SessionID), zap.String("resourceID", ev.ResourceID))
		if err := s.Gateway.ExpireSession(ctx, ev.SessionID); err != nil {
			s.Logger.Error("failed to expire conflicting session",
				zap.String("sessionID", ev.SessionID), zap.Error(err))
		}
		return nil
	}
	return txErr
}

// handleSettled promotes a hold into a confirmed booking. Valid even when no
// hold exists yet: the instant-payment path, or a settlement webhook
// overtaking session_created.
func (s *DefaultService) handleSettled(ctx context.Context, ev models.PaymentEvent) error {
	now := s.Clock.Now()

	booking := models.Booking{
		ID:         uuid.New().String(),
		SessionID:  ev.SessionID,
		PaymentRef: ev.PaymentRef,
		SettledAt:  now,
		CreatedAt:  now,
	}

	hold, holdErr := s.Holds.FindBySessionID(ctx, ev.SessionID)
	if holdErr != nil || hold == nil {
		return s.settleWithoutHold(ctx, ev, booking)
	}

	booking.ResourceID = hold.ResourceID
	booking.HolderIdentity = hold.HolderIdentity
	booking.StartTime = hold.StartTime
	booking.EndTime = hold.EndTime
	booking.AmountMinor = hold.AmountMinor
	booking.Currency = hold.Currency

	if err := s.Bookings.Insert(ctx, booking); err != nil {
		if errors.Is(err, bookingRepo.ErrAlreadySettled) {
			// Redelivered settlement: reuse the existing booking so the
			// notification transaction id stays identical.
			existing, findErr := s.Bookings.FindBySessionID(ctx, ev.SessionID)
			if findErr != nil {
				return &reservation.UpstreamError{Op: "booking lookup", Err: findErr}
			}
			booking = *existing
		} else {
			return &reservation.UpstreamError{Op: "booking insert", Err: err}
		}
	}

	// The hold has served its purpose; an unconditional delete is safe
	// because the booking row now owns the interval.
	if err := s.Holds.Delete(ctx, hold.ID); err != nil {
		s.Logger.Error("failed to delete settled hold",
			zap.String("holdID", hold.ID), zap.Error(err))
	}

	s.notifySettled(ctx, booking)
	return nil
}

// settleWithoutHold books a settled session whose hold row is gone: a
// redelivery after promotion, a settlement overtaking session_created, or a
// hold the sweeper reclaimed before the delayed payment landed. With no hold
// guarding the interval, the overlap discipline runs again before the
// booking is written; a slot meanwhile claimed by someone else refuses the
// booking and flags the settlement for operator follow-up.
func (s *DefaultService) settleWithoutHold(ctx context.Context, ev models.PaymentEvent, booking models.Booking) error {
	if ev.ResourceID == "" || ev.HolderIdentity == "" || ev.StartTime.IsZero() || ev.EndTime.IsZero() {
		// No hold and no slot metadata: either a redelivery after the hold
		// was already promoted, or noise. An existing booking for the
		// session resolves which.
		if existing, findErr := s.Bookings.FindBySessionID(ctx, ev.SessionID); findErr == nil && existing != nil {
			s.notifySettled(ctx, *existing)
			return nil
		}
		s.Logger.Warn("settlement for unknown session without metadata, ignoring",
			zap.String("sessionID", ev.SessionID))
		return nil
	}

	booking.ResourceID = ev.ResourceID
	booking.HolderIdentity = ev.HolderIdentity
	booking.StartTime = ev.StartTime.UTC()
	booking.EndTime = ev.EndTime.UTC()
	booking.AmountMinor = ev.AmountMinor
	booking.Currency = ev.Currency

	now := s.Clock.Now()
	taken := false
	txErr := s.Holds.WithTransaction(ctx, func(txCtx context.Context) error {
		overlapping, err := s.Holds.FindOverlapping(txCtx, booking.ResourceID, booking.StartTime, booking.EndTime, now)
		if err != nil {
			return &reservation.UpstreamError{Op: "overlap check", Err: err}
		}
		for i := range overlapping {
			if overlapping[i].SessionID != ev.SessionID {
				taken = true
				return nil
			}
		}
		booked, err := s.Bookings.FindOverlapping(txCtx, booking.ResourceID, booking.StartTime, booking.EndTime)
		if err != nil {
			return &reservation.UpstreamError{Op: "booking overlap check", Err: err}
		}
		for i := range booked {
			if booked[i].SessionID != ev.SessionID {
				taken = true
				return nil
			}
		}
		if err := s.Bookings.Insert(txCtx, booking); err != nil {
			if errors.Is(err, bookingRepo.ErrAlreadySettled) {
				return err
			}
			return &reservation.UpstreamError{Op: "booking insert", Err: err}
		}
		return nil
	})

	if taken {
		// Someone else owns the interval now; writing the booking would
		// double-claim it. The buyer's money moved, so this settlement needs
		// a refund path outside this core.
		s.Logger.Error("settled session lost its slot, refusing booking",
			zap.String("sessionID", ev.SessionID),
			zap.String("resourceID", booking.ResourceID))
		s.notifyConflicted(ctx, booking)
		return nil
	}
	if errors.Is(txErr, bookingRepo.ErrAlreadySettled) {
		existing, findErr := s.Bookings.FindBySessionID(ctx, ev.SessionID)
		if findErr != nil {
			return &reservation.UpstreamError{Op: "booking lookup", Err: findErr}
		}
		booking = *existing
	} else if txErr != nil {
		return txErr
	}

	s.notifySettled(ctx, booking)
	return nil
}

// handleFailed releases the hold for a failed or expired payment.
func (s *DefaultService) handleFailed(ctx context.Context, ev models.PaymentEvent) error {
	hold, err := s.Holds.FindBySessionID(ctx, ev.SessionID)
	if err != nil || hold == nil {
		// Stale webhook for a hold already released; acknowledge.
		s.Logger.Debug("failure event for unknown session",
			zap.String("sessionID", ev.SessionID))
		return nil
	}

	if err := s.Holds.Delete(ctx, hold.ID); err != nil {
		return &reservation.UpstreamError{Op: "hold delete", Err: err}
	}

	s.Logger.Info("released hold after payment failure",
		zap.String("holdID", hold.ID),
		zap.String("sessionID", ev.SessionID),
		zap.String("kind", string(ev.Kind)))

	s.notifyFailed(ctx, *hold, ev.Kind)
	return nil
}

func (s *DefaultService) notifySettled(ctx context.Context, booking models.Booking) {
	intents := []models.NotificationIntent{
		{
			TransactionID: notification.TransactionID("booking_confirmed", models.RoleBuyer, booking.ID),
			Workflow:      "booking_confirmed",
			Role:          models.RoleBuyer,
			Recipient:     booking.HolderIdentity,
			Data: map[string]string{
				"bookingId":  booking.ID,
				"resourceId": booking.ResourceID,
				"startTime":  booking.StartTime.Format(time.RFC3339),
			},
		},
		{
			TransactionID: notification.TransactionID("booking_confirmed", models.RoleProvider, booking.ID),
			Workflow:      "booking_confirmed",
			Role:          models.RoleProvider,
			Recipient:     booking.ResourceID,
			Data: map[string]string{
				"bookingId": booking.ID,
				"startTime": booking.StartTime.Format(time.RFC3339),
			},
		},
	}
	for _, intent := range intents {
		if err := s.Dispatcher.Dispatch(ctx, intent); err != nil {
			s.Logger.Error("notification dispatch failed",
				zap.String("transactionID", intent.TransactionID), zap.Error(err))
		}
	}
}

// notifyConflicted tells the buyer their settled payment could not be
// booked because the slot went to someone else. Keyed on the session id so
// redeliveries collapse into one notification.
func (s *DefaultService) notifyConflicted(ctx context.Context, booking models.Booking) {
	intent := models.NotificationIntent{
		TransactionID: notification.TransactionID("settlement_conflict", models.RoleBuyer, booking.SessionID),
		Workflow:      "settlement_conflict",
		Role:          models.RoleBuyer,
		Recipient:     booking.HolderIdentity,
		Data: map[string]string{
			"sessionId":  booking.SessionID,
			"resourceId": booking.ResourceID,
			"startTime":  booking.StartTime.Format(time.RFC3339),
		},
	}
	if err := s.Dispatcher.Dispatch(ctx, intent); err != nil {
		s.Logger.Error("notification dispatch failed",
			zap.String("transactionID", intent.TransactionID), zap.Error(err))
	}
}

func (s *DefaultService) notifyFailed(ctx context.Context, hold models.SlotReservation, kind models.EventKind) {
	intent := models.NotificationIntent{
		TransactionID: notification.TransactionID("payment_failed", models.RoleBuyer, hold.ID),
		Workflow:      "payment_failed",
		Role:          models.RoleBuyer,
		Recipient:     hold.HolderIdentity,
		Data: map[string]string{
			"holdId":     hold.ID,
			"resourceId": hold.ResourceID,
			"reason":     string(kind),
		},
	}
	if err := s.Dispatcher.Dispatch(ctx, intent); err != nil {
		s.Logger.Error("notification dispatch failed",
			zap.String("transactionID", intent.TransactionID), zap.Error(err))
	}
}
