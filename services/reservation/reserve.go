package reservation

import (
	"context"
	"errors"
	"net/http"

	reservationRepo "slotbook/database/repository/reservation"
	"slotbook/models"
	"slotbook/services/availability"
	"slotbook/services/idempotency"
	"slotbook/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errSessionPending marks a hold of the caller's own that has no checkout
// session attached yet; the state resolves itself, so retry.
var errSessionPending = errors.New("own hold has no session attached yet, retry")

// Reserve claims a slot: idempotency check, availability validation, then an
// atomic overlap-check-and-insert wired to a fresh checkout session. The
// transaction commits only after the gateway call succeeds, so no hold ever
// outlives a failed session create.
func (s *DefaultService) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	if err := validateReserveRequest(req); err != nil {
		return nil, err
	}

	// A cached result means a previous attempt with this key completed; no
	// new side effects, no second checkout session.
	if cached, err := s.Idempotency.Check(ctx, req.IdempotencyKey); err == nil && cached != nil {
		s.Logger.Debug("idempotency hit", zap.String("key", req.IdempotencyKey))
		return resultFromCached(cached), nil
	}

	if err := s.Availability.Check(ctx, req.ResourceID, req.StartTime, req.EndTime); err != nil {
		if availability.IsRuleViolation(err) {
			return nil, NewValidationError(err.Error())
		}
		// Lookup outage, not a verdict: safe to retry with the same key.
		return nil, &UpstreamError{Op: "availability check", Err: err}
	}

	now := s.Clock.Now()
	hold := models.SlotReservation{
		ID:             uuid.New().String(),
		ResourceID:     req.ResourceID,
		HolderIdentity: req.HolderIdentity,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		ExpiresAt:      now.Add(s.HoldTTL),
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		CreatedAt:      now,
	}

	var result *ReserveResult
	txErr := s.Holds.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-check under the transaction: live holds first.
		overlapping, err := s.Holds.FindOverlapping(txCtx, req.ResourceID, req.StartTime, req.EndTime, now)
		if err != nil {
			return &UpstreamError{Op: "overlap check", Err: err}
		}
		for i := range overlapping {
			existing := overlapping[i]
			if existing.HolderIdentity == req.HolderIdentity {
				if existing.SessionID != "" {
					// The caller already holds this slot; resurface their hold.
					result = resultFromHold(&existing)
					return nil
				}
				// Our own hold mid-creation on another node. Not a conflict
				// against ourselves; the session will be attached or the row
				// rolled back shortly.
				return &UpstreamError{Op: "hold lookup", Err: errSessionPending}
			}
			return conflictFromHold(&existing)
		}

		// Then confirmed bookings for the same resource.
		booked, err := s.Bookings.FindOverlapping(txCtx, req.ResourceID, req.StartTime, req.EndTime)
		if err != nil {
			return &UpstreamError{Op: "booking overlap check", Err: err}
		}
		if len(booked) > 0 {
			b := booked[0]
			return &ConflictError{
				ResourceID: b.ResourceID,
				Holder:     b.HolderIdentity,
				StartTime:  b.StartTime,
				EndTime:    b.EndTime,
			}
		}

		if err := s.Holds.Insert(txCtx, hold); err != nil {
			if errors.Is(err, reservationRepo.ErrDuplicateHold) {
				// Another writer got past the pre-check first; resolved
				// outside the aborted transaction.
				return err
			}
			return &UpstreamError{Op: "reservation insert", Err: err}
		}

		// External call happens before commit; a gateway failure rolls the
		// hold back instead of leaving it dangling.
		sess, err := s.Gateway.CreateSession(txCtx, payment.CreateSessionInput{
			ResourceID:     req.ResourceID,
			HolderIdentity: req.HolderIdentity,
			StartTime:      hold.StartTime,
			EndTime:        hold.EndTime,
			HoldID:         hold.ID,
			AmountMinor:    req.AmountMinor,
			Currency:       req.Currency,
			Description:    "Reservation " + req.ResourceID,
			ExpiresAt:      hold.ExpiresAt,
		})
		if err != nil {
			return &UpstreamError{Op: "checkout session create", Err: err}
		}

		if err := s.Holds.AttachSession(txCtx, hold.ID, sess.ID); err != nil {
			// The hold rolls back with the transaction; don't leave the
			// session alive.
			if expireErr := s.Gateway.ExpireSession(ctx, sess.ID); expireErr != nil {
				s.Logger.Warn("failed to expire orphaned session",
					zap.String("sessionID", sess.ID), zap.Error(expireErr))
			}
			return &UpstreamError{Op: "attach session", Err: err}
		}

		result = &ReserveResult{
			HoldID:     hold.ID,
			SessionID:  sess.ID,
			SessionURL: sess.URL,
			ExpiresAt:  hold.ExpiresAt,
		}
		return nil
	})

	if errors.Is(txErr, reservationRepo.ErrDuplicateHold) {
		result, txErr = s.resolveInsertRace(ctx, req)
	}
	if txErr != nil {
		return nil, txErr
	}

	if err := s.Idempotency.Save(ctx, req.IdempotencyKey, idempotency.Result{
		HoldID:     result.HoldID,
		SessionID:  result.SessionID,
		SessionURL: result.SessionURL,
		StatusCode: http.StatusCreated,
	}, s.IdemTTL); err != nil {
		s.Logger.Warn("idempotency save failed", zap.String("key", req.IdempotencyKey), zap.Error(err))
	}

	return result, nil
}

// resolveInsertRace decides the outcome after the uniqueness constraint
// rejected our insert: the surviving row tells us who won.
func (s *DefaultService) resolveInsertRace(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	winner, err := s.Holds.FindByResourceStart(ctx, req.ResourceID, req.StartTime.UTC())
	if err != nil {
		// The winner vanished between rejection and lookup (settled or
		// swept); the whole operation is safe to retry.
		return nil, &UpstreamError{Op: "race resolution", Err: err}
	}

	now := s.Clock.Now()
	if winner.Expired(now) {
		// A stale hold the sweeper has not reclaimed yet. Clear it and let
		// the client retry; the slot is effectively free.
		if _, delErr := s.Holds.DeleteIfExpired(ctx, winner.ID, now); delErr != nil {
			s.Logger.Warn("failed to clear stale hold", zap.String("holdID", winner.ID), zap.Error(delErr))
		}
		return nil, &UpstreamError{Op: "race resolution", Err: errors.New("stale hold cleared, retry")}
	}

	if winner.HolderIdentity == req.HolderIdentity {
		if winner.SessionID != "" {
			return resultFromHold(winner), nil
		}
		return nil, &UpstreamError{Op: "race resolution", Err: errSessionPending}
	}
	return nil, conflictFromHold(winner)
}

func (s *DefaultService) GetHold(ctx context.Context, holdID string) (*models.SlotReservation, error) {
	hold, err := s.Holds.FindByID(ctx, holdID)
	if err != nil {
		return nil, &NotFoundError{Kind: "hold", Ref: holdID}
	}
	return hold, nil
}

// Cancel releases a hold at the holder's request. The checkout session is
// expired first so a payment racing the cancellation cannot settle against a
// slot the buyer walked away from.
func (s *DefaultService) Cancel(ctx context.Context, holdID, holderIdentity string) error {
	hold, err := s.Holds.FindByID(ctx, holdID)
	if err != nil {
		return &NotFoundError{Kind: "hold", Ref: holdID}
	}
	if hold.HolderIdentity != holderIdentity {
		return &NotFoundError{Kind: "hold", Ref: holdID}
	}

	if hold.SessionID != "" {
		if err := s.Gateway.ExpireSession(ctx, hold.SessionID); err != nil {
			return &UpstreamError{Op: "session expire", Err: err}
		}
	}
	if err := s.Holds.Delete(ctx, hold.ID); err != nil {
		return &UpstreamError{Op: "hold delete", Err: err}
	}

	s.Logger.Info("hold cancelled by holder",
		zap.String("holdID", hold.ID), zap.String("resourceID", hold.ResourceID))
	return nil
}

func validateReserveRequest(req ReserveRequest) error {
	if req.IdempotencyKey == "" {
		return NewValidationError("missing idempotency key")
	}
	if req.ResourceID == "" {
		return NewValidationError("missing resource id")
	}
	if req.HolderIdentity == "" {
		return NewValidationError("missing holder identity")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return NewValidationError("missing interval bounds")
	}
	if !req.EndTime.After(req.StartTime) {
		return NewValidationError("interval end must be after start")
	}
	if req.AmountMinor <= 0 {
		return NewValidationError("invalid amount")
	}
	if req.Currency == "" {
		return NewValidationError("missing currency")
	}
	return nil
}

func resultFromHold(hold *models.SlotReservation) *ReserveResult {
	return &ReserveResult{
		HoldID:    hold.ID,
		SessionID: hold.SessionID,
		ExpiresAt: hold.ExpiresAt,
	}
}

func resultFromCached(cached *idempotency.Result) *ReserveResult {
	return &ReserveResult{
		HoldID:     cached.HoldID,
		SessionID:  cached.SessionID,
		SessionURL: cached.SessionURL,
	}
}

func conflictFromHold(hold *models.SlotReservation) error {
	return &ConflictError{
		ResourceID: hold.ResourceID,
		Holder:     hold.HolderIdentity,
		StartTime:  hold.StartTime,
		EndTime:    hold.EndTime,
	}
}
