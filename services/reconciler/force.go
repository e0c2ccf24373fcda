package reconciler

import (
	"context"
	"time"

	"slotbook/models"
	"slotbook/services/payment"
	"slotbook/services/reservation"

	"go.uber.org/zap"
)

// ForceReconcile replays the transition implied by the session's current
// state at the processor. Used by operators when a webhook was lost; the
// handlers it reuses are idempotent, so reconciling a healthy session is
// harmless.
func (s *DefaultService) ForceReconcile(ctx context.Context, sessionID string) error {
	sess, err := s.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		return &reservation.NotFoundError{Kind: "session", Ref: sessionID}
	}

	kind := kindFromSessionState(sess)
	ev := EventFromSession(kind, "manual:"+sessionID+":"+string(kind), sess)

	s.Logger.Info("force reconcile",
		zap.String("sessionID", sessionID), zap.String("kind", string(kind)))

	err = s.HandleEvent(ctx, ev)
	if IsDuplicateEvent(err) {
		return nil
	}
	return err
}

func kindFromSessionState(sess *models.CheckoutSession) models.EventKind {
	switch {
	case sess.PaymentStatus == "paid" || sess.PaymentStatus == "no_payment_required":
		return models.EventSettlementSucceeded
	case sess.Status == "expired":
		return models.EventSessionExpired
	default:
		// Open or complete but unpaid: a delayed-payment session still
		// awaiting settlement.
		return models.EventSessionCreated
	}
}

// EventFromSession builds the normalized event for a checkout session using
// the slot metadata the gateway attached at creation.
func EventFromSession(kind models.EventKind, eventID string, sess *models.CheckoutSession) models.PaymentEvent {
	ev := models.PaymentEvent{
		EventID:     eventID,
		Kind:        kind,
		SessionID:   sess.ID,
		PaymentRef:  sess.PaymentRef,
		AmountMinor: sess.AmountMinor,
		Currency:    sess.Currency,
	}
	if sess.Metadata != nil {
		ev.ResourceID = sess.Metadata[payment.MetaResourceID]
		ev.HolderIdentity = sess.Metadata[payment.MetaHolder]
		if t, err := time.Parse(time.RFC3339, sess.Metadata[payment.MetaStart]); err == nil {
			ev.StartTime = t
		}
		if t, err := time.Parse(time.RFC3339, sess.Metadata[payment.MetaEnd]); err == nil {
			ev.EndTime = t
		}
	}
	return ev
}
