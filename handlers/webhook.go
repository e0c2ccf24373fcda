package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"slotbook/models"
	"slotbook/services/reconciler"
	"slotbook/services/reservation"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// WebhookHandler verifies and normalizes Stripe events, then feeds the
// reconciler. Response codes drive Stripe's redelivery: 2xx acknowledges,
// 5xx asks for another attempt.
type WebhookHandler struct {
	svc           reconciler.Service
	signingSecret string
	logger        *zap.Logger
}

func NewWebhookHandler(svc reconciler.Service, signingSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, signingSecret: signingSecret, logger: logger}
}

func (h *WebhookHandler) StripeWebhookHandler(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "unreadable payload", err.Error())
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.signingSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "invalid signature", "")
		return
	}

	var sess stripe.CheckoutSession
	var kind models.EventKind

	switch string(event.Type) {
	case "checkout.session.completed":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.ackMalformed(c, event.ID, err)
			return
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			kind = models.EventSettlementSucceeded
		} else {
			// Delayed payment method: checkout finished but settlement is
			// still pending. This is where the hold gets created.
			kind = models.EventSessionCreated
		}
	case "checkout.session.async_payment_succeeded":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.ackMalformed(c, event.ID, err)
			return
		}
		kind = models.EventSettlementSucceeded
	case "checkout.session.async_payment_failed":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.ackMalformed(c, event.ID, err)
			return
		}
		kind = models.EventSettlementFailed
	case "checkout.session.expired":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.ackMalformed(c, event.ID, err)
			return
		}
		kind = models.EventSessionExpired
	default:
		// Event types this core does not track are acknowledged as-is.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ev := reconciler.EventFromSession(kind, event.ID, fromStripeWebhookSession(&sess))
	err = h.svc.HandleEvent(c.Request.Context(), ev)

	switch {
	case err == nil, reconciler.IsDuplicateEvent(err):
		c.JSON(http.StatusOK, gin.H{"received": true})
	case reservation.IsNotFound(err):
		// Stale or malformed reference: acknowledge so Stripe stops
		// redelivering.
		h.logger.Warn("webhook referenced unknown session",
			zap.String("eventID", ev.EventID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		var upstream *reservation.UpstreamError
		if errors.As(err, &upstream) {
			h.logger.Error("transient webhook failure, requesting redelivery",
				zap.String("eventID", ev.EventID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transient failure"})
			return
		}
		h.logger.Error("webhook handling failed",
			zap.String("eventID", ev.EventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *WebhookHandler) ackMalformed(c *gin.Context, eventID string, err error) {
	// Redelivering a payload we cannot parse will never help.
	h.logger.Warn("malformed webhook payload, acknowledging",
		zap.String("eventID", eventID), zap.Error(err))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func fromStripeWebhookSession(sess *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		AmountMinor:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	return out
}
