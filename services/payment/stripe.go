package payment

import (
	"context"
	"fmt"
	"time"

	"slotbook/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

// Metadata keys attached to every checkout session.
const (
	MetaResourceID = "resource_id"
	MetaHolder     = "holder_identity"
	MetaStart      = "start_time"
	MetaEnd        = "end_time"
	MetaHoldID     = "hold_id"
)

// StripeGateway implements CheckoutGateway on Stripe Checkout. The global
// stripe.Key is set in main.
type StripeGateway struct {
	logger     *zap.Logger
	retry      RetryPolicy
	successURL string
	cancelURL  string
}

func NewStripeGateway(logger *zap.Logger, retry RetryPolicy, successURL, cancelURL string) *StripeGateway {
	return &StripeGateway{
		logger:     logger,
		retry:      retry,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, in CreateSessionInput) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		// Bank-transfer-style methods settle asynchronously; their
		// confirmation arrives via async payment webhooks.
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "us_bank_account"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(in.HolderIdentity),
		SuccessURL:    stripe.String(g.successURL),
		CancelURL:     stripe.String(g.cancelURL),
		ExpiresAt:     stripe.Int64(in.ExpiresAt.Unix()),
	}
	params.Context = ctx
	params.AddMetadata(MetaResourceID, in.ResourceID)
	params.AddMetadata(MetaHolder, in.HolderIdentity)
	params.AddMetadata(MetaStart, in.StartTime.UTC().Format(time.RFC3339))
	params.AddMetadata(MetaEnd, in.EndTime.UTC().Format(time.RFC3339))
	params.AddMetadata(MetaHoldID, in.HoldID)

	var sess *stripe.CheckoutSession
	err := g.retry.Do(ctx, func() error {
		var err error
		sess, err = session.New(params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session create failed: %w", err)
	}

	g.logger.Info("created checkout session",
		zap.String("sessionID", sess.ID),
		zap.String("resourceID", in.ResourceID))

	return fromStripeSession(sess), nil
}

func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	err := g.retry.Do(ctx, func() error {
		_, err := session.Expire(sessionID, params)
		return err
	})
	if err != nil {
		return fmt.Errorf("stripe checkout session expire failed: %w", err)
	}
	return nil
}

func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	var sess *stripe.CheckoutSession
	err := g.retry.Do(ctx, func() error {
		var err error
		sess, err = session.Get(sessionID, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session get failed: %w", err)
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *models.CheckoutSession {
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
