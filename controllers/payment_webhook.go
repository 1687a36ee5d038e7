package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/models"
	"marketplace-backend/services"
)

// StripeWebhookController receives and dispatches card-network webhook
// events. Signature verification happens before any parsing of the payload.
type StripeWebhookController struct {
	Stripe         *services.StripeService
	Settlement     *services.SettlementService
	ProcessTimeout time.Duration
	Logger         *zap.Logger
}

func NewStripeWebhookController(stripeSvc *services.StripeService, settlement *services.SettlementService, timeout time.Duration, log *zap.Logger) *StripeWebhookController {
	return &StripeWebhookController{
		Stripe:         stripeSvc,
		Settlement:     settlement,
		ProcessTimeout: timeout,
		Logger:         log,
	}
}

// HandleWebhook verifies and dispatches one Stripe event.
func (sc *StripeWebhookController) HandleWebhook(c *gin.Context) {
	event, err := sc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		sc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	sc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.ProcessTimeout)
	defer cancel()

	var appErr *apperrors.Error
	switch event.Type {
	case "payment_intent.succeeded":
		appErr = sc.handlePaymentIntent(ctx, event, models.PaymentStatusPaid)
	case "payment_intent.payment_failed":
		appErr = sc.handlePaymentIntent(ctx, event, models.PaymentStatusFailed)
	case "payment_intent.canceled":
		appErr = sc.handlePaymentIntent(ctx, event, models.PaymentStatusCanceled)
	case "checkout.session.completed":
		appErr = sc.handleCheckoutCompleted(ctx, event)
	default:
		sc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	if appErr != nil {
		sc.Logger.Error("Stripe webhook processing failed",
			zap.String("event_id", event.ID),
			zap.Error(appErr),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (sc *StripeWebhookController) handlePaymentIntent(ctx context.Context, event stripe.Event, paymentStatus string) *apperrors.Error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		sc.Logger.Error("Failed to unmarshal payment intent", zap.Error(err))
		// Malformed payloads will not parse on redelivery either.
		return nil
	}

	orderID, ok := sc.orderIDFromMetadata(pi.Metadata, event.ID)
	if !ok {
		return nil
	}

	eventToken := "stripe:" + event.ID
	if paymentStatus == models.PaymentStatusPaid {
		return sc.Settlement.HandlePaymentSucceeded(ctx, eventToken, orderID, pi.ID, pi.Amount)
	}
	return sc.Settlement.HandlePaymentFailed(ctx, eventToken, orderID, pi.ID, paymentStatus)
}

func (sc *StripeWebhookController) handleCheckoutCompleted(ctx context.Context, event stripe.Event) *apperrors.Error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		sc.Logger.Error("Failed to unmarshal checkout session", zap.Error(err))
		return nil
	}

	orderID, ok := sc.orderIDFromMetadata(sess.Metadata, event.ID)
	if !ok {
		return nil
	}

	eventToken := "stripe:" + event.ID
	return sc.Settlement.HandlePaymentSucceeded(ctx, eventToken, orderID, sess.ID, sess.AmountTotal)
}

func (sc *StripeWebhookController) orderIDFromMetadata(metadata map[string]string, eventID string) (uuid.UUID, bool) {
	raw := metadata["order_id"]
	if raw == "" {
		sc.Logger.Warn("Missing order_id metadata in Stripe event",
			zap.String("event_id", eventID),
		)
		return uuid.Nil, false
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		sc.Logger.Warn("Invalid order_id metadata in Stripe event",
			zap.String("event_id", eventID),
			zap.String("order_id", raw),
		)
		return uuid.Nil, false
	}
	return orderID, true
}
