package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/services"
)

type paymentInitiator interface {
	CreatePaymentIntent(amount int64, currency, orderID, userID string) (*services.PaymentIntentResult, error)
}

type orderReader interface {
	GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, *apperrors.Error)
}

// PaymentController opens card payments for pending orders. The amount and
// the order/user metadata the webhook later routes on come from the stored
// order, never from the request.
type PaymentController struct {
	orders   orderReader
	gateway  paymentInitiator
	currency string
	log      *zap.Logger
}

func NewPaymentController(orders orderReader, gateway paymentInitiator, currency string, log *zap.Logger) *PaymentController {
	return &PaymentController{
		orders:   orders,
		gateway:  gateway,
		currency: currency,
		log:      log,
	}
}

// InitiatePayment opens a payment intent for an order owned by the caller.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, appErr := pc.orders.GetOrderByID(c.Request.Context(), userID, orderID)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "order is not awaiting payment"})
		return
	}

	result, err := pc.gateway.CreatePaymentIntent(order.TotalPrice, pc.currency, order.ID.String(), userID.String())
	if err != nil {
		pc.log.Error("Failed to create payment intent",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		return
	}

	pc.log.Info("Payment initiated",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_intent_id", result.ID),
	)
	c.JSON(http.StatusOK, result)
}
