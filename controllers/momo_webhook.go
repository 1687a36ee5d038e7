package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/models"
	"marketplace-backend/services"
)

const momoSignatureHeader = "X-Webhook-Signature"

// momoPayload is the only shape the mobile-money gateway may deliver; the
// body is parsed strictly and only after the signature checks out.
type momoPayload struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"` // unix seconds
}

// MomoWebhookController receives payment notifications from the mobile-money
// gateway. Verification order: HMAC over the raw body, freshness window,
// then parse, then the idempotency guard inside the settlement service.
type MomoWebhookController struct {
	Settlement      *services.SettlementService
	Secret          []byte
	FreshnessWindow time.Duration
	ProcessTimeout  time.Duration
	Logger          *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewMomoWebhookController(settlement *services.SettlementService, secret string, freshness, timeout time.Duration, log *zap.Logger) *MomoWebhookController {
	return &MomoWebhookController{
		Settlement:      settlement,
		Secret:          []byte(secret),
		FreshnessWindow: freshness,
		ProcessTimeout:  timeout,
		Logger:          log,
		now:             time.Now,
	}
}

// HandleWebhook processes one gateway delivery. Duplicates return 200 with
// {received:true} without re-executing settlement; internal failures return
// 500 so the gateway redelivers with its own backoff.
func (mc *MomoWebhookController) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(momoSignatureHeader)
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing signature"})
		return
	}
	if !mc.verifySignature(body, signature) {
		mc.Logger.Warn("Mobile-money webhook signature verification failed",
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload momoPayload
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if payload.OrderID == "" || payload.TransactionID == "" || payload.Status == "" || payload.Timestamp == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	eventTime := time.Unix(payload.Timestamp, 0)
	if mc.now().Sub(eventTime) > mc.FreshnessWindow {
		mc.Logger.Warn("Stale mobile-money webhook rejected",
			zap.String("transaction_id", payload.TransactionID),
			zap.Time("event_time", eventTime),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "stale event"})
		return
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), mc.ProcessTimeout)
	defer cancel()

	eventToken := "momo:" + payload.TransactionID

	var appErr *apperrors.Error
	switch payload.Status {
	case "success":
		appErr = mc.Settlement.HandlePaymentSucceeded(ctx, eventToken, orderID, payload.TransactionID, payload.Amount)
	case "failed":
		appErr = mc.Settlement.HandlePaymentFailed(ctx, eventToken, orderID, payload.TransactionID, models.PaymentStatusFailed)
	case "canceled":
		appErr = mc.Settlement.HandlePaymentFailed(ctx, eventToken, orderID, payload.TransactionID, models.PaymentStatusCanceled)
	default:
		// Unknown statuses are acknowledged and ignored.
		mc.Logger.Info("Unhandled mobile-money status",
			zap.String("status", payload.Status),
			zap.String("transaction_id", payload.TransactionID),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if appErr != nil {
		mc.Logger.Error("Mobile-money webhook processing failed",
			zap.String("transaction_id", payload.TransactionID),
			zap.String("order_id", payload.OrderID),
			zap.Error(appErr),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (mc *MomoWebhookController) verifySignature(body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, mc.Secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
