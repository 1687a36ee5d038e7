package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/services"
)

type fakeOrderReader struct {
	order *models.Order
}

func (f *fakeOrderReader) GetOrderByID(_ context.Context, userID, orderID uuid.UUID) (*models.Order, *apperrors.Error) {
	if f.order == nil || f.order.ID != orderID || f.order.UserID != userID {
		return nil, apperrors.NotFound("order not found")
	}
	return f.order, nil
}

type fakeGateway struct {
	amount   int64
	currency string
	orderID  string
	userID   string
	err      error
}

func (f *fakeGateway) CreatePaymentIntent(amount int64, currency, orderID, userID string) (*services.PaymentIntentResult, error) {
	f.amount = amount
	f.currency = currency
	f.orderID = orderID
	f.userID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &services.PaymentIntentResult{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

func newPaymentRouter(orders orderReader, gateway paymentInitiator, userID uuid.UUID) *gin.Engine {
	pc := NewPaymentController(orders, gateway, "kes", zap.NewNop())
	r := gin.New()
	r.POST("/orders/:id/pay", func(c *gin.Context) {
		c.Set(middleware.UserKey, userID.String())
	}, pc.InitiatePayment)
	return r
}

func pendingOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		TotalPrice:    15000,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
}

func TestInitiatePaymentTagsIntentWithOrderMetadata(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	gateway := &fakeGateway{}
	r := newPaymentRouter(&fakeOrderReader{order: order}, gateway, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/pay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pi_test_secret")

	// The amount and the metadata the webhook routes on come from the
	// stored order.
	assert.Equal(t, order.TotalPrice, gateway.amount)
	assert.Equal(t, "kes", gateway.currency)
	assert.Equal(t, order.ID.String(), gateway.orderID)
	assert.Equal(t, userID.String(), gateway.userID)
}

func TestInitiatePaymentRejectsSettledOrder(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.PaymentStatus = models.PaymentStatusPaid
	gateway := &fakeGateway{}
	r := newPaymentRouter(&fakeOrderReader{order: order}, gateway, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/pay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Empty(t, gateway.orderID)
}

func TestInitiatePaymentScopedToOwner(t *testing.T) {
	owner := uuid.New()
	order := pendingOrder(owner)
	r := newPaymentRouter(&fakeOrderReader{order: order}, &fakeGateway{}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/pay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInitiatePaymentInvalidOrderID(t *testing.T) {
	r := newPaymentRouter(&fakeOrderReader{}, &fakeGateway{}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/not-a-uuid/pay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	gateway := &fakeGateway{err: errors.New("gateway unreachable")}
	r := newPaymentRouter(&fakeOrderReader{order: order}, gateway, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID.String()+"/pay", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
