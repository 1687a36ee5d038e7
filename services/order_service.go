package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/events"
	"marketplace-backend/models"
	"marketplace-backend/repository"
)

const (
	maxOrderItems = 50
	maxItemQty    = 100
)

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	ItemType  string    `json:"item_type"`
	// UnitPrice is accepted in the payload for client convenience but never
	// trusted; the catalog price always wins.
	UnitPrice int64 `json:"unit_price"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items" binding:"required,dive"`
	CustomerDetails *string           `json:"customer_details"`
	ShippingAddress *string           `json:"shipping_address"`
}

type OrderItemSummary struct {
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

type CreateOrderResponse struct {
	OrderID    uuid.UUID          `json:"order_id"`
	TotalPrice int64              `json:"total_price"`
	Items      []OrderItemSummary `json:"items"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// OrderService validates carts against the authoritative catalog and
// persists price-locked orders. It is the sole gate against client price
// tampering: every unit price is recomputed from the catalog on the server.
type OrderService struct {
	products     repository.ProductRepository
	orders       repository.OrderRepository
	producer     events.Publisher
	orderCeiling int64
	log          *zap.Logger
}

func NewOrderService(products repository.ProductRepository, orders repository.OrderRepository, producer events.Publisher, orderCeiling int64, log *zap.Logger) *OrderService {
	return &OrderService{
		products:     products,
		orders:       orders,
		producer:     producer,
		orderCeiling: orderCeiling,
		log:          log,
	}
}

// CreateOrder validates and persists an order for userID. All prices and
// vendor attributions come from a single batched catalog read.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*CreateOrderResponse, *apperrors.Error) {
	if len(req.Items) == 0 {
		return nil, apperrors.InvalidArgument("at least one item is required")
	}
	if len(req.Items) > maxOrderItems {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("cart exceeds %d items", maxOrderItems))
	}

	productIDs := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 || item.Quantity > maxItemQty {
			return nil, apperrors.InvalidArgument(fmt.Sprintf("quantity for product %s must be within [1,%d]", item.ProductID, maxItemQty))
		}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		s.log.Error("Catalog lookup failed", zap.Error(err))
		return nil, apperrors.Internal("failed to validate order", err)
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var total int64
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	summaries := make([]OrderItemSummary, 0, len(req.Items))

	for _, item := range req.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperrors.NotFound(fmt.Sprintf("product %s not found", item.ProductID))
		}
		if !product.Active {
			return nil, apperrors.FailedPrecondition(fmt.Sprintf("product %s is not available", item.ProductID))
		}
		if product.ItemType == models.ItemTypePhysical && item.Quantity > product.Stock {
			return nil, apperrors.FailedPrecondition(fmt.Sprintf("insufficient stock for product %s", item.ProductID))
		}

		// Catalog price is authoritative; any client-supplied price is
		// discarded here.
		lineTotal := product.Price * int64(item.Quantity)
		total += lineTotal

		orderItems = append(orderItems, models.OrderItem{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			ItemType:  product.ItemType,
		})
		summaries = append(summaries, OrderItemSummary{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	if total <= 0 {
		return nil, apperrors.InvalidArgument("order total must be positive")
	}
	if total > s.orderCeiling {
		return nil, apperrors.InvalidArgument("order total exceeds platform ceiling")
	}

	order := &models.Order{
		OrderNumber:     newOrderNumber(),
		UserID:          userID,
		TotalPrice:      total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddr:    req.ShippingAddress,
		CustomerDetails: req.CustomerDetails,
		Items:           orderItems,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.log.Error("Failed to persist order", zap.Error(err))
		return nil, apperrors.Internal("failed to create order", err)
	}

	s.publishCheckoutEvent(ctx, order)

	s.log.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("total_price", total),
	)

	return &CreateOrderResponse{
		OrderID:    order.ID,
		TotalPrice: total,
		Items:      summaries,
	}, nil
}

// GetUserOrders retrieves paginated orders for a specific user.
func (s *OrderService) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderListResponse, *apperrors.Error) {
	orders, total, err := s.orders.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.log.Error("Failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.Internal("failed to fetch orders", err)
	}

	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

// GetOrderByID retrieves a specific order owned by userID.
func (s *OrderService) GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, *apperrors.Error) {
	order, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		s.log.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.Internal("failed to fetch order", err)
	}
	return order, nil
}

func (s *OrderService) publishCheckoutEvent(ctx context.Context, order *models.Order) {
	if s.producer == nil {
		return
	}
	event := models.CheckoutEvent{
		OrderID:    order.ID.String(),
		UserID:     order.UserID.String(),
		TotalPrice: order.TotalPrice,
		Timestamp:  time.Now().UTC(),
	}
	payload, _ := json.Marshal(event)
	// Best-effort; order creation does not fail on event delivery.
	if err := s.producer.Publish(ctx, order.ID.String(), payload); err != nil {
		s.log.Warn("Failed to publish checkout event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), uuid.NewString()[:8])
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
