package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusCanceled = "canceled"
	PaymentStatusRefunded = "refunded"
)

type Order struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string    `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TotalPrice      int64     `gorm:"not null" json:"total_price"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus   string    `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	GatewayRef      *string   `gorm:"index" json:"gateway_ref,omitempty"`
	ShippingAddr    *string   `json:"shipping_address,omitempty"`
	CustomerDetails *string   `json:"customer_details,omitempty"`
	PaidAt          *time.Time
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Items           []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem prices are server-computed at creation time and immutable once
// the order is paid. VendorID is write-once here but revalidated against the
// product record at settlement time.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	VendorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	ItemType  string    `gorm:"type:varchar(20);not null" json:"item_type"`
}
