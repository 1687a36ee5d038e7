package models

import "time"

// VendorCredit is one vendor's share of a settled order.
type VendorCredit struct {
	VendorID    string `json:"vendor_id"`
	Amount      int64  `json:"amount"`
	PlatformFee int64  `json:"platform_fee"`
}

// PaymentEvent is published after a settlement commits (Kafka + SNS,
// best-effort). Downstream consumers: notifications, fulfillment.
type PaymentEvent struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"order_id"`
	UserID     string         `json:"user_id"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	GatewayRef string         `json:"gateway_ref,omitempty"`
	Vendors    []VendorCredit `json:"vendors,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// CheckoutEvent is published when an order is created.
type CheckoutEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	TotalPrice int64     `json:"total_price"`
	Timestamp  time.Time `json:"timestamp"`
}
