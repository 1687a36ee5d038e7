package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds the balance for one account (vendor or user), in minor
// currency units. Invariant: Total == Available + Pending, Available >= 0.
// Rows are only ever mutated with relative deltas inside a transaction.
type Wallet struct {
	AccountID uuid.UUID `gorm:"type:uuid;primaryKey" json:"account_id"`
	Available int64     `gorm:"not null;default:0" json:"available"`
	Pending   int64     `gorm:"not null;default:0" json:"pending"`
	Total     int64     `gorm:"not null;default:0" json:"total"`
	Currency  string    `gorm:"type:varchar(10);not null" json:"currency"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	LedgerTypeOrderPayment = "order_payment"
	LedgerTypeTransfer     = "transfer"
	LedgerTypeWithdrawal   = "withdrawal"
)

const (
	LedgerStatusPending   = "pending"
	LedgerStatusCompleted = "completed"
	LedgerStatusFailed    = "failed"
)

// LedgerTransaction is the append-only audit record. Amount and parties are
// fixed once written; only Status may transition.
type LedgerTransaction struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        *uuid.UUID `gorm:"type:uuid;index" json:"order_id,omitempty"`
	AccountID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	CounterpartyID *uuid.UUID `gorm:"type:uuid" json:"counterparty_id,omitempty"`
	Type           string     `gorm:"type:varchar(20);not null" json:"type"`
	Amount         int64      `gorm:"not null" json:"amount"`
	PlatformFee    int64      `gorm:"not null;default:0" json:"platform_fee"`
	Status         string     `gorm:"type:varchar(20);not null" json:"status"`
	GatewayRef     *string    `json:"gateway_ref,omitempty"`
	Description    *string    `json:"description,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

const (
	PayoutStatusPending  = "pending"
	PayoutStatusApproved = "approved"
	PayoutStatusRejected = "rejected"
)

// Payout is a withdrawal request. While pending the amount sits in the
// wallet's pending bucket; approval completes the debit, rejection reverses
// it.
type Payout struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AccountID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Method         string     `gorm:"type:varchar(30);not null" json:"method"`
	AccountDetails string     `gorm:"not null" json:"account_details"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ApproverID     *uuid.UUID `gorm:"type:uuid" json:"approver_id,omitempty"`
	RejectReason   *string    `json:"reject_reason,omitempty"`
	LedgerTxID     uuid.UUID  `gorm:"type:uuid;not null" json:"ledger_tx_id"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
