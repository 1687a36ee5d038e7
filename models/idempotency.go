package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	IdempotencyStatusProcessing = "processing"
	IdempotencyStatusCompleted  = "completed"
	IdempotencyStatusFailed     = "failed"
)

// Key namespaces keep webhook, transfer and withdrawal keys from colliding.
const (
	IdempotencyNamespaceWebhook    = "webhook"
	IdempotencyNamespaceTransfer   = "transfer"
	IdempotencyNamespaceWithdrawal = "withdrawal"
)

// IdempotencyRecord maps an external operation id to its processing state.
// The initial insert of a `processing` row is the claim that excludes
// concurrent duplicate execution. Records are never deleted so replays can
// be distinguished from first deliveries after the fact.
type IdempotencyRecord struct {
	Key       string     `gorm:"primaryKey;size:255" json:"key"`
	Status    string     `gorm:"type:varchar(20);not null" json:"status"`
	ResultRef *uuid.UUID `gorm:"type:uuid" json:"result_ref,omitempty"`
	LastError *string    `json:"last_error,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IdempotencyKey builds a namespaced key from an external identifier.
func IdempotencyKey(namespace, token string) string {
	return namespace + ":" + token
}
