package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ItemTypeDigital  = "digital"
	ItemTypePhysical = "physical"
)

// Vendor is the authoritative owner record for catalog products. The
// commission rate is stored in basis points; 0 means the platform default
// applies.
type Vendor struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	CommissionRateBps int       `gorm:"not null;default:0" json:"commission_rate_bps"`
	Active            bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Product is the catalog record. Price is in minor currency units and is the
// only price source order validation is allowed to trust.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VendorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Name      string    `gorm:"not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"` // minor units
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	ItemType  string    `gorm:"type:varchar(20);not null;default:'physical'" json:"item_type"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
