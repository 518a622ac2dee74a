package models

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation is the ledger row backing a hold against a listing.
// A released reservation keeps its row so release stays idempotent.
type StockReservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerType  string     `gorm:"column:owner_type;not null;uniqueIndex:stock_reservations_owner_listing_key"`
	OwnerID    uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:stock_reservations_owner_listing_key"`
	ListingID  uuid.UUID  `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:stock_reservations_owner_listing_key;index:stock_reservations_listing_id_idx"`
	Quantity   int        `gorm:"column:quantity;not null"`
	ReleasedAt *time.Time `gorm:"column:released_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
