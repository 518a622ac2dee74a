package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one listing line inside a cart. Adding the same listing
// again merges into the existing row, enforced by the unique pair key.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:cart_items_cart_listing_key"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:cart_items_cart_listing_key"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Listing   *Listing  `gorm:"foreignKey:ListingID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
