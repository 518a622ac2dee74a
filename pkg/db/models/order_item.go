package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem captures the snapshot of each listing line within an order.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ListingID      *uuid.UUID `gorm:"column:listing_id;type:uuid"`
	SellerID       uuid.UUID  `gorm:"column:seller_id;type:uuid;not null"`
	BookTitle      string     `gorm:"column:book_title;not null"`
	Format         string     `gorm:"column:format;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
