package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// Listing is an offer of copies of a book, either for sale or for loan.
type Listing struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID       uuid.UUID            `gorm:"column:book_id;type:uuid;not null;index:listings_book_id_idx"`
	SellerID     uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index:listings_seller_id_idx"`
	Kind         enums.ListingKind    `gorm:"column:kind;type:listing_kind;not null"`
	Format       enums.BookFormat     `gorm:"column:format;type:book_format;not null;default:'paperback'"`
	Condition    *string              `gorm:"column:condition"`
	PriceCents   int                  `gorm:"column:price_cents;not null;default:0"`
	DailyFee     decimal.Decimal      `gorm:"column:daily_fee;type:numeric(10,2);not null;default:0"`
	MaxDays      *int                 `gorm:"column:max_days"`
	IsActive     bool                 `gorm:"column:is_active;not null;default:true"`
	Availability *ListingAvailability `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	Book         *Book                `gorm:"foreignKey:BookID"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
