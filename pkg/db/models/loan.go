package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// Loan tracks a single borrowed copy from reservation to return.
// DailyFee and MaxDays are frozen from the listing at reservation time.
type Loan struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index:loans_user_id_idx"`
	ListingID    uuid.UUID        `gorm:"column:listing_id;type:uuid;not null;index:loans_listing_id_idx"`
	Status       enums.LoanStatus `gorm:"column:status;type:loan_status;not null;default:'reserved'"`
	DailyFee     decimal.Decimal  `gorm:"column:daily_fee;type:numeric(10,2);not null"`
	MaxDays      int              `gorm:"column:max_days;not null"`
	Days         int              `gorm:"column:days;not null"`
	ReservedAt   time.Time        `gorm:"column:reserved_at;not null"`
	CheckedOutAt *time.Time       `gorm:"column:checked_out_at"`
	DueAt        *time.Time       `gorm:"column:due_at"`
	ReturnedAt   *time.Time       `gorm:"column:returned_at"`
	FineAmount   decimal.Decimal  `gorm:"column:fine_amount;type:numeric(10,2);not null;default:0"`
	Listing      *Listing         `gorm:"foreignKey:ListingID"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
