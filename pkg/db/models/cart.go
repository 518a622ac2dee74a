package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// Cart is the single active basket a user builds before checkout.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index:carts_user_id_idx"`
	Status      enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
