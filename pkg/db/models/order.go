package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// Order is the purchase produced from a converted cart. Per-item
// prices are frozen into OrderItem rows at checkout time.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:orders_user_id_idx"`
	CartID        *uuid.UUID          `gorm:"column:cart_id;type:uuid"`
	OrderNumber   int64               `gorm:"column:order_number;not null;uniqueIndex"`
	Status        enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	SubtotalCents int                 `gorm:"column:subtotal_cents;not null"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	Currency      string              `gorm:"column:currency;not null;default:'USD'"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	ShippedAt     *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt   *time.Time          `gorm:"column:delivered_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
