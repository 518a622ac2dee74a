package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the order history list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderSummary exposes the aggregated fields returned in the order list.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   int64               `json:"order_number"`
	CreatedAt     time.Time           `json:"created_at"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalCents    int                 `json:"total_cents"`
	TotalItems    int                 `json:"total_items"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
