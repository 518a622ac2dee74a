package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart was converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	OrderNumber int64     `json:"order_number"`
	TotalCents  int       `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every order lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its
// reserved copies are released back to the listings.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Refunded    bool      `json:"refunded"`
	Reason      string    `json:"reason,omitempty"`
}

// LoanReservedEvent signals a copy was put on hold for a borrower.
type LoanReservedEvent struct {
	LoanID    uuid.UUID `json:"loan_id"`
	UserID    uuid.UUID `json:"user_id"`
	ListingID uuid.UUID `json:"listing_id"`
}

// LoanCheckedOutEvent signals the borrower picked up the copy.
type LoanCheckedOutEvent struct {
	LoanID       uuid.UUID `json:"loan_id"`
	UserID       uuid.UUID `json:"user_id"`
	ListingID    uuid.UUID `json:"listing_id"`
	CheckedOutAt time.Time `json:"checked_out_at"`
	DueAt        time.Time `json:"due_at"`
}

// LoanReturnedEvent signals the copy came back, with any accrued fine.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	ListingID  uuid.UUID `json:"listing_id"`
	ReturnedAt time.Time `json:"returned_at"`
	FineAmount string    `json:"fine_amount"`
}

// LoanOverdueEvent is emitted when the sweep marks a loan past due.
type LoanOverdueEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
	UserID uuid.UUID `json:"user_id"`
	DueAt  time.Time `json:"due_at"`
}

// LoanLostEvent signals an overdue copy was written off.
type LoanLostEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	UserID     uuid.UUID `json:"user_id"`
	ListingID  uuid.UUID `json:"listing_id"`
	FineAmount string    `json:"fine_amount"`
}

// LoanCancelledEvent signals a reservation was released before pickup.
type LoanCancelledEvent struct {
	LoanID    uuid.UUID `json:"loan_id"`
	UserID    uuid.UUID `json:"user_id"`
	ListingID uuid.UUID `json:"listing_id"`
}
