package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/internal/cart"
	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox/payloads"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReserver moves listing copies between the available and reserved
// pools on behalf of an owning order.
type StockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID, requests []listings.ReservationRequest) error
	Release(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error
	Consume(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	MarkPaid(ctx context.Context, input TransitionInput) error
	MarkShipped(ctx context.Context, input TransitionInput) error
	MarkDelivered(ctx context.Context, input TransitionInput) error
	Cancel(ctx context.Context, input CancelInput) error
}

// CheckoutInput converts the caller's active cart into an order.
type CheckoutInput struct {
	UserID   uuid.UUID
	Currency string
}

// TransitionInput carries the actor context for a lifecycle transition.
type TransitionInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// CancelInput carries the actor context plus an optional reason.
type CancelInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	Reason    string
}

type service struct {
	repo    Repository
	carts   cart.Repository
	tx      txRunner
	outbox  outboxPublisher
	tracker StockReserver
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, carts cart.Repository, tx txRunner, outboxSvc outboxPublisher, tracker StockReserver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	return &service{
		repo:    repo,
		carts:   carts,
		tx:      tx,
		outbox:  outboxSvc,
		tracker: tracker,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		carts := s.carts.WithTx(tx)

		activeCart, err := carts.FindActiveByUser(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "no active cart to check out")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(activeCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		orderID := uuid.New()
		subtotal := 0
		items := make([]models.OrderItem, 0, len(activeCart.Items))
		requests := make([]listings.ReservationRequest, 0, len(activeCart.Items))
		for _, line := range activeCart.Items {
			listing := line.Listing
			if listing == nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart references a removed listing")
			}
			if !listing.IsActive {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart contains an inactive listing")
			}
			if listing.Kind != enums.ListingKindSale {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart contains a non-sale listing")
			}

			title := ""
			if listing.Book != nil {
				title = listing.Book.Title
			}
			lineTotal := listing.PriceCents * line.Quantity
			subtotal += lineTotal
			listingID := line.ListingID
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        orderID,
				ListingID:      &listingID,
				SellerID:       listing.SellerID,
				BookTitle:      title,
				Format:         string(listing.Format),
				UnitPriceCents: listing.PriceCents,
				Qty:            line.Quantity,
				TotalCents:     lineTotal,
			})
			requests = append(requests, listings.ReservationRequest{
				ListingID: line.ListingID,
				Quantity:  line.Quantity,
			})
		}

		if err := s.tracker.Reserve(ctx, tx, listings.OwnerTypeOrder, orderID, requests); err != nil {
			return err
		}

		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		cartID := activeCart.ID
		order := &models.Order{
			ID:            orderID,
			UserID:        input.UserID,
			CartID:        &cartID,
			OrderNumber:   number,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			SubtotalCents: subtotal,
			TotalCents:    subtotal,
			Currency:      currency,
			Items:         items,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		now := time.Now().UTC()
		if err := carts.UpdateStatus(ctx, activeCart.ID, enums.CartStatusConverted, &now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.UserID, enums.UserRoleUser),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				OrderNumber: order.OrderNumber,
				TotalCents:  order.TotalCents,
				ItemCount:   len(order.Items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != actorID && actorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByUser(ctx, userID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) MarkPaid(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input, enums.OrderStatusPending, enums.OrderStatusPaid, enums.EventOrderPaid,
		func(now time.Time, updates map[string]any) {
			updates["paid_at"] = now
			updates["payment_status"] = enums.PaymentStatusPaid
		}, nil)
}

func (s *service) MarkShipped(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input, enums.OrderStatusPaid, enums.OrderStatusShipped, enums.EventOrderShipped,
		func(now time.Time, updates map[string]any) {
			updates["shipped_at"] = now
		}, nil)
}

func (s *service) MarkDelivered(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input, enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.EventOrderDelivered,
		func(now time.Time, updates map[string]any) {
			updates["delivered_at"] = now
		},
		func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
			return s.tracker.Consume(ctx, tx, listings.OwnerTypeOrder, order.ID)
		})
}

func (s *service) transition(
	ctx context.Context,
	input TransitionInput,
	from, to enums.OrderStatus,
	eventType enums.OutboxEventType,
	applyUpdates func(now time.Time, updates map[string]any),
	afterUpdate func(ctx context.Context, tx *gorm.DB, order *models.Order) error,
) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order transitions require admin role")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Find(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != from {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order transition not allowed in current state")
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": to}
		applyUpdates(now, updates)
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if afterUpdate != nil {
			if err := afterUpdate(ctx, tx, order); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: from,
				ToStatus:   to,
				OccurredAt: now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Find(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.UserID != input.ActorID && input.ActorRole != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		switch order.Status {
		case enums.OrderStatusPending:
		case enums.OrderStatusPaid:
			if input.ActorRole != enums.UserRoleAdmin {
				return pkgerrors.New(pkgerrors.CodeForbidden, "paid orders can only be cancelled by an admin")
			}
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in current state")
		}

		refunded := order.Status == enums.OrderStatusPaid

		if err := s.tracker.Release(ctx, tx, listings.OwnerTypeOrder, order.ID); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if refunded {
			updates["payment_status"] = enums.PaymentStatusRefunded
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				CancelledAt: now,
				Refunded:    refunded,
				Reason:      input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func buildActor(userID uuid.UUID, role enums.UserRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: userID,
		Role:   role.String(),
	}
}
