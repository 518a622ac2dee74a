package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/internal/orders"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox/payloads"
)

const orderExpirationDays = 7

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error
}

// OrderExpirationJobParams configure the stale order sweep.
type OrderExpirationJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository orders.Repository
	Tracker    stockReleaser
	Outbox     outboxEmitter
	Expiration time.Duration
}

// NewOrderExpirationJob builds the cron job that cancels orders left
// unpaid past the expiration window and returns their copies to stock.
func NewOrderExpirationJob(params OrderExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("stock tracker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	expiration := params.Expiration
	if expiration <= 0 {
		expiration = orderExpirationDays * 24 * time.Hour
	}
	return &orderExpirationJob{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repository,
		tracker:    params.Tracker,
		outbox:     params.Outbox,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

type orderExpirationJob struct {
	logg       *logger.Logger
	db         txRunner
	repo       orders.Repository
	tracker    stockReleaser
	outbox     outboxEmitter
	expiration time.Duration
	now        func() time.Time
}

func (j *orderExpirationJob) Name() string { return "order-expiration" }

func (j *orderExpirationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.expiration)
	stale, err := j.repo.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	expired := 0
	var errs []error
	for _, order := range stale {
		done, err := j.expireOrder(ctx, order)
		if err != nil {
			// One stuck order must not block the rest of the sweep.
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if done {
			expired++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "order expiration sweep complete")
	return multierr.Combine(errs...)
}

func (j *orderExpirationJob) expireOrder(ctx context.Context, order models.Order) (bool, error) {
	expired := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)

		// Re-check under the transaction; payment may have landed since the scan.
		current, err := repo.Find(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusPending {
			return nil
		}

		if err := j.tracker.Release(ctx, tx, listings.OwnerTypeOrder, current.ID); err != nil {
			return err
		}

		now := j.now().UTC()
		if err := repo.Update(ctx, current.ID, map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": enums.PaymentStatusFailed,
			"cancelled_at":   now,
		}); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:     current.ID,
				UserID:      current.UserID,
				CancelledAt: now,
				Refunded:    false,
				Reason:      "payment window expired",
			},
		}
		if err := j.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}
