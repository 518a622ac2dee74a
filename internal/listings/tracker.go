package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

// Owner types recorded against stock reservation ledger rows.
const (
	OwnerTypeOrder = "order"
	OwnerTypeLoan  = "loan"
)

// reservationKinds pins which listing kind each owner type may hold.
var reservationKinds = map[string]enums.ListingKind{
	OwnerTypeOrder: enums.ListingKindSale,
	OwnerTypeLoan:  enums.ListingKindLoan,
}

// ReservationRequest asks the tracker to hold copies of one listing.
type ReservationRequest struct {
	ListingID uuid.UUID
	Quantity  int
}

// Tracker moves copies between the available and reserved pools. Every
// hold is backed by a ledger row so release and consume stay idempotent.
// All mutations run inside the caller's transaction.
type Tracker struct{}

// NewTracker exposes the default availability tracker.
func NewTracker() Tracker {
	return Tracker{}
}

// Reserve decrements available copies and records a ledger row per listing.
// The guarded UPDATE refuses to oversell without taking row locks.
func (Tracker) Reserve(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation")
	}
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation owner required")
	}
	kind, ok := reservationKinds[ownerType]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown reservation owner type")
	}

	for _, req := range requests {
		if req.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		// Stock, active flag and kind are all checked inside the one
		// guarded UPDATE so a concurrent deactivation cannot slip a
		// reservation through after a stale read.
		res := tx.WithContext(ctx).Exec(`
			UPDATE listing_availability
			SET available_qty = available_qty - ?,
				reserved_qty = reserved_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE listing_id = ? AND available_qty >= ?
				AND EXISTS (
					SELECT 1 FROM listings l
					WHERE l.id = listing_availability.listing_id
						AND l.is_active AND l.kind = ?
				)
		`, req.Quantity, req.Quantity, req.ListingID, req.Quantity, kind)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve copies")
		}
		if res.RowsAffected == 0 {
			return reservationConflict(ctx, tx, req.ListingID, kind)
		}

		row := models.StockReservation{
			OwnerType: ownerType,
			OwnerID:   ownerID,
			ListingID: req.ListingID,
			Quantity:  req.Quantity,
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
		}
	}
	return nil
}

func reservationConflict(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, kind enums.ListingKind) error {
	var listing models.Listing
	err := tx.WithContext(ctx).
		Select("is_active", "kind").
		Where("id = ?", listingID).
		First(&listing).Error
	if err == nil && (!listing.IsActive || listing.Kind != kind) {
		return pkgerrors.New(pkgerrors.CodeConflict, "listing is no longer available")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "not enough copies available")
}

// Release returns an owner's held copies to the available pool. Ledger
// rows are claimed one by one, so a repeated release is a no-op.
func (Tracker) Release(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error {
	return settleReservations(ctx, tx, ownerType, ownerID, true)
}

// Consume retires an owner's held copies without returning them. Used
// when stock permanently leaves the pool: delivered orders, lost loans.
func (Tracker) Consume(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error {
	return settleReservations(ctx, tx, ownerType, ownerID, false)
}

func settleReservations(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID, restock bool) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation settlement")
	}

	var rows []models.StockReservation
	err := tx.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND released_at IS NULL", ownerType, ownerID).
		Find(&rows).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}

	for _, row := range rows {
		claimed := tx.WithContext(ctx).Exec(`
			UPDATE stock_reservations
			SET released_at = CURRENT_TIMESTAMP
			WHERE id = ? AND released_at IS NULL
		`, row.ID)
		if claimed.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, claimed.Error, "claim reservation")
		}
		if claimed.RowsAffected == 0 {
			// another settlement got here first
			continue
		}

		var res *gorm.DB
		if restock {
			res = tx.WithContext(ctx).Exec(`
				UPDATE listing_availability
				SET available_qty = available_qty + ?,
					reserved_qty = reserved_qty - ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE listing_id = ? AND reserved_qty >= ?
			`, row.Quantity, row.Quantity, row.ListingID, row.Quantity)
		} else {
			res = tx.WithContext(ctx).Exec(`
				UPDATE listing_availability
				SET reserved_qty = reserved_qty - ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE listing_id = ? AND reserved_qty >= ?
			`, row.Quantity, row.ListingID, row.Quantity)
		}
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "settle reserved copies")
		}
	}
	return nil
}

// Adjust moves the available pool up or down by delta, refusing to go negative.
func (Tracker) Adjust(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, delta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock adjustment")
	}
	if delta == 0 {
		return nil
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE listing_availability
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE listing_id = ? AND available_qty + ? >= 0
	`, delta, listingID, delta)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "stock adjustment would go negative")
	}
	return nil
}

// IsAvailable reports whether a listing currently has at least qty copies free.
func IsAvailable(ctx context.Context, db *gorm.DB, listingID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	var availability models.ListingAvailability
	err := db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&availability).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
	}
	return availability.AvailableQty >= qty, nil
}
