package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for loans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, loan *models.Loan) (*models.Loan, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	FindActiveByUserAndListing(ctx context.Context, userID, listingID uuid.UUID) (*models.Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.LoanStatus) (*LoanPage, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error)
}

// LoanPage wraps a paginated set of loans plus the next page cursor.
type LoanPage struct {
	Loans      []models.Loan `json:"loans"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a loans repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	if err := r.db.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Listing.Book").
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) FindActiveByUserAndListing(ctx context.Context, userID, listingID uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND listing_id = ? AND status IN ?", userID, listingID, []enums.LoanStatus{
			enums.LoanStatusReserved,
			enums.LoanStatusCheckedOut,
			enums.LoanStatusOverdue,
		}).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.LoanStatus) (*LoanPage, error) {
	query := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Listing.Book").
		Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Loan
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &LoanPage{}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	page.Loans = rows
	return page, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at < ?", enums.LoanStatusCheckedOut, cutoff).
		Order("due_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
