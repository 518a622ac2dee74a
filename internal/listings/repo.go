package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for listings and their availability rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListByBook(ctx context.Context, bookID uuid.UUID, params pagination.Params) (*ListingPage, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListingPage, error)
	CreateAvailability(ctx context.Context, availability *models.ListingAvailability) error
	FindAvailability(ctx context.Context, listingID uuid.UUID) (*models.ListingAvailability, error)
}

// ListingPage wraps a paginated set of listings plus the next page cursor.
type ListingPage struct {
	Listings   []models.Listing `json:"listings"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Availability").
		Preload("Book").
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Availability").
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByBook(ctx context.Context, bookID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	query := r.db.WithContext(ctx).
		Preload("Availability").
		Where("book_id = ? AND is_active = ?", bookID, true)
	return r.paginate(query, params)
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	query := r.db.WithContext(ctx).
		Preload("Availability").
		Where("seller_id = ?", sellerID)
	return r.paginate(query, params)
}

func (r *repository) paginate(query *gorm.DB, params pagination.Params) (*ListingPage, error) {
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
	var rows []models.Listing
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &ListingPage{}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	page.Listings = rows
	return page, nil
}

func (r *repository) CreateAvailability(ctx context.Context, availability *models.ListingAvailability) error {
	return r.db.WithContext(ctx).Create(availability).Error
}

func (r *repository) FindAvailability(ctx context.Context, listingID uuid.UUID) (*models.ListingAvailability, error) {
	var availability models.ListingAvailability
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&availability).Error
	if err != nil {
		return nil, err
	}
	return &availability, nil
}
