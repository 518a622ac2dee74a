package wishlist

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a wishlist entry and ignores duplicates.
func (r *Repository) AddItem(ctx context.Context, userID, bookID uuid.UUID) error {
	if userID == uuid.Nil || bookID == uuid.Nil {
		return gorm.ErrInvalidValue
	}

	return r.db.WithContext(ctx).
		Exec(`INSERT INTO wishlist_items (user_id, book_id) VALUES (?, ?) ON CONFLICT (user_id, book_id) DO NOTHING`, userID, bookID).
		Error
}

// RemoveItem deletes the user-book entry if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, bookID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&models.WishlistItem{}).
		Error
}

// ListItems returns a paginated list of saved books for a user.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, params pagination.Params) (Page, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return Page{}, err
	}

	query := r.db.WithContext(ctx).
		Table("wishlist_items wi").
		Select(strings.Join([]string{
			"wi.id AS wishlist_id",
			"wi.created_at AS wishlist_created_at",
			"b.id AS book_id",
			"b.title",
			"b.subtitle",
			"b.authors",
			"b.isbn13",
			"b.published_year",
			"b.cover_url",
		}, ", ")).
		Joins("JOIN books b ON b.id = wi.book_id").
		Where("wi.user_id = ?", userID)

	if decodedCursor != nil {
		query = query.Where("(wi.created_at < ?) OR (wi.created_at = ? AND wi.id < ?)", decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	query = query.Order("wi.created_at DESC").Order("wi.id DESC").Limit(limitWithBuffer)

	var records []wishlistBookRecord
	if err := query.Scan(&records).Error; err != nil {
		return Page{}, err
	}

	page := Page{}
	if len(records) > normalizedLimit {
		records = records[:normalizedLimit]
		last := records[len(records)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.WishlistCreatedAt,
			ID:        last.WishlistID,
		})
	}

	page.Items = make([]ItemDTO, 0, len(records))
	for _, record := range records {
		page.Items = append(page.Items, record.toDTO())
	}
	return page, nil
}

// ListItemIDs returns only the book IDs a user has saved.
func (r *Repository) ListItemIDs(ctx context.Context, userID uuid.UUID, params pagination.Params) (IDsPage, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return IDsPage{}, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Select("id AS wishlist_id", "created_at AS wishlist_created_at", "book_id").
		Where("user_id = ?", userID)

	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer)

	type idRecord struct {
		WishlistID        uuid.UUID
		WishlistCreatedAt time.Time
		BookID            uuid.UUID
	}

	var records []idRecord
	if err := query.Scan(&records).Error; err != nil {
		return IDsPage{}, err
	}

	page := IDsPage{}
	if len(records) > normalizedLimit {
		records = records[:normalizedLimit]
		last := records[len(records)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.WishlistCreatedAt,
			ID:        last.WishlistID,
		})
	}

	page.BookIDs = make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		page.BookIDs = append(page.BookIDs, record.BookID)
	}
	return page, nil
}

type wishlistBookRecord struct {
	WishlistID        uuid.UUID      `gorm:"column:wishlist_id"`
	WishlistCreatedAt time.Time      `gorm:"column:wishlist_created_at"`
	BookID            uuid.UUID      `gorm:"column:book_id"`
	Title             string         `gorm:"column:title"`
	Subtitle          sql.NullString `gorm:"column:subtitle"`
	Authors           pq.StringArray `gorm:"column:authors;type:text[]"`
	ISBN13            sql.NullString `gorm:"column:isbn13"`
	PublishedYear     sql.NullInt64  `gorm:"column:published_year"`
	CoverURL          sql.NullString `gorm:"column:cover_url"`
}

func (r wishlistBookRecord) toDTO() ItemDTO {
	return ItemDTO{
		Book: BookSummary{
			ID:            r.BookID,
			Title:         r.Title,
			Subtitle:      nullStringPtr(r.Subtitle),
			Authors:       r.Authors,
			ISBN13:        nullStringPtr(r.ISBN13),
			PublishedYear: nullIntPtr(r.PublishedYear),
			CoverURL:      nullStringPtr(r.CoverURL),
		},
		SavedAt: r.WishlistCreatedAt,
	}
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullIntPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}
