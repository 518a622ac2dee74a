package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// BookFilters describe the inputs supported by the catalog browse list.
type BookFilters struct {
	Query         string
	Author        string
	Category      *string
	Language      *string
	PublishedFrom *int
	PublishedTo   *int
}

// BookList wraps the paginated books plus the next page cursor.
type BookList struct {
	Books      []models.Book `json:"books"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Repository encapsulates catalog persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) FindByISBN(ctx context.Context, isbn13 string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn13 = ?", isbn13).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns a cursor-paginated page of books matching the filters.
// Title search is a case-insensitive substring match; author search
// matches any element of the authors array.
func (r *Repository) List(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Book{})

	if search := strings.TrimSpace(filters.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where(
			"(LOWER(title) LIKE ? OR EXISTS (SELECT 1 FROM unnest(authors) author WHERE LOWER(author) LIKE ?))",
			pattern, pattern,
		)
	}
	if author := strings.TrimSpace(filters.Author); author != "" {
		pattern := "%" + strings.ToLower(author) + "%"
		qb = qb.Where("EXISTS (SELECT 1 FROM unnest(authors) author WHERE LOWER(author) LIKE ?)", pattern)
	}
	if filters.Category != nil {
		qb = qb.Where("? = ANY(categories)", *filters.Category)
	}
	if filters.Language != nil {
		qb = qb.Where("language = ?", *filters.Language)
	}
	if filters.PublishedFrom != nil {
		qb = qb.Where("published_year >= ?", *filters.PublishedFrom)
	}
	if filters.PublishedTo != nil {
		qb = qb.Where("published_year <= ?", *filters.PublishedTo)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Book
	err = qb.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limitWithBuffer).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &BookList{}
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:pageSize]
	}
	list.Books = rows
	return list, nil
}
