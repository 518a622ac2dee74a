package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	dbpkg "github.com/bookmarket-io/bookmarket-backend/pkg/db"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type suggestionStore interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Suggestion, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Service defines catalog management and browsing operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Book, error)
	CreateFromSuggestion(ctx context.Context, input FromSuggestionInput) (*models.Book, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Book, error)
	Update(ctx context.Context, input UpdateInput) (*models.Book, error)
	List(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error)
}

// CreateInput carries the fields for a new catalog entry.
type CreateInput struct {
	ActorID       uuid.UUID
	ActorRole     enums.UserRole
	Title         string
	Subtitle      *string
	Authors       []string
	Description   *string
	ISBN13        *string
	Language      string
	PublishedYear *int
	Categories    []string
	CoverURL      *string
}

// FromSuggestionInput promotes a pending community suggestion into the catalog.
type FromSuggestionInput struct {
	SuggestionID uuid.UUID
	ActorID      uuid.UUID
	ActorRole    enums.UserRole
	ISBN13       *string
	Categories   []string
}

// UpdateInput carries the mutable catalog fields. Nil means unchanged.
type UpdateInput struct {
	BookID        uuid.UUID
	ActorID       uuid.UUID
	ActorRole     enums.UserRole
	Title         *string
	Subtitle      *string
	Authors       []string
	Description   *string
	Language      *string
	PublishedYear *int
	Categories    []string
	CoverURL      *string
}

type service struct {
	repo        *Repository
	suggestions suggestionStore
	tx          txRunner
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo *Repository, suggestions suggestionStore, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if suggestions == nil {
		return nil, fmt.Errorf("suggestions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, suggestions: suggestions, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Book, error) {
	if err := requireAdmin(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if len(input.Authors) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one author required")
	}
	language := input.Language
	if language == "" {
		language = "en"
	}

	book := &models.Book{
		ID:            uuid.New(),
		Title:         title,
		Subtitle:      input.Subtitle,
		Authors:       pq.StringArray(input.Authors),
		Description:   input.Description,
		ISBN13:        input.ISBN13,
		Language:      language,
		PublishedYear: input.PublishedYear,
		Categories:    pq.StringArray(normalizeCategories(input.Categories)),
		CoverURL:      input.CoverURL,
	}
	created, err := s.repo.Create(ctx, book)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a book with this ISBN already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}
	return created, nil
}

// CreateFromSuggestion turns a pending suggestion into a catalog entry and
// accepts it in the same transaction.
func (s *service) CreateFromSuggestion(ctx context.Context, input FromSuggestionInput) (*models.Book, error) {
	if err := requireAdmin(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	if input.SuggestionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "suggestion id required")
	}

	var created *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		suggestion, err := s.suggestions.Find(ctx, input.SuggestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "suggestion not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suggestion")
		}
		if suggestion.Status == enums.SuggestionStatusRejected {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "suggestion was rejected")
		}

		book := &models.Book{
			ID:         uuid.New(),
			Title:      suggestion.Title,
			Authors:    pq.StringArray{suggestion.Author},
			ISBN13:     input.ISBN13,
			Language:   "en",
			Categories: pq.StringArray(normalizeCategories(input.Categories)),
		}
		if _, err := repo.Create(ctx, book); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a book with this ISBN already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
		}

		if suggestion.Status == enums.SuggestionStatusPending {
			if err := s.suggestions.Update(ctx, suggestion.ID, map[string]any{
				"status": enums.SuggestionStatusFulfilled,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept suggestion")
			}
		}

		created = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Book, error) {
	if err := requireAdmin(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Subtitle != nil {
		updates["subtitle"] = *input.Subtitle
	}
	if input.Authors != nil {
		if len(input.Authors) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one author required")
		}
		updates["authors"] = pq.StringArray(input.Authors)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Language != nil {
		updates["language"] = *input.Language
	}
	if input.PublishedYear != nil {
		updates["published_year"] = *input.PublishedYear
	}
	if input.Categories != nil {
		updates["categories"] = pq.StringArray(normalizeCategories(input.Categories))
	}
	if input.CoverURL != nil {
		updates["cover_url"] = *input.CoverURL
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if _, err := s.Get(ctx, input.BookID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, input.BookID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}
	return s.Get(ctx, input.BookID)
}

func (s *service) List(ctx context.Context, params pagination.Params, filters BookFilters) (*BookList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	return list, nil
}

func requireAdmin(actorID uuid.UUID, role enums.UserRole) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "catalog management requires admin role")
	}
	return nil
}

func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := map[string]bool{}
	for _, category := range categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" || seen[category] {
			continue
		}
		seen[category] = true
		out = append(out, category)
	}
	return out
}
