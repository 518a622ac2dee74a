package wishlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type bookFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (Page, error)
	GetWishlistIDs(ctx context.Context, userID uuid.UUID, params pagination.Params) (IDsPage, error)
	AddItem(ctx context.Context, userID, bookID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, bookID uuid.UUID) error
}

type service struct {
	repo  *Repository
	books bookFinder
}

// NewService builds a wishlist service with the required dependencies.
func NewService(repo *Repository, books bookFinder) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist repo is required")
	}
	if books == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book repo is required")
	}
	return &service{repo: repo, books: books}, nil
}

// GetWishlist returns the paginated wishlist for a user.
func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (Page, error) {
	if userID == uuid.Nil {
		return Page{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListItems(ctx, userID, params)
}

// GetWishlistIDs returns all saved book IDs for the user.
func (s *service) GetWishlistIDs(ctx context.Context, userID uuid.UUID, params pagination.Params) (IDsPage, error) {
	if userID == uuid.Nil {
		return IDsPage{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListItemIDs(ctx, userID, params)
}

// AddItem ensures the book exists and saves it. Repeats are a no-op.
func (s *service) AddItem(ctx context.Context, userID, bookID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if bookID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "book not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return s.repo.AddItem(ctx, userID, bookID)
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, bookID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.RemoveItem(ctx, userID, bookID)
}
