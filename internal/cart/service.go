package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type listingFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// Service defines cart operations for the authenticated user.
type Service interface {
	GetActiveCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (*View, error)
	UpdateItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, listingID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// View is the cart as returned to callers, with line and cart totals
// computed from current listing prices. Prices freeze only at checkout.
type View struct {
	CartID        *uuid.UUID `json:"cart_id,omitempty"`
	Items         []ItemView `json:"items"`
	SubtotalCents int        `json:"subtotal_cents"`
}

// ItemView is one cart line joined with its listing snapshot.
type ItemView struct {
	ListingID      uuid.UUID `json:"listing_id"`
	BookTitle      string    `json:"book_title"`
	Format         string    `json:"format"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	TotalCents     int       `json:"total_cents"`
	Unavailable    bool      `json:"unavailable,omitempty"`
}

type service struct {
	repo     Repository
	listings listingFinder
	tx       txRunner
}

// NewService wires the cart service with its dependencies.
func NewService(repo Repository, listingsRepo listingFinder, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if listingsRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, listings: listingsRepo, tx: tx}, nil
}

func (s *service) GetActiveCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{Items: []ItemView{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	return buildView(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	listing, err := s.listings.Find(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load listing")
	}
	if !listing.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not active")
	}
	if listing.Kind != enums.ListingKindSale {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only sale listings can be added to a cart")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindActiveByUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
			}
			cart, err = repo.Create(ctx, &models.Cart{
				ID:     uuid.New(),
				UserID: userID,
				Status: enums.CartStatusActive,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create cart")
			}
		}

		existing, err := repo.FindItem(ctx, cart.ID, listingID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart item")
			}
			item := &models.CartItem{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ListingID: listingID,
				Quantity:  quantity,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to add cart item")
			}
			return nil
		}

		if err := repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetActiveCart(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.requireActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart item")
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cart item")
	}
	return s.GetActiveCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, listingID uuid.UUID) (*View, error) {
	cart, err := s.requireActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart item")
	}

	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to remove cart item")
	}
	return s.GetActiveCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear cart")
	}
	return nil
}

func (s *service) requireActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	return cart, nil
}

func buildView(cart *models.Cart) *View {
	view := &View{
		CartID: &cart.ID,
		Items:  make([]ItemView, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		line := ItemView{
			ListingID: item.ListingID,
			Quantity:  item.Quantity,
		}
		if item.Listing != nil {
			line.UnitPriceCents = item.Listing.PriceCents
			line.TotalCents = item.Listing.PriceCents * item.Quantity
			line.Format = string(item.Listing.Format)
			line.Unavailable = !item.Listing.IsActive
			if item.Listing.Book != nil {
				line.BookTitle = item.Listing.Book.Title
			}
			if item.Listing.IsActive {
				view.SubtotalCents += line.TotalCents
			}
		} else {
			line.Unavailable = true
		}
		view.Items = append(view.Items, line)
	}
	return view
}
