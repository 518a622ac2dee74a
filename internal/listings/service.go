package listings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// DefaultLoanMaxDays caps loan terms for listings that do not set one.
const DefaultLoanMaxDays = 365

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines listing-level operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, input UpdateInput) (*models.Listing, error)
	SetActive(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, listingID uuid.UUID, active bool) error
	AdjustStock(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, listingID uuid.UUID, delta int) error
	ListByBook(ctx context.Context, bookID uuid.UUID, params pagination.Params) (*ListingPage, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListingPage, error)
}

// CreateInput carries the fields for a new listing.
type CreateInput struct {
	BookID     uuid.UUID
	SellerID   uuid.UUID
	Kind       enums.ListingKind
	Format     enums.BookFormat
	Condition  *string
	PriceCents int
	DailyFee   decimal.Decimal
	MaxDays    *int
	Quantity   int
}

// UpdateInput carries the mutable listing fields. Nil means unchanged.
type UpdateInput struct {
	ListingID  uuid.UUID
	ActorID    uuid.UUID
	ActorRole  enums.UserRole
	PriceCents *int
	DailyFee   *decimal.Decimal
	MaxDays    *int
	Condition  *string
}

type service struct {
	repo    Repository
	tx      txRunner
	tracker Tracker
}

// NewService builds a listings service with the required dependencies.
func NewService(repo Repository, tx txRunner, tracker Tracker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, tracker: tracker}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing kind must be sale or loan")
	}
	if input.Format != "" && !input.Format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid book format")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	listing := &models.Listing{
		BookID:    input.BookID,
		SellerID:  input.SellerID,
		Kind:      input.Kind,
		Format:    input.Format,
		Condition: input.Condition,
		IsActive:  true,
	}
	if listing.Format == "" {
		listing.Format = enums.BookFormatPaperback
	}

	switch input.Kind {
	case enums.ListingKindSale:
		if input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale listings require a positive price")
		}
		listing.PriceCents = input.PriceCents
	case enums.ListingKindLoan:
		if input.DailyFee.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily fee must not be negative")
		}
		listing.DailyFee = input.DailyFee
		maxDays := DefaultLoanMaxDays
		if input.MaxDays != nil {
			if *input.MaxDays <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "max days must be positive")
			}
			maxDays = *input.MaxDays
		}
		listing.MaxDays = &maxDays
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, listing)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		availability := &models.ListingAvailability{
			ListingID:    created.ID,
			AvailableQty: input.Quantity,
		}
		if err := repo.CreateAvailability(ctx, availability); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create availability")
		}
		created.Availability = availability
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	listing, err := s.repo.Find(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Listing, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Listing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindForUpdate(ctx, input.ListingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if err := requireOwnership(listing.SellerID, input.ActorID, input.ActorRole); err != nil {
			return err
		}

		updates := map[string]any{}
		if input.PriceCents != nil {
			if listing.Kind != enums.ListingKindSale {
				return pkgerrors.New(pkgerrors.CodeValidation, "price applies to sale listings only")
			}
			if *input.PriceCents <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
			}
			updates["price_cents"] = *input.PriceCents
		}
		if input.DailyFee != nil {
			if listing.Kind != enums.ListingKindLoan {
				return pkgerrors.New(pkgerrors.CodeValidation, "daily fee applies to loan listings only")
			}
			if input.DailyFee.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "daily fee must not be negative")
			}
			updates["daily_fee"] = *input.DailyFee
		}
		if input.MaxDays != nil {
			if listing.Kind != enums.ListingKindLoan {
				return pkgerrors.New(pkgerrors.CodeValidation, "max days applies to loan listings only")
			}
			if *input.MaxDays <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "max days must be positive")
			}
			updates["max_days"] = *input.MaxDays
		}
		if input.Condition != nil {
			updates["condition"] = *input.Condition
		}
		if len(updates) == 0 {
			updated = listing
			return nil
		}

		if err := repo.Update(ctx, listing.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
		}
		updated, err = repo.FindForUpdate(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) SetActive(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, listingID uuid.UUID, active bool) error {
	if listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindForUpdate(ctx, listingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if err := requireOwnership(listing.SellerID, actorID, actorRole); err != nil {
			return err
		}
		if listing.IsActive == active {
			return nil
		}
		if err := repo.Update(ctx, listing.ID, map[string]any{"is_active": active}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing active flag")
		}
		return nil
	})
}

func (s *service) AdjustStock(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, listingID uuid.UUID, delta int) error {
	if listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if delta == 0 {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindForUpdate(ctx, listingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if err := requireOwnership(listing.SellerID, actorID, actorRole); err != nil {
			return err
		}
		return s.tracker.Adjust(ctx, tx, listing.ID, delta)
	})
}

func (s *service) ListByBook(ctx context.Context, bookID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	if bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	page, err := s.repo.ListByBook(ctx, bookID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list book listings")
	}
	return page, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	page, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller listings")
	}
	return page, nil
}

func requireOwnership(sellerID, actorID uuid.UUID, actorRole enums.UserRole) error {
	if actorRole == enums.UserRoleAdmin {
		return nil
	}
	if sellerID != actorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to user")
	}
	return nil
}
