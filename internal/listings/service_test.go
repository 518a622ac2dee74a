package listings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type stubListingsRepo struct {
	listing      *models.Listing
	availability *models.ListingAvailability
	updates      map[string]any
	createErr    error
}

func (s *stubListingsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubListingsRepo) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	s.listing = listing
	return listing, nil
}

func (s *stubListingsRepo) Find(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.listing, nil
}

func (s *stubListingsRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.Find(ctx, id)
}

func (s *stubListingsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.listing == nil || s.listing.ID != id {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	for key, value := range updates {
		switch key {
		case "price_cents":
			if v, ok := value.(int); ok {
				s.listing.PriceCents = v
			}
		case "is_active":
			if v, ok := value.(bool); ok {
				s.listing.IsActive = v
			}
		case "max_days":
			if v, ok := value.(int); ok {
				s.listing.MaxDays = &v
			}
		}
	}
	return nil
}

func (s *stubListingsRepo) ListByBook(ctx context.Context, bookID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	return &ListingPage{}, nil
}

func (s *stubListingsRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListingPage, error) {
	return &ListingPage{}, nil
}

func (s *stubListingsRepo) CreateAvailability(ctx context.Context, availability *models.ListingAvailability) error {
	s.availability = availability
	return nil
}

func (s *stubListingsRepo) FindAvailability(ctx context.Context, listingID uuid.UUID) (*models.ListingAvailability, error) {
	if s.availability == nil || s.availability.ListingID != listingID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.availability, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code(), err)
	}
}

func TestCreateSaleListing(t *testing.T) {
	repo := &stubListingsRepo{}
	svc, err := NewService(repo, stubTxRunner{}, NewTracker())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	listing, err := svc.Create(context.Background(), CreateInput{
		BookID:     uuid.New(),
		SellerID:   uuid.New(),
		Kind:       enums.ListingKindSale,
		PriceCents: 1299,
		Quantity:   5,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.Kind != enums.ListingKindSale {
		t.Fatalf("expected sale listing, got %s", listing.Kind)
	}
	if listing.Format != enums.BookFormatPaperback {
		t.Fatalf("expected default paperback format, got %s", listing.Format)
	}
	if repo.availability == nil || repo.availability.AvailableQty != 5 {
		t.Fatalf("expected availability row with 5 copies, got %+v", repo.availability)
	}
}

func TestCreateSaleListingRequiresPrice(t *testing.T) {
	svc, _ := NewService(&stubListingsRepo{}, stubTxRunner{}, NewTracker())

	_, err := svc.Create(context.Background(), CreateInput{
		BookID:   uuid.New(),
		SellerID: uuid.New(),
		Kind:     enums.ListingKindSale,
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateLoanListingDefaultsMaxDays(t *testing.T) {
	repo := &stubListingsRepo{}
	svc, _ := NewService(repo, stubTxRunner{}, NewTracker())

	listing, err := svc.Create(context.Background(), CreateInput{
		BookID:   uuid.New(),
		SellerID: uuid.New(),
		Kind:     enums.ListingKindLoan,
		DailyFee: decimal.NewFromFloat(0.50),
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.MaxDays == nil || *listing.MaxDays != DefaultLoanMaxDays {
		t.Fatalf("expected default max days, got %v", listing.MaxDays)
	}
}

func TestCreateLoanListingRejectsNegativeFee(t *testing.T) {
	svc, _ := NewService(&stubListingsRepo{}, stubTxRunner{}, NewTracker())

	_, err := svc.Create(context.Background(), CreateInput{
		BookID:   uuid.New(),
		SellerID: uuid.New(),
		Kind:     enums.ListingKindLoan,
		DailyFee: decimal.NewFromFloat(-0.25),
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateListingOwnership(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Kind:       enums.ListingKindSale,
		PriceCents: 1000,
		IsActive:   true,
	}
	repo := &stubListingsRepo{listing: listing}
	svc, _ := NewService(repo, stubTxRunner{}, NewTracker())

	newPrice := 1500
	_, err := svc.Update(context.Background(), UpdateInput{
		ListingID:  listing.ID,
		ActorID:    uuid.New(),
		ActorRole:  enums.UserRoleUser,
		PriceCents: &newPrice,
	})
	expectCode(t, err, pkgerrors.CodeForbidden)

	updated, err := svc.Update(context.Background(), UpdateInput{
		ListingID:  listing.ID,
		ActorID:    sellerID,
		ActorRole:  enums.UserRoleUser,
		PriceCents: &newPrice,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.PriceCents != 1500 {
		t.Fatalf("expected updated price, got %d", updated.PriceCents)
	}
}

func TestUpdateRejectsLoanFieldsOnSaleListing(t *testing.T) {
	sellerID := uuid.New()
	listing := &models.Listing{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Kind:       enums.ListingKindSale,
		PriceCents: 1000,
	}
	svc, _ := NewService(&stubListingsRepo{listing: listing}, stubTxRunner{}, NewTracker())

	maxDays := 30
	_, err := svc.Update(context.Background(), UpdateInput{
		ListingID: listing.ID,
		ActorID:   sellerID,
		ActorRole: enums.UserRoleUser,
		MaxDays:   &maxDays,
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestSetActiveAllowsAdmin(t *testing.T) {
	listing := &models.Listing{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Kind:     enums.ListingKindSale,
		IsActive: true,
	}
	repo := &stubListingsRepo{listing: listing}
	svc, _ := NewService(repo, stubTxRunner{}, NewTracker())

	err := svc.SetActive(context.Background(), uuid.New(), enums.UserRoleAdmin, listing.ID, false)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if listing.IsActive {
		t.Fatal("expected listing deactivated")
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _ := NewService(&stubListingsRepo{}, stubTxRunner{}, NewTracker())

	_, err := svc.Get(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}
