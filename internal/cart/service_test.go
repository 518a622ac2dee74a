package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

type stubCartRepo struct {
	cart  *models.Cart
	items []*models.CartItem
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID || s.cart.Status != enums.CartStatusActive {
		return nil, gorm.ErrRecordNotFound
	}
	cart := *s.cart
	cart.Items = nil
	for _, item := range s.items {
		cart.Items = append(cart.Items, *item)
	}
	return &cart, nil
}

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	s.cart = cart
	return cart, nil
}

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, listingID uuid.UUID) (*models.CartItem, error) {
	for _, item := range s.items {
		if item.CartID == cartID && item.ListingID == listingID {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	s.items = append(s.items, item)
	return nil
}

func (s *stubCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	for _, item := range s.items {
		if item.ID == itemID {
			item.Quantity = quantity
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	for i, item := range s.items {
		if item.ID == itemID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubCartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	s.items = nil
	return nil
}

func (s *stubCartRepo) UpdateStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus, convertedAt *time.Time) error {
	if s.cart == nil || s.cart.ID != cartID {
		return gorm.ErrRecordNotFound
	}
	s.cart.Status = status
	s.cart.ConvertedAt = convertedAt
	return nil
}

type stubListingFinder struct {
	listings map[uuid.UUID]*models.Listing
}

func (s *stubListingFinder) Find(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if listing, ok := s.listings[id]; ok {
		return listing, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *pkgerrors.Error, got %T: %v", err, err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}

func saleListing(priceCents int) *models.Listing {
	return &models.Listing{
		ID:         uuid.New(),
		BookID:     uuid.New(),
		SellerID:   uuid.New(),
		Kind:       enums.ListingKindSale,
		Format:     enums.BookFormatPaperback,
		PriceCents: priceCents,
		IsActive:   true,
		Book:       &models.Book{ID: uuid.New(), Title: "The Trial"},
	}
}

func newCartService(t *testing.T, repo *stubCartRepo, finder *stubListingFinder) Service {
	t.Helper()
	svc, err := NewService(repo, finder, stubTxRunner{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestGetActiveCartEmptyWhenNone(t *testing.T) {
	repo := &stubCartRepo{}
	svc := newCartService(t, repo, &stubListingFinder{})

	view, err := svc.GetActiveCart(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.CartID != nil {
		t.Fatalf("expected nil cart id for missing cart")
	}
	if len(view.Items) != 0 || view.SubtotalCents != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}

func TestAddItemCreatesCartAndLine(t *testing.T) {
	listing := saleListing(1500)
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)
	userID := uuid.New()

	view, err := svc.AddItem(context.Background(), userID, listing.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.cart == nil || repo.cart.UserID != userID {
		t.Fatalf("expected cart created for user")
	}
	if len(repo.items) != 1 || repo.items[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", repo.items)
	}
	if view.CartID == nil {
		t.Fatalf("expected cart id in view")
	}
}

func TestAddItemMergesExistingLine(t *testing.T) {
	listing := saleListing(500)
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), userID, listing.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), userID, listing.ID, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.items) != 1 {
		t.Fatalf("expected merged line, got %d rows", len(repo.items))
	}
	if repo.items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", repo.items[0].Quantity)
	}
}

func TestAddItemRejectsLoanListing(t *testing.T) {
	listing := saleListing(0)
	listing.Kind = enums.ListingKindLoan
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)

	_, err := svc.AddItem(context.Background(), uuid.New(), listing.ID, 1)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemRejectsInactiveListing(t *testing.T) {
	listing := saleListing(900)
	listing.IsActive = false
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, &stubCartRepo{}, finder)

	_, err := svc.AddItem(context.Background(), uuid.New(), listing.ID, 1)
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAddItemUnknownListing(t *testing.T) {
	svc := newCartService(t, &stubCartRepo{}, &stubListingFinder{})

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := newCartService(t, &stubCartRepo{}, &stubListingFinder{})

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 0)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateItemRejectsNonPositiveQuantity(t *testing.T) {
	listing := saleListing(1200)
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), userID, listing.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, qty := range []int{0, -1} {
		_, err := svc.UpdateItem(context.Background(), userID, listing.ID, qty)
		expectCode(t, err, pkgerrors.CodeValidation)
	}
	if len(repo.items) != 1 || repo.items[0].Quantity != 2 {
		t.Fatalf("expected line untouched, got %+v", repo.items)
	}
}

func TestUpdateItemSetsQuantity(t *testing.T) {
	listing := saleListing(2000)
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), userID, listing.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateItem(context.Background(), userID, listing.ID, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", repo.items[0].Quantity)
	}
}

func TestRemoveItemMissingLine(t *testing.T) {
	listing := saleListing(700)
	repo := &stubCartRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newCartService(t, repo, finder)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), userID, listing.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.RemoveItem(context.Background(), userID, uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestClearIsIdempotent(t *testing.T) {
	repo := &stubCartRepo{}
	svc := newCartService(t, repo, &stubListingFinder{})

	if err := svc.Clear(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestViewSubtotalSkipsInactiveListings(t *testing.T) {
	active := saleListing(1000)
	inactive := saleListing(9999)
	inactive.IsActive = false

	userID := uuid.New()
	cartID := uuid.New()
	repo := &stubCartRepo{
		cart: &models.Cart{ID: cartID, UserID: userID, Status: enums.CartStatusActive},
		items: []*models.CartItem{
			{ID: uuid.New(), CartID: cartID, ListingID: active.ID, Quantity: 2, Listing: active},
			{ID: uuid.New(), CartID: cartID, ListingID: inactive.ID, Quantity: 1, Listing: inactive},
		},
	}
	svc := newCartService(t, repo, &stubListingFinder{})

	view, err := svc.GetActiveCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.SubtotalCents != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", view.SubtotalCents)
	}
	var flagged bool
	for _, line := range view.Items {
		if line.ListingID == inactive.ID && line.Unavailable {
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("expected inactive line flagged unavailable")
	}
}
