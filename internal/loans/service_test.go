package loans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type stubLoansRepo struct {
	loan    *models.Loan
	created *models.Loan
	updates map[string]any
	due     []models.Loan
}

func (s *stubLoansRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubLoansRepo) Create(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	s.created = loan
	s.loan = loan
	return loan, nil
}

func (s *stubLoansRepo) Find(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	if s.loan == nil || s.loan.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.loan, nil
}

func (s *stubLoansRepo) FindActiveByUserAndListing(ctx context.Context, userID, listingID uuid.UUID) (*models.Loan, error) {
	if s.loan != nil && s.loan.UserID == userID && s.loan.ListingID == listingID && !s.loan.Status.IsTerminal() {
		return s.loan, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLoansRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.LoanStatus) (*LoanPage, error) {
	return &LoanPage{}, nil
}

func (s *stubLoansRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.loan == nil || s.loan.ID != id {
		for i := range s.due {
			if s.due[i].ID == id {
				if status, ok := updates["status"].(enums.LoanStatus); ok {
					s.due[i].Status = status
				}
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if status, ok := updates["status"].(enums.LoanStatus); ok {
		s.loan.Status = status
	}
	if fine, ok := updates["fine_amount"].(decimal.Decimal); ok {
		s.loan.FineAmount = fine
	}
	if due, ok := updates["due_at"].(time.Time); ok {
		s.loan.DueAt = &due
	}
	return nil
}

func (s *stubLoansRepo) FindDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error) {
	var out []models.Loan
	for _, loan := range s.due {
		if loan.Status == enums.LoanStatusCheckedOut && loan.DueAt != nil && loan.DueAt.Before(cutoff) {
			out = append(out, loan)
		}
	}
	return out, nil
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

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTracker struct {
	reserved   []listings.ReservationRequest
	reserveErr error
	released   []uuid.UUID
	consumed   []uuid.UUID
}

func (s *stubTracker) Reserve(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID, requests []listings.ReservationRequest) error {
	if s.reserveErr != nil {
		return s.reserveErr
	}
	s.reserved = append(s.reserved, requests...)
	return nil
}

func (s *stubTracker) Release(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error {
	s.released = append(s.released, ownerID)
	return nil
}

func (s *stubTracker) Consume(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error {
	s.consumed = append(s.consumed, ownerID)
	return nil
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

func loanListing(dailyFee string, maxDays *int) *models.Listing {
	fee, _ := decimal.NewFromString(dailyFee)
	return &models.Listing{
		ID:       uuid.New(),
		BookID:   uuid.New(),
		SellerID: uuid.New(),
		Kind:     enums.ListingKindLoan,
		Format:   enums.BookFormatHardcover,
		DailyFee: fee,
		MaxDays:  maxDays,
		IsActive: true,
	}
}

func newLoanService(t *testing.T, repo *stubLoansRepo, finder *stubListingFinder, ob *stubOutbox, tracker *stubTracker) Service {
	t.Helper()
	svc, err := NewService(repo, finder, stubTxRunner{}, ob, tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func adminAction(loanID uuid.UUID) ActionInput {
	return ActionInput{LoanID: loanID, ActorID: uuid.New(), ActorRole: enums.UserRoleAdmin}
}

func TestRequestReservesOneCopyAndFreezesTerms(t *testing.T) {
	maxDays := 14
	listing := loanListing("0.50", &maxDays)
	repo := &stubLoansRepo{}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	ob := &stubOutbox{}
	tracker := &stubTracker{}
	svc := newLoanService(t, repo, finder, ob, tracker)
	userID := uuid.New()

	loan, err := svc.Request(context.Background(), userID, listing.ID, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if loan.Status != enums.LoanStatusReserved {
		t.Fatalf("expected reserved loan, got %s", loan.Status)
	}
	if !loan.DailyFee.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected frozen daily fee, got %s", loan.DailyFee)
	}
	if loan.MaxDays != 14 {
		t.Fatalf("expected max days 14, got %d", loan.MaxDays)
	}
	if loan.Days != 7 {
		t.Fatalf("expected requested duration 7, got %d", loan.Days)
	}
	if len(tracker.reserved) != 1 || tracker.reserved[0].Quantity != 1 {
		t.Fatalf("expected single copy reservation, got %+v", tracker.reserved)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventLoanReserved {
		t.Fatalf("expected loan reserved event, got %+v", ob.events)
	}
}

func TestRequestDefaultsMaxDays(t *testing.T) {
	listing := loanListing("1.00", nil)
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newLoanService(t, &stubLoansRepo{}, finder, &stubOutbox{}, &stubTracker{})

	loan, err := svc.Request(context.Background(), uuid.New(), listing.ID, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.MaxDays != listings.DefaultLoanMaxDays {
		t.Fatalf("expected default max days, got %d", loan.MaxDays)
	}
}

func TestRequestRejectsInvalidDuration(t *testing.T) {
	maxDays := 14
	listing := loanListing("1.00", &maxDays)
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newLoanService(t, &stubLoansRepo{}, finder, &stubOutbox{}, &stubTracker{})

	_, err := svc.Request(context.Background(), uuid.New(), listing.ID, 0)
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Request(context.Background(), uuid.New(), listing.ID, 15)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestRequestRejectsSaleListing(t *testing.T) {
	listing := loanListing("1.00", nil)
	listing.Kind = enums.ListingKindSale
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newLoanService(t, &stubLoansRepo{}, finder, &stubOutbox{}, &stubTracker{})

	_, err := svc.Request(context.Background(), uuid.New(), listing.ID, 7)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestRequestRejectsDuplicateActiveLoan(t *testing.T) {
	listing := loanListing("1.00", nil)
	userID := uuid.New()
	repo := &stubLoansRepo{loan: &models.Loan{
		ID:        uuid.New(),
		UserID:    userID,
		ListingID: listing.ID,
		Status:    enums.LoanStatusCheckedOut,
	}}
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	svc := newLoanService(t, repo, finder, &stubOutbox{}, &stubTracker{})

	_, err := svc.Request(context.Background(), userID, listing.ID, 7)
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestRequestStopsWhenNoCopiesLeft(t *testing.T) {
	listing := loanListing("1.00", nil)
	finder := &stubListingFinder{listings: map[uuid.UUID]*models.Listing{listing.ID: listing}}
	repo := &stubLoansRepo{}
	tracker := &stubTracker{reserveErr: pkgerrors.New(pkgerrors.CodeConflict, "not enough copies available")}
	svc := newLoanService(t, repo, finder, &stubOutbox{}, tracker)

	_, err := svc.Request(context.Background(), uuid.New(), listing.ID, 7)
	expectCode(t, err, pkgerrors.CodeConflict)
	if repo.created != nil {
		t.Fatalf("expected no loan created after failed reservation")
	}
}

func TestCheckOutSetsDueDate(t *testing.T) {
	loan := &models.Loan{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Status:  enums.LoanStatusReserved,
		MaxDays: 30,
		Days:    21,
	}
	repo := &stubLoansRepo{loan: loan}
	ob := &stubOutbox{}
	svc := newLoanService(t, repo, &stubListingFinder{}, ob, &stubTracker{})

	if err := svc.CheckOut(context.Background(), adminAction(loan.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != enums.LoanStatusCheckedOut {
		t.Fatalf("expected checked out loan, got %s", loan.Status)
	}
	if loan.DueAt == nil {
		t.Fatalf("expected due date set")
	}
	wantDue := time.Now().UTC().AddDate(0, 0, 21)
	if loan.DueAt.Sub(wantDue) > time.Minute || wantDue.Sub(*loan.DueAt) > time.Minute {
		t.Fatalf("expected due date around %s, got %s", wantDue, loan.DueAt)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventLoanCheckedOut {
		t.Fatalf("expected checked out event, got %+v", ob.events)
	}
}

func TestCheckOutRequiresReservedState(t *testing.T) {
	loan := &models.Loan{ID: uuid.New(), Status: enums.LoanStatusReturned}
	svc := newLoanService(t, &stubLoansRepo{loan: loan}, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	err := svc.CheckOut(context.Background(), adminAction(loan.ID))
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestReturnOnTimeHasNoFine(t *testing.T) {
	due := time.Now().UTC().Add(48 * time.Hour)
	loan := &models.Loan{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Status:   enums.LoanStatusCheckedOut,
		DailyFee: decimal.RequireFromString("0.75"),
		DueAt:    &due,
	}
	repo := &stubLoansRepo{loan: loan}
	tracker := &stubTracker{}
	ob := &stubOutbox{}
	svc := newLoanService(t, repo, &stubListingFinder{}, ob, tracker)

	fine, err := svc.Return(context.Background(), adminAction(loan.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fine.IsZero() {
		t.Fatalf("expected zero fine, got %s", fine)
	}
	if loan.Status != enums.LoanStatusReturned {
		t.Fatalf("expected returned loan, got %s", loan.Status)
	}
	if len(tracker.released) != 1 {
		t.Fatalf("expected copy released")
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventLoanReturned {
		t.Fatalf("expected returned event, got %+v", ob.events)
	}
}

func TestReturnLateChargesPerStartedDay(t *testing.T) {
	due := time.Now().UTC().Add(-30 * time.Hour)
	loan := &models.Loan{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Status:   enums.LoanStatusOverdue,
		DailyFee: decimal.RequireFromString("0.50"),
		DueAt:    &due,
	}
	repo := &stubLoansRepo{loan: loan}
	svc := newLoanService(t, repo, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	fine, err := svc.Return(context.Background(), adminAction(loan.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fine.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("expected fine 1.00 for 30 hours late, got %s", fine)
	}
}

func TestReturnRejectsReturnedLoan(t *testing.T) {
	loan := &models.Loan{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Status:     enums.LoanStatusReturned,
		FineAmount: decimal.RequireFromString("2.50"),
	}
	repo := &stubLoansRepo{loan: loan}
	tracker := &stubTracker{}
	ob := &stubOutbox{}
	svc := newLoanService(t, repo, &stubListingFinder{}, ob, tracker)

	_, err := svc.Return(context.Background(), adminAction(loan.ID))
	expectCode(t, err, pkgerrors.CodeStateConflict)
	if len(tracker.released) != 0 {
		t.Fatalf("expected no release on rejected return")
	}
	if len(ob.events) != 0 {
		t.Fatalf("expected no event on rejected return")
	}
}

func TestCancelRejectsCancelledLoan(t *testing.T) {
	loan := &models.Loan{ID: uuid.New(), UserID: uuid.New(), Status: enums.LoanStatusCancelled}
	repo := &stubLoansRepo{loan: loan}
	svc := newLoanService(t, repo, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	err := svc.Cancel(context.Background(), ActionInput{LoanID: loan.ID, ActorID: loan.UserID, ActorRole: enums.UserRoleUser})
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMarkLostConsumesCopy(t *testing.T) {
	due := time.Now().UTC().Add(-72 * time.Hour)
	loan := &models.Loan{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Status:   enums.LoanStatusOverdue,
		DailyFee: decimal.RequireFromString("1.00"),
		DueAt:    &due,
	}
	repo := &stubLoansRepo{loan: loan}
	tracker := &stubTracker{}
	ob := &stubOutbox{}
	svc := newLoanService(t, repo, &stubListingFinder{}, ob, tracker)

	if err := svc.MarkLost(context.Background(), adminAction(loan.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != enums.LoanStatusLost {
		t.Fatalf("expected lost loan, got %s", loan.Status)
	}
	if len(tracker.consumed) != 1 || tracker.consumed[0] != loan.ID {
		t.Fatalf("expected hold consumed, got %+v", tracker.consumed)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventLoanLost {
		t.Fatalf("expected lost event, got %+v", ob.events)
	}
}

func TestMarkLostRequiresOverdueState(t *testing.T) {
	loan := &models.Loan{ID: uuid.New(), Status: enums.LoanStatusCheckedOut}
	svc := newLoanService(t, &stubLoansRepo{loan: loan}, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	err := svc.MarkLost(context.Background(), adminAction(loan.ID))
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelReservedLoanByBorrower(t *testing.T) {
	userID := uuid.New()
	loan := &models.Loan{ID: uuid.New(), UserID: userID, Status: enums.LoanStatusReserved}
	repo := &stubLoansRepo{loan: loan}
	tracker := &stubTracker{}
	svc := newLoanService(t, repo, &stubListingFinder{}, &stubOutbox{}, tracker)

	input := ActionInput{LoanID: loan.ID, ActorID: userID, ActorRole: enums.UserRoleUser}
	if err := svc.Cancel(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Status != enums.LoanStatusCancelled {
		t.Fatalf("expected cancelled loan, got %s", loan.Status)
	}
	if len(tracker.released) != 1 {
		t.Fatalf("expected copy released")
	}
}

func TestCancelCheckedOutLoan(t *testing.T) {
	userID := uuid.New()
	loan := &models.Loan{ID: uuid.New(), UserID: userID, Status: enums.LoanStatusCheckedOut}
	svc := newLoanService(t, &stubLoansRepo{loan: loan}, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	input := ActionInput{LoanID: loan.ID, ActorID: userID, ActorRole: enums.UserRoleUser}
	err := svc.Cancel(context.Background(), input)
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelForbiddenForOtherUser(t *testing.T) {
	loan := &models.Loan{ID: uuid.New(), UserID: uuid.New(), Status: enums.LoanStatusReserved}
	svc := newLoanService(t, &stubLoansRepo{loan: loan}, &stubListingFinder{}, &stubOutbox{}, &stubTracker{})

	input := ActionInput{LoanID: loan.ID, ActorID: uuid.New(), ActorRole: enums.UserRoleUser}
	err := svc.Cancel(context.Background(), input)
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestMarkOverdueSweepsDueLoans(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)
	repo := &stubLoansRepo{due: []models.Loan{
		{ID: uuid.New(), UserID: uuid.New(), Status: enums.LoanStatusCheckedOut, DueAt: &past},
		{ID: uuid.New(), UserID: uuid.New(), Status: enums.LoanStatusCheckedOut, DueAt: &future},
	}}
	ob := &stubOutbox{}
	svc := newLoanService(t, repo, &stubListingFinder{}, ob, &stubTracker{})

	marked, err := svc.MarkOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected one loan marked overdue, got %d", marked)
	}
	if repo.due[0].Status != enums.LoanStatusOverdue {
		t.Fatalf("expected first loan overdue, got %s", repo.due[0].Status)
	}
	if repo.due[1].Status != enums.LoanStatusCheckedOut {
		t.Fatalf("expected second loan untouched, got %s", repo.due[1].Status)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventLoanOverdue {
		t.Fatalf("expected overdue event, got %+v", ob.events)
	}
}

func TestLateFineRounding(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fee := decimal.RequireFromString("0.50")

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"on time", due, "0"},
		{"early", due.Add(-time.Hour), "0"},
		{"one minute late", due.Add(time.Minute), "0.50"},
		{"exactly one day", due.Add(24 * time.Hour), "0.50"},
		{"one day and a second", due.Add(24*time.Hour + time.Second), "1.00"},
		{"ten days", due.Add(240 * time.Hour), "5.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LateFine(fee, due, tc.at)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected fine %s, got %s", tc.want, got)
			}
		})
	}
}
