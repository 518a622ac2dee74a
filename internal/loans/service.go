package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox/payloads"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type listingFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// StockReserver moves listing copies between the available and reserved
// pools on behalf of an owning loan.
type StockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID, requests []listings.ReservationRequest) error
	Release(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error
	Consume(ctx context.Context, tx *gorm.DB, ownerType string, ownerID uuid.UUID) error
}

// Service defines loan lifecycle operations.
type Service interface {
	Request(ctx context.Context, userID, listingID uuid.UUID, days int) (*models.Loan, error)
	Get(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, loanID uuid.UUID) (*models.Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.LoanStatus) (*LoanPage, error)
	CheckOut(ctx context.Context, input ActionInput) error
	Return(ctx context.Context, input ActionInput) (decimal.Decimal, error)
	MarkLost(ctx context.Context, input ActionInput) error
	Cancel(ctx context.Context, input ActionInput) error
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// ActionInput carries the actor context for a loan transition.
type ActionInput struct {
	LoanID    uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

type service struct {
	repo     Repository
	listings listingFinder
	tx       txRunner
	outbox   outboxPublisher
	tracker  StockReserver
}

// NewService builds a loan service with the required dependencies.
func NewService(repo Repository, listingsRepo listingFinder, tx txRunner, outboxSvc outboxPublisher, tracker StockReserver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if listingsRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	return &service{
		repo:     repo,
		listings: listingsRepo,
		tx:       tx,
		outbox:   outboxSvc,
		tracker:  tracker,
	}, nil
}

func (s *service) Request(ctx context.Context, userID, listingID uuid.UUID, days int) (*models.Loan, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if days < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan duration must be at least one day")
	}

	listing, err := s.listings.Find(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if !listing.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not active")
	}
	if listing.Kind != enums.ListingKindLoan {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is not offered for loan")
	}

	maxDays := listings.DefaultLoanMaxDays
	if listing.MaxDays != nil && *listing.MaxDays > 0 {
		maxDays = *listing.MaxDays
	}
	if days > maxDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan duration exceeds the listing limit")
	}

	var created *models.Loan
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindActiveByUserAndListing(ctx, userID, listingID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an active loan already exists for this listing")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing loan")
		}

		loanID := uuid.New()
		if err := s.tracker.Reserve(ctx, tx, listings.OwnerTypeLoan, loanID, []listings.ReservationRequest{
			{ListingID: listingID, Quantity: 1},
		}); err != nil {
			return err
		}

		loan := &models.Loan{
			ID:         loanID,
			UserID:     userID,
			ListingID:  listingID,
			Status:     enums.LoanStatusReserved,
			DailyFee:   listing.DailyFee,
			MaxDays:    maxDays,
			Days:       days,
			ReservedAt: time.Now().UTC(),
			FineAmount: decimal.Zero,
		}
		if _, err := repo.Create(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanReserved,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Version:       1,
			Actor:         buildActor(userID, enums.UserRoleUser),
			Data: payloads.LoanReservedEvent{
				LoanID:    loan.ID,
				UserID:    loan.UserID,
				ListingID: loan.ListingID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		created = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, actorID uuid.UUID, actorRole enums.UserRole, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := s.repo.Find(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	if loan.UserID != actorID && actorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "loan does not belong to user")
	}
	return loan, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, status *enums.LoanStatus) (*LoanPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	page, err := s.repo.ListByUser(ctx, userID, params, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}
	return page, nil
}

func (s *service) CheckOut(ctx context.Context, input ActionInput) error {
	if err := requireAdmin(input); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := s.loadLoan(ctx, repo, input.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != enums.LoanStatusReserved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "loan cannot be checked out in current state")
		}

		now := time.Now().UTC()
		dueAt := now.AddDate(0, 0, loan.Days)
		updates := map[string]any{
			"status":         enums.LoanStatusCheckedOut,
			"checked_out_at": now,
			"due_at":         dueAt,
		}
		if err := repo.Update(ctx, loan.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check out loan")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanCheckedOut,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.LoanCheckedOutEvent{
				LoanID:       loan.ID,
				UserID:       loan.UserID,
				ListingID:    loan.ListingID,
				CheckedOutAt: now,
				DueAt:        dueAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Return(ctx context.Context, input ActionInput) (decimal.Decimal, error) {
	if err := requireAdmin(input); err != nil {
		return decimal.Zero, err
	}

	fine := decimal.Zero
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := s.loadLoan(ctx, repo, input.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != enums.LoanStatusCheckedOut && loan.Status != enums.LoanStatusOverdue {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "loan cannot be returned in current state")
		}

		now := time.Now().UTC()
		if loan.DueAt != nil {
			fine = LateFine(loan.DailyFee, *loan.DueAt, now)
		}

		if err := s.tracker.Release(ctx, tx, listings.OwnerTypeLoan, loan.ID); err != nil {
			return err
		}

		updates := map[string]any{
			"status":      enums.LoanStatusReturned,
			"returned_at": now,
			"fine_amount": fine,
		}
		if err := repo.Update(ctx, loan.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return loan")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.LoanReturnedEvent{
				LoanID:     loan.ID,
				UserID:     loan.UserID,
				ListingID:  loan.ListingID,
				ReturnedAt: now,
				FineAmount: fine.StringFixed(2),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return fine, nil
}

func (s *service) MarkLost(ctx context.Context, input ActionInput) error {
	if err := requireAdmin(input); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := s.loadLoan(ctx, repo, input.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != enums.LoanStatusOverdue {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only overdue loans can be marked lost")
		}

		now := time.Now().UTC()
		fine := loan.FineAmount
		if loan.DueAt != nil {
			fine = LateFine(loan.DailyFee, *loan.DueAt, now)
		}

		// The copy never comes back, so the hold is retired instead of restocked.
		if err := s.tracker.Consume(ctx, tx, listings.OwnerTypeLoan, loan.ID); err != nil {
			return err
		}

		updates := map[string]any{
			"status":      enums.LoanStatusLost,
			"fine_amount": fine,
		}
		if err := repo.Update(ctx, loan.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark loan lost")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanLost,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.LoanLostEvent{
				LoanID:     loan.ID,
				UserID:     loan.UserID,
				ListingID:  loan.ListingID,
				FineAmount: fine.StringFixed(2),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Cancel(ctx context.Context, input ActionInput) error {
	if input.LoanID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loan, err := s.loadLoan(ctx, repo, input.LoanID)
		if err != nil {
			return err
		}
		if loan.UserID != input.ActorID && input.ActorRole != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "loan does not belong to user")
		}
		if loan.Status != enums.LoanStatusReserved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only reserved loans can be cancelled")
		}

		if err := s.tracker.Release(ctx, tx, listings.OwnerTypeLoan, loan.ID); err != nil {
			return err
		}
		if err := repo.Update(ctx, loan.ID, map[string]any{"status": enums.LoanStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel loan")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventLoanCancelled,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: payloads.LoanCancelledEvent{
				LoanID:    loan.ID,
				UserID:    loan.UserID,
				ListingID: loan.ListingID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	marked := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		due, err := repo.FindDueBefore(ctx, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find due loans")
		}

		for _, loan := range due {
			if err := repo.Update(ctx, loan.ID, map[string]any{"status": enums.LoanStatusOverdue}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark loan overdue")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventLoanOverdue,
				AggregateType: enums.AggregateLoan,
				AggregateID:   loan.ID,
				Version:       1,
				Data: payloads.LoanOverdueEvent{
					LoanID: loan.ID,
					UserID: loan.UserID,
					DueAt:  derefTime(loan.DueAt),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (s *service) loadLoan(ctx context.Context, repo Repository, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := repo.Find(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	return loan, nil
}

// LateFine charges one daily fee per started 24 hour period past the due date.
func LateFine(dailyFee decimal.Decimal, dueAt, at time.Time) decimal.Decimal {
	if !at.After(dueAt) {
		return decimal.Zero
	}
	late := at.Sub(dueAt)
	days := int64(late / (24 * time.Hour))
	if late%(24*time.Hour) > 0 {
		days++
	}
	return dailyFee.Mul(decimal.NewFromInt(days))
}

func requireAdmin(input ActionInput) error {
	if input.LoanID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "loan transitions require admin role")
	}
	return nil
}

func buildActor(userID uuid.UUID, role enums.UserRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: userID,
		Role:   role.String(),
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
