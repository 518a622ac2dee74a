package suggestions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/bookmarket-io/bookmarket-backend/pkg/db"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines suggestion and voting operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Suggestion, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Suggestion, error)
	List(ctx context.Context, status *enums.SuggestionStatus, limit int) ([]models.Suggestion, error)
	Vote(ctx context.Context, userID, suggestionID uuid.UUID, direction enums.VoteDirection) (*VoteResult, error)
	SetStatus(ctx context.Context, input StatusInput) error
}

// CreateInput carries the fields for a new suggestion.
type CreateInput struct {
	UserID uuid.UUID
	Title  string
	Author string
	Notes  *string
}

// StatusInput moves a suggestion out of the pending state.
type StatusInput struct {
	SuggestionID uuid.UUID
	Status       enums.SuggestionStatus
	ActorID      uuid.UUID
	ActorRole    enums.UserRole
}

// VoteResult reports the caller's vote after the toggle plus the new score.
// Direction is nil when the toggle removed the vote.
type VoteResult struct {
	Direction *enums.VoteDirection `json:"direction,omitempty"`
	Score     int                  `json:"score"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a suggestion service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("suggestions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Suggestion, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title := strings.TrimSpace(input.Title)
	author := strings.TrimSpace(input.Author)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if author == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author required")
	}

	suggestion := &models.Suggestion{
		ID:     uuid.New(),
		UserID: input.UserID,
		Title:  title,
		Author: author,
		Notes:  input.Notes,
		Status: enums.SuggestionStatusPending,
	}
	created, err := s.repo.Create(ctx, suggestion)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "suggestion already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create suggestion")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Suggestion, error) {
	suggestion, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "suggestion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suggestion")
	}
	return suggestion, nil
}

func (s *service) List(ctx context.Context, status *enums.SuggestionStatus, limit int) ([]models.Suggestion, error) {
	rows, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suggestions")
	}
	return rows, nil
}

// Vote toggles the caller's vote. A first vote counts its direction, a
// repeat in the same direction removes it, and a flip swings the score
// by two. Score and vote row always change in the same transaction.
func (s *service) Vote(ctx context.Context, userID, suggestionID uuid.UUID, direction enums.VoteDirection) (*VoteResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if suggestionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "suggestion id required")
	}
	if !direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vote direction must be up or down")
	}

	var result *VoteResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		suggestion, err := repo.Find(ctx, suggestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "suggestion not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suggestion")
		}
		if suggestion.Status != enums.SuggestionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "voting is closed for this suggestion")
		}

		delta := 0
		var current *enums.VoteDirection

		existing, err := repo.FindVote(ctx, suggestionID, userID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := &models.SuggestionVote{
				ID:           uuid.New(),
				SuggestionID: suggestionID,
				UserID:       userID,
				Direction:    direction,
			}
			if err := repo.CreateVote(ctx, vote); err != nil {
				if dbpkg.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "vote already recorded")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vote")
			}
			delta = direction.Delta()
			current = &direction
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vote")
		case existing.Direction == direction:
			if err := repo.DeleteVote(ctx, existing.ID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeConflict, "vote already removed")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove vote")
			}
			delta = -direction.Delta()
		default:
			if err := repo.UpdateVoteDirection(ctx, existing.ID, direction); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeConflict, "vote already changed")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flip vote")
			}
			delta = 2 * direction.Delta()
			current = &direction
		}

		if err := repo.AdjustScore(ctx, suggestionID, delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust score")
		}

		result = &VoteResult{
			Direction: current,
			Score:     suggestion.Score + delta,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) SetStatus(ctx context.Context, input StatusInput) error {
	if input.SuggestionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "suggestion id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "moderation requires admin role")
	}
	if input.Status != enums.SuggestionStatusFulfilled && input.Status != enums.SuggestionStatusRejected {
		return pkgerrors.New(pkgerrors.CodeValidation, "status must be fulfilled or rejected")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		suggestion, err := repo.Find(ctx, input.SuggestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "suggestion not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suggestion")
		}
		if suggestion.Status == input.Status {
			return nil
		}
		if suggestion.Status != enums.SuggestionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "suggestion already moderated")
		}

		if err := repo.Update(ctx, suggestion.ID, map[string]any{"status": input.Status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update suggestion status")
		}
		return nil
	})
}
