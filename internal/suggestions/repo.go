package suggestions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for suggestions and votes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, suggestion *models.Suggestion) (*models.Suggestion, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Suggestion, error)
	List(ctx context.Context, status *enums.SuggestionStatus, limit int) ([]models.Suggestion, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AdjustScore(ctx context.Context, id uuid.UUID, delta int) error
	FindVote(ctx context.Context, suggestionID, userID uuid.UUID) (*models.SuggestionVote, error)
	CreateVote(ctx context.Context, vote *models.SuggestionVote) error
	UpdateVoteDirection(ctx context.Context, voteID uuid.UUID, direction enums.VoteDirection) error
	DeleteVote(ctx context.Context, voteID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a suggestions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, suggestion *models.Suggestion) (*models.Suggestion, error) {
	if err := r.db.WithContext(ctx).Create(suggestion).Error; err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Suggestion, error) {
	var suggestion models.Suggestion
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&suggestion).Error
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// List returns suggestions ranked by score. Ties break on recency.
func (r *repository) List(ctx context.Context, status *enums.SuggestionStatus, limit int) ([]models.Suggestion, error) {
	query := r.db.WithContext(ctx).Model(&models.Suggestion{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var rows []models.Suggestion
	err := query.
		Order("score DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Suggestion{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) AdjustScore(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE suggestions
		SET score = score + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, id).Error
}

func (r *repository) FindVote(ctx context.Context, suggestionID, userID uuid.UUID) (*models.SuggestionVote, error) {
	var vote models.SuggestionVote
	err := r.db.WithContext(ctx).
		Where("suggestion_id = ? AND user_id = ?", suggestionID, userID).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *repository) CreateVote(ctx context.Context, vote *models.SuggestionVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

// UpdateVoteDirection flips a vote. The direction guard makes the flip
// conditional, so a concurrent transaction that already flipped the row
// surfaces as gorm.ErrRecordNotFound instead of a silent no-op.
func (r *repository) UpdateVoteDirection(ctx context.Context, voteID uuid.UUID, direction enums.VoteDirection) error {
	result := r.db.WithContext(ctx).
		Model(&models.SuggestionVote{}).
		Where("id = ? AND direction <> ?", voteID, direction).
		Update("direction", direction)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteVote removes a vote row. A zero-row delete means another
// transaction removed it first; the caller must not adjust the score.
func (r *repository) DeleteVote(ctx context.Context, voteID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", voteID).
		Delete(&models.SuggestionVote{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
