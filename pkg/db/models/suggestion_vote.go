package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// SuggestionVote is one user's current vote on a suggestion.
type SuggestionVote struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SuggestionID uuid.UUID           `gorm:"column:suggestion_id;type:uuid;not null;uniqueIndex:suggestion_votes_suggestion_user_key"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:suggestion_votes_suggestion_user_key"`
	Direction    enums.VoteDirection `gorm:"column:direction;type:vote_direction;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
