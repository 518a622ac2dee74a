package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// Suggestion is a community request for a book the catalog lacks.
// Score is maintained transactionally alongside the vote rows.
type Suggestion struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:suggestions_user_id_idx"`
	Title     string                 `gorm:"column:title;not null"`
	Author    string                 `gorm:"column:author;not null"`
	Notes     *string                `gorm:"column:notes"`
	Status    enums.SuggestionStatus `gorm:"column:status;type:suggestion_status;not null;default:'pending'"`
	Score     int                    `gorm:"column:score;not null;default:0"`
	Votes     []SuggestionVote       `gorm:"foreignKey:SuggestionID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
