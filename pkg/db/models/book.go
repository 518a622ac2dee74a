package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Book represents the canonical catalog entry listings hang off.
type Book struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string         `gorm:"column:title;not null;index:books_title_idx"`
	Subtitle      *string        `gorm:"column:subtitle"`
	Authors       pq.StringArray `gorm:"column:authors;type:text[];not null;default:ARRAY[]::text[]"`
	Description   *string        `gorm:"column:description"`
	ISBN13        *string        `gorm:"column:isbn13;uniqueIndex"`
	Language      string         `gorm:"column:language;not null;default:'en'"`
	PublishedYear *int           `gorm:"column:published_year"`
	Categories    pq.StringArray `gorm:"column:categories;type:text[];not null;default:ARRAY[]::text[]"`
	CoverURL      *string        `gorm:"column:cover_url"`
	Listings      []Listing      `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
