package wishlist

import (
	"time"

	"github.com/google/uuid"
)

// BookSummary is the catalog projection included in a wishlist row.
type BookSummary struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Subtitle      *string   `json:"subtitle,omitempty"`
	Authors       []string  `json:"authors"`
	ISBN13        *string   `json:"isbn13,omitempty"`
	PublishedYear *int      `json:"published_year,omitempty"`
	CoverURL      *string   `json:"cover_url,omitempty"`
}

// ItemDTO is one saved book plus when it was saved.
type ItemDTO struct {
	Book    BookSummary `json:"book"`
	SavedAt time.Time   `json:"saved_at"`
}

// Page is a cursor-paginated wishlist view.
type Page struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// IDsPage is a lightweight projection containing only saved book IDs.
type IDsPage struct {
	BookIDs    []uuid.UUID `json:"book_ids"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
