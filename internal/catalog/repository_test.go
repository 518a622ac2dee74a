package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

func mustInsertBook(t *testing.T, repo *Repository, title string, authors []string, categories []string, language string, year *int) *models.Book {
	t.Helper()

	book := &models.Book{
		ID:            uuid.New(),
		Title:         title,
		Authors:       pq.StringArray(authors),
		Language:      language,
		PublishedYear: year,
		Categories:    pq.StringArray(categories),
	}
	created, err := repo.Create(context.Background(), book)
	if err != nil {
		t.Fatalf("create book %q: %v", title, err)
	}
	return created
}

func TestRepositoryBookFlow(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	year := 1962
	created := mustInsertBook(t, repo, "Pale Fire", []string{"Vladimir Nabokov"}, []string{"fiction"}, "en", &year)

	fetched, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find book: %v", err)
	}
	if fetched.Title != "Pale Fire" {
		t.Fatalf("expected title Pale Fire, got %s", fetched.Title)
	}

	if err := repo.Update(ctx, created.ID, map[string]any{"title": "Pale Fire (Annotated)"}); err != nil {
		t.Fatalf("update book: %v", err)
	}
	fetched, err = repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find book after update: %v", err)
	}
	if fetched.Title != "Pale Fire (Annotated)" {
		t.Fatalf("expected updated title, got %s", fetched.Title)
	}
}

func TestRepositoryListFilters(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	y1925 := 1925
	y1962 := 1962
	y1985 := 1985
	gatsby := mustInsertBook(t, repo, "The Great Gatsby", []string{"F. Scott Fitzgerald"}, []string{"fiction", "classics"}, "en", &y1925)
	paleFire := mustInsertBook(t, repo, "Pale Fire", []string{"Vladimir Nabokov"}, []string{"fiction"}, "en", &y1962)
	quijote := mustInsertBook(t, repo, "Don Quijote", []string{"Miguel de Cervantes"}, []string{"classics"}, "es", &y1985)

	list, err := repo.List(ctx, pagination.Params{Limit: 10}, BookFilters{Query: "gatsby"})
	if err != nil {
		t.Fatalf("list by title query: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != gatsby.ID {
		t.Fatalf("expected gatsby only, got %d books", len(list.Books))
	}

	list, err = repo.List(ctx, pagination.Params{Limit: 10}, BookFilters{Query: "nabokov"})
	if err != nil {
		t.Fatalf("list by author query: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != paleFire.ID {
		t.Fatalf("expected pale fire via author search, got %d books", len(list.Books))
	}

	category := "classics"
	list, err = repo.List(ctx, pagination.Params{Limit: 10}, BookFilters{Category: &category})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(list.Books) != 2 {
		t.Fatalf("expected two classics, got %d", len(list.Books))
	}

	language := "es"
	list, err = repo.List(ctx, pagination.Params{Limit: 10}, BookFilters{Language: &language})
	if err != nil {
		t.Fatalf("list by language: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != quijote.ID {
		t.Fatalf("expected spanish book only, got %d books", len(list.Books))
	}

	from := 1950
	to := 1970
	list, err = repo.List(ctx, pagination.Params{Limit: 10}, BookFilters{PublishedFrom: &from, PublishedTo: &to})
	if err != nil {
		t.Fatalf("list by year range: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != paleFire.ID {
		t.Fatalf("expected one book in range, got %d", len(list.Books))
	}
}

func TestRepositoryListPaginates(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	category := "pagination-filter"
	for i := 0; i < 3; i++ {
		mustInsertBook(t, repo, "Probe Volume", []string{"Probe Author"}, []string{category}, "en", nil)
	}

	filters := BookFilters{Category: &category}
	first, err := repo.List(ctx, pagination.Params{Limit: 2}, filters)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Books) != 2 {
		t.Fatalf("expected two books on first page, got %d", len(first.Books))
	}
	if first.NextCursor == "" {
		t.Fatal("expected next cursor on first page")
	}

	second, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor}, filters)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Books) != 1 {
		t.Fatalf("expected one book on second page, got %d", len(second.Books))
	}
	if second.NextCursor != "" {
		t.Fatalf("expected empty cursor on final page, got %s", second.NextCursor)
	}
}
