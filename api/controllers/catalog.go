package controllers

import (
	"net/http"
	"strings"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/catalog"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type createBookRequest struct {
	Title         string   `json:"title" validate:"required,min=1,max=300"`
	Subtitle      *string  `json:"subtitle,omitempty" validate:"omitempty,max=300"`
	Authors       []string `json:"authors" validate:"required,min=1,dive,min=1,max=200"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	ISBN13        *string  `json:"isbn13,omitempty" validate:"omitempty,len=13"`
	Language      string   `json:"language" validate:"required,min=2,max=8"`
	PublishedYear *int     `json:"published_year,omitempty" validate:"omitempty,min=1,max=2100"`
	Categories    []string `json:"categories,omitempty" validate:"omitempty,dive,min=1,max=80"`
	CoverURL      *string  `json:"cover_url,omitempty" validate:"omitempty,url,max=2048"`
}

type updateBookRequest struct {
	Title         *string  `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Subtitle      *string  `json:"subtitle,omitempty" validate:"omitempty,max=300"`
	Authors       []string `json:"authors,omitempty" validate:"omitempty,min=1,dive,min=1,max=200"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Language      *string  `json:"language,omitempty" validate:"omitempty,min=2,max=8"`
	PublishedYear *int     `json:"published_year,omitempty" validate:"omitempty,min=1,max=2100"`
	Categories    []string `json:"categories,omitempty" validate:"omitempty,dive,min=1,max=80"`
	CoverURL      *string  `json:"cover_url,omitempty" validate:"omitempty,url,max=2048"`
}

type bookFromSuggestionRequest struct {
	ISBN13     *string  `json:"isbn13,omitempty" validate:"omitempty,len=13"`
	Categories []string `json:"categories,omitempty" validate:"omitempty,dive,min=1,max=80"`
}

// CatalogList serves the public, filterable book catalog.
func CatalogList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := bookFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// CatalogGet returns a single book by id.
func CatalogGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := parseIDParam(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Get(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

// CatalogCreate registers a new book. Admin only.
func CatalogCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Create(r.Context(), catalog.CreateInput{
			ActorID:       actorID,
			ActorRole:     actorRole,
			Title:         body.Title,
			Subtitle:      body.Subtitle,
			Authors:       body.Authors,
			Description:   body.Description,
			ISBN13:        body.ISBN13,
			Language:      body.Language,
			PublishedYear: body.PublishedYear,
			Categories:    body.Categories,
			CoverURL:      body.CoverURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

// CatalogCreateFromSuggestion promotes a community suggestion into the catalog. Admin only.
func CatalogCreateFromSuggestion(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		suggestionID, err := parseIDParam(r, "suggestionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bookFromSuggestionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.CreateFromSuggestion(r.Context(), catalog.FromSuggestionInput{
			SuggestionID: suggestionID,
			ActorID:      actorID,
			ActorRole:    actorRole,
			ISBN13:       body.ISBN13,
			Categories:   body.Categories,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

// CatalogUpdate patches book metadata. Admin only.
func CatalogUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := parseIDParam(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Update(r.Context(), catalog.UpdateInput{
			BookID:        bookID,
			ActorID:       actorID,
			ActorRole:     actorRole,
			Title:         body.Title,
			Subtitle:      body.Subtitle,
			Authors:       body.Authors,
			Description:   body.Description,
			Language:      body.Language,
			PublishedYear: body.PublishedYear,
			Categories:    body.Categories,
			CoverURL:      body.CoverURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, book)
	}
}

func bookFiltersFromQuery(r *http.Request) (catalog.BookFilters, error) {
	q := r.URL.Query()
	filters := catalog.BookFilters{
		Query:  validators.SanitizeString(q.Get("q"), 200),
		Author: validators.SanitizeString(q.Get("author"), 200),
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category := strings.ToLower(raw)
		filters.Category = &category
	}
	if raw := strings.TrimSpace(q.Get("language")); raw != "" {
		language := raw
		filters.Language = &language
	}
	from, err := validators.ParseQueryInt(r, "published_from", 0, 0, 2100)
	if err != nil {
		return catalog.BookFilters{}, err
	}
	if from > 0 {
		filters.PublishedFrom = &from
	}
	to, err := validators.ParseQueryInt(r, "published_to", 0, 0, 2100)
	if err != nil {
		return catalog.BookFilters{}, err
	}
	if to > 0 {
		filters.PublishedTo = &to
	}
	return filters, nil
}
