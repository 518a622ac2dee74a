package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type createListingRequest struct {
	BookID     string          `json:"book_id" validate:"required,uuid"`
	Kind       string          `json:"kind" validate:"required,oneof=sale loan"`
	Format     string          `json:"format" validate:"required,oneof=hardcover paperback audiobook ebook"`
	Condition  *string         `json:"condition,omitempty" validate:"omitempty,max=200"`
	PriceCents int             `json:"price_cents" validate:"omitempty,min=0"`
	DailyFee   decimal.Decimal `json:"daily_fee"`
	MaxDays    *int            `json:"max_days,omitempty" validate:"omitempty,min=1,max=365"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
}

type updateListingRequest struct {
	PriceCents *int             `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	DailyFee   *decimal.Decimal `json:"daily_fee,omitempty"`
	MaxDays    *int             `json:"max_days,omitempty" validate:"omitempty,min=1,max=365"`
	Condition  *string          `json:"condition,omitempty" validate:"omitempty,max=200"`
}

type setListingActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// ListingCreate opens a new sale or loan listing for the caller.
func ListingCreate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toCreateInput(sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listing)
	}
}

// ListingGet returns a single listing by id.
func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := parseIDParam(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listing)
	}
}

// ListingUpdate patches mutable listing fields. Seller or admin only.
func ListingUpdate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := parseIDParam(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Update(r.Context(), listings.UpdateInput{
			ListingID:  listingID,
			ActorID:    actorID,
			ActorRole:  actorRole,
			PriceCents: body.PriceCents,
			DailyFee:   body.DailyFee,
			MaxDays:    body.MaxDays,
			Condition:  body.Condition,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listing)
	}
}

// ListingSetActive toggles listing visibility. Seller or admin only.
func ListingSetActive(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := parseIDParam(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setListingActiveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), actorID, actorRole, listingID, *body.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"active": *body.Active})
	}
}

// ListingAdjustStock applies a manual stock delta. Seller or admin only.
func ListingAdjustStock(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := parseIDParam(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AdjustStock(r.Context(), actorID, actorRole, listingID, body.Delta); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "adjusted"})
	}
}

// ListingsByBook lists the active listings attached to a book.
func ListingsByBook(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookID, err := parseIDParam(r, "bookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByBook(r.Context(), bookID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// MyListings lists the caller's own listings, active or not.
func MyListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListBySeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func (req createListingRequest) toCreateInput(sellerID uuid.UUID) (listings.CreateInput, error) {
	bookID, err := uuid.Parse(req.BookID)
	if err != nil {
		return listings.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book_id")
	}
	kind, err := enums.ParseListingKind(req.Kind)
	if err != nil {
		return listings.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing kind")
	}
	format, err := enums.ParseBookFormat(req.Format)
	if err != nil {
		return listings.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book format")
	}
	return listings.CreateInput{
		BookID:     bookID,
		SellerID:   sellerID,
		Kind:       kind,
		Format:     format,
		Condition:  req.Condition,
		PriceCents: req.PriceCents,
		DailyFee:   req.DailyFee,
		MaxDays:    req.MaxDays,
		Quantity:   req.Quantity,
	}, nil
}
