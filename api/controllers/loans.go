package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/loans"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type requestLoanRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Days      int    `json:"days" validate:"required,min=1,max=365"`
}

// LoanRequest reserves a loan listing for the caller.
func LoanRequest(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "loans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestLoanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := parseUUIDField(body.ListingID, "listing_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loan, err := svc.Request(r.Context(), userID, listingID, body.Days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loan)
	}
}

// LoanGet returns a single loan. Borrowers see only their own.
func LoanGet(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "loans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loanID, err := parseIDParam(r, "loanID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loan, err := svc.Get(r.Context(), actorID, actorRole, loanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loan)
	}
}

// LoanList pages through the caller's own loans.
func LoanList(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "loans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.LoanStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseLoanStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		page, err := svc.ListByUser(r.Context(), userID, params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// LoanCancel cancels a requested loan and releases its reserved copy.
func LoanCancel(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return loanAction(svc, logg, "cancelled", loans.Service.Cancel)
}

// LoanCheckOut hands the copy to the borrower and starts the clock. Admin only.
func LoanCheckOut(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return loanAction(svc, logg, "active", loans.Service.CheckOut)
}

// LoanMarkLost writes the copy off and closes the loan. Admin only.
func LoanMarkLost(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return loanAction(svc, logg, "lost", loans.Service.MarkLost)
}

// LoanReturn records the copy coming back and settles any late fine. Admin only.
func LoanReturn(svc loans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "loans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loanID, err := parseIDParam(r, "loanID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Return(r.Context(), loans.ActionInput{
			LoanID:    loanID,
			ActorID:   actorID,
			ActorRole: actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status":    "returned",
			"late_fine": fine,
		})
	}
}

func loanAction(
	svc loans.Service,
	logg *logger.Logger,
	status string,
	action func(loans.Service, context.Context, loans.ActionInput) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "loans service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loanID, err := parseIDParam(r, "loanID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := action(svc, r.Context(), loans.ActionInput{
			LoanID:    loanID,
			ActorID:   actorID,
			ActorRole: actorRole,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}
