package controllers

import (
	"net/http"
	"strings"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/suggestions"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type createSuggestionRequest struct {
	Title  string  `json:"title" validate:"required,min=1,max=300"`
	Author string  `json:"author" validate:"required,min=1,max=200"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type voteRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type suggestionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending fulfilled rejected"`
}

// SuggestionCreate files a request for a book missing from the catalog.
func SuggestionCreate(svc suggestions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "suggestions service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createSuggestionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		suggestion, err := svc.Create(r.Context(), suggestions.CreateInput{
			UserID: userID,
			Title:  body.Title,
			Author: body.Author,
			Notes:  body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, suggestion)
	}
}

// SuggestionGet returns a single suggestion with its score.
func SuggestionGet(svc suggestions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "suggestions service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		suggestionID, err := parseIDParam(r, "suggestionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		suggestion, err := svc.Get(r.Context(), suggestionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, suggestion)
	}
}

// SuggestionList returns suggestions ranked by score.
func SuggestionList(svc suggestions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "suggestions service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.SuggestionStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseSuggestionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		items, err := svc.List(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}

// SuggestionVote toggles the caller's vote on a suggestion.
func SuggestionVote(svc suggestions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "suggestions service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		suggestionID, err := parseIDParam(r, "suggestionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body voteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		direction, err := enums.ParseVoteDirection(body.Direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vote direction"))
			return
		}

		result, err := svc.Vote(r.Context(), userID, suggestionID, direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SuggestionSetStatus moves a suggestion out of the pending state. Admin only.
func SuggestionSetStatus(svc suggestions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "suggestions service unavailable")
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

		var body suggestionStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSuggestionStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		if err := svc.SetStatus(r.Context(), suggestions.StatusInput{
			SuggestionID: suggestionID,
			Status:       status,
			ActorID:      actorID,
			ActorRole:    actorRole,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}
