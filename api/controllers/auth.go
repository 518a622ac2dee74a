package controllers

import (
	"net/http"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/auth"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=120"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthRegister wires account creation into the HTTP layer.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Register(r.Context(), auth.RegisterInput{
			Email:       body.Email,
			DisplayName: body.DisplayName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}

// AuthLogin exchanges a known account for an access token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}
