package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
	"github.com/bookmarket-io/bookmarket-backend/api/validators"
	"github.com/bookmarket-io/bookmarket-backend/internal/orders"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
)

type checkoutRequest struct {
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Checkout converts the caller's active cart into a pending order.
func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Checkout(r.Context(), orders.CheckoutInput{
			UserID:   userID,
			Currency: strings.ToUpper(body.Currency),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderGet returns a single order. Buyers see only their own.
func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actorID, actorRole, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderList pages through the caller's own orders.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
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

		filters, err := orderFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// OrderCancel cancels a pending order and releases its reserved stock.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:   orderID,
			ActorID:   actorID,
			ActorRole: actorRole,
			Reason:    validators.SanitizeString(body.Reason, 500),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// OrderMarkPaid records a completed payment. Admin only.
func OrderMarkPaid(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, "paid", orders.Service.MarkPaid)
}

// OrderMarkShipped records fulfilment hand-off. Admin only.
func OrderMarkShipped(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, "shipped", orders.Service.MarkShipped)
}

// OrderMarkDelivered closes out fulfilment. Admin only.
func OrderMarkDelivered(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, "delivered", orders.Service.MarkDelivered)
}

func orderTransition(
	svc orders.Service,
	logg *logger.Logger,
	status string,
	transition func(orders.Service, context.Context, orders.TransitionInput) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := transition(svc, r.Context(), orders.TransitionInput{
			OrderID:   orderID,
			ActorID:   actorID,
			ActorRole: actorRole,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}

func orderFiltersFromQuery(r *http.Request) (orders.ListFilters, error) {
	q := r.URL.Query()
	var filters orders.ListFilters
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return orders.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return orders.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status filter")
		}
		filters.PaymentStatus = &status
	}
	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return orders.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_from filter")
		}
		filters.DateFrom = &from
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return orders.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_to filter")
		}
		filters.DateTo = &to
	}
	return filters, nil
}
