package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/cart"
	"github.com/nhtruong/restaurant-pos/internal/catalog"
	"github.com/nhtruong/restaurant-pos/internal/order"
	"github.com/nhtruong/restaurant-pos/internal/payment"
	"github.com/nhtruong/restaurant-pos/internal/principal"
	"github.com/nhtruong/restaurant-pos/internal/reservation"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
	}
	return details
}

func respondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, table.ErrTableNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrCartItemNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrOrderItemNotFound),
		errors.Is(err, payment.ErrInvoiceNotFound),
		errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound

	case errors.Is(err, table.ErrTableNumberExists),
		errors.Is(err, table.ErrInvalidStatusTransition),
		errors.Is(err, table.ErrStatusAlreadySet),
		errors.Is(err, table.ErrTableHasOpenOrder),
		errors.Is(err, table.ErrTableDisabled),
		errors.Is(err, table.ErrTableAlreadyDisabled),
		errors.Is(err, table.ErrTableAlreadyEnabled),
		errors.Is(err, cart.ErrActiveCartExists),
		errors.Is(err, cart.ErrCartNotActive),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, order.ErrStatusAlreadySet),
		errors.Is(err, order.ErrTableNotOccupied),
		errors.Is(err, order.ErrNoActiveCart),
		errors.Is(err, order.ErrNoPreparingOrder),
		errors.Is(err, payment.ErrOrderAlreadyPaid),
		errors.Is(err, reservation.ErrNotPending),
		errors.Is(err, reservation.ErrAlreadyCancelled),
		errors.Is(err, reservation.ErrWindowClosed):
		return http.StatusConflict

	case errors.Is(err, table.ErrInvalidTableInput),
		errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidCartItems),
		errors.Is(err, order.ErrInsufficientQuantity),
		errors.Is(err, order.ErrEmptyItemList),
		errors.Is(err, order.ErrInvalidSplitLine),
		errors.Is(err, reservation.ErrTimeNotInFuture),
		errors.Is(err, reservation.ErrInvalidPartySize),
		errors.Is(err, reservation.ErrPartyExceedsCapacity):
		return http.StatusBadRequest

	case errors.Is(err, reservation.ErrForbidden):
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// callerFromRequest translates the trusted gateway identity headers into a
// Principal. An absent identity defaults to an anonymous customer.
func callerFromRequest(r *http.Request) principal.Principal {
	p := principal.Principal{Role: principal.RoleCustomer}

	if raw := r.Header.Get("X-User-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			p.UserID = id
		}
	}
	if role := r.Header.Get("X-User-Role"); role != "" {
		p.Role = principal.Role(role)
	}

	return p
}

func decodeJSONBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
