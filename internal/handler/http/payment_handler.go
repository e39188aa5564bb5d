package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/payment"
)

type CreatePaymentIntentRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type PaymentHandler struct {
	service  payment.Service
	validate *validator.Validate
}

func NewPaymentHandler(service payment.Service) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/payments/intent", h.handleCreateIntent)
	router.Post("/payments/webhook", h.handleWebhook)
	router.Get("/orders/{id}/payment-status", h.handleCheckStatus)
	router.Get("/orders/{id}/invoice", h.handleGetInvoice)
}

func (h *PaymentHandler) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentIntentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), req.OrderID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", req.OrderID).Msg("Failed to create payment intent")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, intent)
}

// handleWebhook acknowledges the aggregator with 200 for everything except
// an unreadable body or an internal failure, so unmatched notifications are
// not redelivered.
func (h *PaymentHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.service.HandleWebhook(r.Context(), raw); err != nil {
		log.Error().Err(err).Msg("Failed to process payment webhook")
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PaymentHandler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.service.CheckStatus(r.Context(), orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *PaymentHandler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := h.service.GetInvoice(r.Context(), orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, invoice)
}
