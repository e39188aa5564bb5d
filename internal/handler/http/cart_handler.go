package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/cart"
)

type OpenCartRequest struct {
	TableID int64 `json:"table_id" validate:"required,gt=0"`
}

type AddCartItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Note      string `json:"note"`
}

// UpdateCartItemRequest distinguishes absent fields from zero values:
// quantity 0 is an explicit removal, a missing quantity leaves it alone.
type UpdateCartItemRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty"`
	Note     *string `json:"note"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Post("/carts", h.handleOpen)
	router.Get("/tables/{tableID}/cart", h.handleGetByTable)
	router.Post("/carts/{id}/items", h.handleAddItem)
	router.Patch("/cart-items/{itemID}", h.handleUpdateItem)
	router.Delete("/cart-items/{itemID}", h.handleRemoveItem)
}

func (h *CartHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenCartRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	opened, err := h.service.Open(r.Context(), req.TableID)
	if err != nil {
		log.Error().Err(err).Int64("table_id", req.TableID).Msg("Failed to open cart")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, opened)
}

func (h *CartHandler) handleGetByTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseIDParam(r, "tableID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.GetByTable(r.Context(), tableID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AddCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	updated, err := h.service.AddItem(r.Context(), cartID, req.ProductID, req.Quantity, req.Note)
	if err != nil {
		log.Error().Err(err).Int64("cart_id", cartID).Int64("product_id", req.ProductID).Msg("Failed to add cart item")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseIDParam(r, "itemID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := h.service.UpdateItem(r.Context(), itemID, req.Quantity, req.Note)
	if err != nil {
		log.Error().Err(err).Int64("item_id", itemID).Msg("Failed to update cart item")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseIDParam(r, "itemID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.RemoveItem(r.Context(), itemID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
