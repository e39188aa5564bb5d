package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/order"
)

type CreateOrderRequest struct {
	TableID     int64   `json:"table_id" validate:"required,gt=0"`
	CartItemIDs []int64 `json:"cart_item_ids" validate:"required,min=1,dive,gt=0"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing served paid"`
}

type SwitchTableRequest struct {
	NewTableID int64 `json:"new_table_id" validate:"required,gt=0"`
}

type SeparateTableRequest struct {
	OldTableID int64              `json:"old_table_id" validate:"required,gt=0"`
	NewTableID int64              `json:"new_table_id" validate:"required,gt=0"`
	Items      []SeparateItemLine `json:"items" validate:"required,min=1,dive"`
}

type SeparateItemLine struct {
	OrderItemID int64 `json:"order_item_id" validate:"required,gt=0"`
	Quantity    int   `json:"quantity" validate:"required,gt=0"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreate)
	router.Get("/orders", h.handleList)
	router.Get("/orders/{id}", h.handleGet)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
	router.Post("/orders/{id}/switch-table", h.handleSwitchTable)
	router.Post("/orders/separate-table", h.handleSeparateTable)
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), req.TableID, req.CartItemIDs)
	if err != nil {
		log.Error().Err(err).Int64("table_id", req.TableID).Msg("Failed to create order")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	spec := order.ListSpec{}

	if raw := r.URL.Query().Get("status"); raw != "" {
		spec.Statuses = []order.Status{order.Status(raw)}
	}

	orders, err := h.service.List(r.Context(), spec)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateOrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		log.Error().Err(err).Int64("order_id", id).Str("status", req.Status).Msg("Failed to update order status")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleSwitchTable(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SwitchTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	moved, err := h.service.SwitchTable(r.Context(), id, req.NewTableID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", id).Int64("new_table_id", req.NewTableID).Msg("Failed to switch table")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, moved)
}

func (h *OrderHandler) handleSeparateTable(w http.ResponseWriter, r *http.Request) {
	var req SeparateTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	lines := make([]order.SplitLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, order.SplitLine{
			OrderItemID: item.OrderItemID,
			Quantity:    item.Quantity,
		})
	}

	outcome, err := h.service.SeparateTable(r.Context(), req.OldTableID, req.NewTableID, lines)
	if err != nil {
		log.Error().Err(err).Int64("old_table_id", req.OldTableID).Int64("new_table_id", req.NewTableID).Msg("Failed to separate table")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, outcome)
}
