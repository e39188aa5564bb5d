package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/table"
)

type CreateTableRequest struct {
	Number   int `json:"number" validate:"required,gt=0"`
	Capacity int `json:"capacity" validate:"required,gt=0"`
}

type SetTableStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available occupied reserved"`
}

type TableHandler struct {
	service  table.Service
	validate *validator.Validate
}

func NewTableHandler(service table.Service) *TableHandler {
	return &TableHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *TableHandler) RegisterRoutes(router chi.Router) {
	router.Post("/tables", h.handleCreate)
	router.Get("/tables", h.handleList)
	router.Get("/tables/available", h.handleListAvailable)
	router.Get("/tables/{id}", h.handleGet)
	router.Patch("/tables/{id}/status", h.handleSetStatus)
	router.Post("/tables/{id}/disable", h.handleDisable)
	router.Post("/tables/{id}/enable", h.handleEnable)
	router.Delete("/tables/{id}", h.handleDelete)
}

func (h *TableHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), req.Number, req.Capacity)
	if err != nil {
		log.Error().Err(err).Int("number", req.Number).Msg("Failed to create table")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *TableHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list tables")
		return
	}

	respondWithJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.ListAvailable(r.Context())
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list available tables")
		return
	}

	respondWithJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tbl, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, tbl)
}

func (h *TableHandler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetTableStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	updated, err := h.service.SetStatus(r.Context(), id, table.Status(req.Status))
	if err != nil {
		log.Error().Err(err).Int64("table_id", id).Str("status", req.Status).Msg("Failed to set table status")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *TableHandler) handleDisable(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Disable(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *TableHandler) handleEnable(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Enable(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *TableHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
