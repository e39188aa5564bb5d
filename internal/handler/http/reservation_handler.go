package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/reservation"
)

type ReservationRequest struct {
	TableID         int64     `json:"table_id" validate:"required,gt=0"`
	CustomerName    string    `json:"customer_name" validate:"required,min=2"`
	CustomerContact string    `json:"customer_contact" validate:"required,min=5"`
	ReservationTime time.Time `json:"reservation_time" validate:"required"`
	NumberOfPeople  int       `json:"number_of_people" validate:"required,gt=0"`
}

func (r ReservationRequest) toInput() reservation.Input {
	return reservation.Input{
		TableID:         r.TableID,
		CustomerName:    r.CustomerName,
		CustomerContact: r.CustomerContact,
		ReservationTime: r.ReservationTime,
		NumberOfPeople:  r.NumberOfPeople,
	}
}

type ReservationHandler struct {
	service  reservation.Service
	validate *validator.Validate
}

func NewReservationHandler(service reservation.Service) *ReservationHandler {
	return &ReservationHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ReservationHandler) RegisterRoutes(router chi.Router) {
	router.Post("/reservations", h.handleCreate)
	router.Get("/reservations", h.handleListMine)
	router.Get("/reservations/{id}", h.handleGet)
	router.Post("/reservations/{id}/confirm", h.handleConfirm)
	router.Post("/reservations/{id}/cancel", h.handleCancel)
	router.Put("/reservations/{id}", h.handleUpdate)
}

func (h *ReservationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req ReservationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), callerFromRequest(r), req.toInput())
	if err != nil {
		log.Error().Err(err).Int64("table_id", req.TableID).Msg("Failed to create reservation")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ReservationHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ListByCustomer(r.Context(), callerFromRequest(r))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list reservations")
		return
	}

	respondWithJSON(w, http.StatusOK, reservations)
}

func (h *ReservationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.GetByID(r.Context(), callerFromRequest(r), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Confirm(r.Context(), callerFromRequest(r), id)
	if err != nil {
		log.Error().Err(err).Int64("reservation_id", id).Msg("Failed to confirm reservation")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Cancel(r.Context(), callerFromRequest(r), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ReservationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	res, err := h.service.Update(r.Context(), callerFromRequest(r), id, req.toInput())
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}
