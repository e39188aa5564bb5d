package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/events"
	"github.com/nhtruong/restaurant-pos/internal/principal"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

var (
	ErrForbidden            = errors.New("caller may not act on this reservation")
	ErrTimeNotInFuture      = errors.New("reservation time must be in the future")
	ErrInvalidPartySize     = errors.New("number of people must be positive")
	ErrPartyExceedsCapacity = errors.New("party does not fit the table capacity")
	ErrNotPending           = errors.New("reservation is not pending")
	ErrAlreadyCancelled     = errors.New("reservation is already cancelled")
	ErrWindowClosed         = errors.New("reservation can no longer be changed this close to its time")
)

// Input carries the customer-editable reservation fields.
type Input struct {
	TableID         int64
	CustomerName    string
	CustomerContact string
	ReservationTime time.Time
	NumberOfPeople  int
}

type Service interface {
	Create(ctx context.Context, caller principal.Principal, in Input) (*Reservation, error)
	GetByID(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error)
	ListByCustomer(ctx context.Context, caller principal.Principal) ([]Reservation, error)
	Confirm(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error)
	Cancel(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error)
	Update(ctx context.Context, caller principal.Principal, id int64, in Input) (*Reservation, error)
}

type service struct {
	repo      Repository
	tables    table.Repository
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, tables table.Repository, publisher events.Publisher) Service {
	return &service{
		repo:      repo,
		tables:    tables,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *service) validate(ctx context.Context, in Input) error {
	if !in.ReservationTime.After(s.now()) {
		return ErrTimeNotInFuture
	}
	if in.NumberOfPeople <= 0 {
		return ErrInvalidPartySize
	}

	tbl, err := s.tables.GetByID(ctx, in.TableID)
	if err != nil {
		if errors.Is(err, table.ErrTableNotFound) {
			return table.ErrTableNotFound
		}
		return fmt.Errorf("service: failed to get table for reservation: %w", err)
	}
	if !tbl.IsActive {
		return table.ErrTableDisabled
	}
	if in.NumberOfPeople > tbl.Capacity {
		return fmt.Errorf("%w: %d people on a table for %d", ErrPartyExceedsCapacity, in.NumberOfPeople, tbl.Capacity)
	}

	return nil
}

func (s *service) Create(ctx context.Context, caller principal.Principal, in Input) (*Reservation, error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	res := &Reservation{
		TableID:         in.TableID,
		CustomerID:      caller.UserID,
		CustomerName:    in.CustomerName,
		CustomerContact: in.CustomerContact,
		ReservationTime: in.ReservationTime,
		NumberOfPeople:  in.NumberOfPeople,
		Status:          StatusPending,
	}

	if err := s.repo.Create(ctx, res); err != nil {
		log.Error().Err(err).Int64("table_id", in.TableID).Msg("service: failed to create reservation")
		return nil, fmt.Errorf("service: failed to create reservation: %w", err)
	}

	log.Info().
		Int64("reservation_id", res.ID).
		Int64("table_id", res.TableID).
		Time("reservation_time", res.ReservationTime).
		Msg("service: reservation created")

	return res, nil
}

func (s *service) GetByID(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		log.Error().Err(err).Int64("reservation_id", id).Msg("service: failed to fetch reservation")
		return nil, fmt.Errorf("service: failed to fetch reservation: %w", err)
	}

	if !caller.IsStaff() && res.CustomerID != caller.UserID {
		return nil, ErrForbidden
	}

	return res, nil
}

func (s *service) ListByCustomer(ctx context.Context, caller principal.Principal) ([]Reservation, error) {
	reservations, err := s.repo.ListByCustomer(ctx, caller.UserID)
	if err != nil {
		log.Error().Err(err).Int64("customer_id", caller.UserID).Msg("service: failed to list reservations")
		return nil, fmt.Errorf("service: failed to list reservations: %w", err)
	}

	return reservations, nil
}

// Confirm moves a pending reservation to confirmed and holds the table. The
// table move goes through the normal status machine, so confirming a
// reservation on an occupied table fails the same way a manual status change
// would.
func (s *service) Confirm(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}

	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("service: failed to get reservation for confirmation: %w", err)
	}

	if res.Status != StatusPending {
		return nil, ErrNotPending
	}

	tbl, err := s.tables.GetByID(ctx, res.TableID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get table for confirmation: %w", err)
	}
	if !tbl.IsActive {
		return nil, table.ErrTableDisabled
	}
	if !table.CanTransition(tbl.Status, table.StatusReserved) {
		return nil, fmt.Errorf("%w: %s -> %s", table.ErrInvalidStatusTransition, tbl.Status, table.StatusReserved)
	}

	if err := s.tables.UpdateStatus(ctx, tbl.ID, table.StatusReserved); err != nil {
		log.Error().Err(err).Int64("table_id", tbl.ID).Msg("service: failed to reserve table")
		return nil, fmt.Errorf("service: failed to reserve table: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed); err != nil {
		return nil, fmt.Errorf("service: failed to confirm reservation: %w", err)
	}
	res.Status = StatusConfirmed

	tbl.Status = table.StatusReserved
	s.broadcast(ctx, events.TypeTableUpdated, tbl)

	log.Info().Int64("reservation_id", id).Int64("table_id", tbl.ID).Msg("service: reservation confirmed")

	return res, nil
}

// Cancel is open to the owning customer inside the cancellation window.
// Admins may cancel any reservation at any time, window included.
func (s *service) Cancel(ctx context.Context, caller principal.Principal, id int64) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("service: failed to get reservation for cancellation: %w", err)
	}

	if !caller.IsAdmin() && res.CustomerID != caller.UserID {
		return nil, ErrForbidden
	}
	if res.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !caller.IsAdmin() && !res.CanCancelAt(s.now()) {
		return nil, ErrWindowClosed
	}

	wasConfirmed := res.Status == StatusConfirmed

	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, fmt.Errorf("service: failed to cancel reservation: %w", err)
	}
	res.Status = StatusCancelled

	// The hold on the table is released only if nobody has taken it since.
	if wasConfirmed {
		tbl, err := s.tables.GetByID(ctx, res.TableID)
		if err == nil && tbl.Status == table.StatusReserved {
			if err := s.tables.UpdateStatus(ctx, tbl.ID, table.StatusAvailable); err != nil {
				log.Error().Err(err).Int64("table_id", tbl.ID).Msg("service: failed to release reserved table")
			} else {
				tbl.Status = table.StatusAvailable
				s.broadcast(ctx, events.TypeTableUpdated, tbl)
			}
		}
	}

	log.Info().Int64("reservation_id", id).Msg("service: reservation cancelled")

	return res, nil
}

func (s *service) Update(ctx context.Context, caller principal.Principal, id int64, in Input) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("service: failed to get reservation for update: %w", err)
	}

	if !caller.IsAdmin() && res.CustomerID != caller.UserID {
		return nil, ErrForbidden
	}
	if res.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !caller.IsAdmin() && !res.CanCancelAt(s.now()) {
		return nil, ErrWindowClosed
	}

	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	res.TableID = in.TableID
	res.CustomerName = in.CustomerName
	res.CustomerContact = in.CustomerContact
	res.ReservationTime = in.ReservationTime
	res.NumberOfPeople = in.NumberOfPeople

	if err := s.repo.Update(ctx, res); err != nil {
		log.Error().Err(err).Int64("reservation_id", id).Msg("service: failed to update reservation")
		return nil, fmt.Errorf("service: failed to update reservation: %w", err)
	}

	return res, nil
}

func (s *service) broadcast(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, events.New(eventType, payload)); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("service: failed to publish event")
	}
}
