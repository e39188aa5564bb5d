package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/events"
)

var (
	ErrStatusAlreadySet        = errors.New("table status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid table status transition")
	ErrTableDisabled           = errors.New("table is disabled")
	ErrTableHasOpenOrder       = errors.New("table has an order that is not served yet")
	ErrTableAlreadyDisabled    = errors.New("table is already disabled")
	ErrTableAlreadyEnabled     = errors.New("table is already enabled")
	ErrInvalidTableInput       = errors.New("invalid table input")
)

// Orders in these statuses keep a table pinned: it cannot be freed or
// disabled until the kitchen is done with it.
var openOrderStatuses = []string{"pending", "preparing"}

type Service interface {
	Create(ctx context.Context, number, capacity int) (*Table, error)
	GetByID(ctx context.Context, id int64) (*Table, error)
	List(ctx context.Context) ([]Table, error)
	ListAvailable(ctx context.Context) ([]Table, error)
	SetStatus(ctx context.Context, id int64, newStatus Status) (*Table, error)
	Disable(ctx context.Context, id int64) (*Table, error)
	Enable(ctx context.Context, id int64) (*Table, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo      Repository
	publisher events.Publisher
}

func NewService(repo Repository, publisher events.Publisher) Service {
	return &service{repo: repo, publisher: publisher}
}

func (s *service) Create(ctx context.Context, number, capacity int) (*Table, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: number must be positive", ErrInvalidTableInput)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidTableInput)
	}

	t := &Table{
		Number:   number,
		Capacity: capacity,
		Status:   StatusAvailable,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, ErrTableNumberExists) {
			return nil, ErrTableNumberExists
		}
		log.Error().Err(err).Int("number", number).Msg("service: failed to create table")
		return nil, fmt.Errorf("service: failed to create table: %w", err)
	}

	s.broadcast(ctx, events.TypeTableCreated, t)

	return t, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Table, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		log.Error().Err(err).Int64("table_id", id).Msg("service: failed to fetch table")
		return nil, fmt.Errorf("service: failed to fetch table: %w", err)
	}

	return t, nil
}

func (s *service) List(ctx context.Context) ([]Table, error) {
	tables, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list tables")
		return nil, fmt.Errorf("service: failed to list tables: %w", err)
	}

	return tables, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]Table, error) {
	tables, err := s.repo.ListByStatus(ctx, StatusAvailable)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list available tables")
		return nil, fmt.Errorf("service: failed to list available tables: %w", err)
	}

	return tables, nil
}

// SetStatus applies one transition of the table status machine. A disabled
// table is frozen, and occupied tables stay occupied while an order is
// still pending or preparing.
func (s *service) SetStatus(ctx context.Context, id int64, newStatus Status) (*Table, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("service: failed to get table for status update: %w", err)
	}

	if !t.IsActive {
		return nil, ErrTableDisabled
	}

	if t.Status == newStatus {
		return nil, ErrStatusAlreadySet
	}

	if !CanTransition(t.Status, newStatus) {
		log.Warn().
			Int64("table_id", id).
			Str("current_status", string(t.Status)).
			Str("new_status", string(newStatus)).
			Msg("service: invalid table status transition attempt")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, t.Status, newStatus)
	}

	if t.Status == StatusOccupied && newStatus == StatusAvailable {
		hasOpen, err := s.repo.HasOrderInStatuses(ctx, id, openOrderStatuses)
		if err != nil {
			return nil, fmt.Errorf("service: failed to check open orders: %w", err)
		}
		if hasOpen {
			return nil, ErrTableHasOpenOrder
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		log.Error().Err(err).Int64("table_id", id).Msg("service: failed to update table status")
		return nil, fmt.Errorf("service: failed to update table status: %w", err)
	}

	t.Status = newStatus
	s.broadcast(ctx, events.TypeTableUpdated, t)

	log.Info().
		Int64("table_id", id).
		Str("new_status", string(newStatus)).
		Msg("service: table status updated")

	return t, nil
}

func (s *service) Disable(ctx context.Context, id int64) (*Table, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("service: failed to get table for disable: %w", err)
	}

	if !t.IsActive {
		return nil, ErrTableAlreadyDisabled
	}

	hasOpen, err := s.repo.HasOrderInStatuses(ctx, id, openOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check open orders: %w", err)
	}
	if hasOpen {
		return nil, ErrTableHasOpenOrder
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		log.Error().Err(err).Int64("table_id", id).Msg("service: failed to disable table")
		return nil, fmt.Errorf("service: failed to disable table: %w", err)
	}

	t.IsActive = false
	s.broadcast(ctx, events.TypeTableUpdated, t)

	return t, nil
}

func (s *service) Enable(ctx context.Context, id int64) (*Table, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("service: failed to get table for enable: %w", err)
	}

	if t.IsActive {
		return nil, ErrTableAlreadyEnabled
	}

	if err := s.repo.SetActive(ctx, id, true); err != nil {
		log.Error().Err(err).Int64("table_id", id).Msg("service: failed to enable table")
		return nil, fmt.Errorf("service: failed to enable table: %w", err)
	}

	t.IsActive = true
	s.broadcast(ctx, events.TypeTableUpdated, t)

	return t, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return ErrTableNotFound
		}
		log.Error().Err(err).Int64("table_id", id).Msg("service: failed to delete table")
		return fmt.Errorf("service: failed to delete table: %w", err)
	}

	s.broadcast(ctx, events.TypeTableDeleted, map[string]int64{"id": id})

	return nil
}

func (s *service) broadcast(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, events.New(eventType, payload)); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("service: failed to publish event")
	}
}
