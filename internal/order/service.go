package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/cart"
	"github.com/nhtruong/restaurant-pos/internal/events"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

var (
	ErrStatusAlreadySet        = errors.New("order status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrTableNotOccupied        = errors.New("table is not occupied")
	ErrNoActiveCart            = errors.New("table has no active cart")
	ErrEmptyItemList           = errors.New("item list must not be empty")
	ErrInvalidSplitLine        = errors.New("split quantity must be positive")
)

// SeparateOutcome returns both affected orders after a split. Source is nil
// when the split drained the source order entirely.
type SeparateOutcome struct {
	Source *Order `json:"source"`
	Target *Order `json:"target"`
}

type Service interface {
	Create(ctx context.Context, tableID int64, cartItemIDs []int64) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, spec ListSpec) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus Status) (*Order, error)
	SwitchTable(ctx context.Context, orderID, newTableID int64) (*Order, error)
	SeparateTable(ctx context.Context, oldTableID, newTableID int64, lines []SplitLine) (*SeparateOutcome, error)
}

type service struct {
	repo      Repository
	tables    table.Repository
	carts     cart.Repository
	publisher events.Publisher
}

func NewService(repo Repository, tables table.Repository, carts cart.Repository, publisher events.Publisher) Service {
	return &service{
		repo:      repo,
		tables:    tables,
		carts:     carts,
		publisher: publisher,
	}
}

// Create commits the selected cart items of an occupied table into a new
// preparing order with frozen prices.
func (s *service) Create(ctx context.Context, tableID int64, cartItemIDs []int64) (*Order, error) {
	if len(cartItemIDs) == 0 {
		return nil, ErrEmptyItemList
	}

	tbl, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		if errors.Is(err, table.ErrTableNotFound) {
			return nil, table.ErrTableNotFound
		}
		return nil, fmt.Errorf("service: failed to get table for order creation: %w", err)
	}

	if !tbl.IsActive {
		return nil, table.ErrTableDisabled
	}
	if tbl.Status != table.StatusOccupied {
		return nil, ErrTableNotOccupied
	}

	activeCart, err := s.carts.GetActiveByTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrNoActiveCart
		}
		return nil, fmt.Errorf("service: failed to get active cart: %w", err)
	}

	orderID, err := s.repo.CreateFromCart(ctx, tableID, activeCart.ID, cartItemIDs)
	if err != nil {
		if errors.Is(err, ErrInvalidCartItems) {
			return nil, ErrInvalidCartItems
		}
		log.Error().Err(err).Int64("table_id", tableID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	created, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload created order: %w", err)
	}

	s.broadcast(ctx, events.TypeOrderCreated, created)

	log.Info().
		Int64("order_id", created.ID).
		Int64("table_id", tableID).
		Str("total_amount", created.TotalAmount.String()).
		Msg("service: order created")

	return created, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	return o, nil
}

func (s *service) List(ctx context.Context, spec ListSpec) ([]Order, error) {
	orders, err := s.repo.List(ctx, spec)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID int64, newStatus Status) (*Order, error) {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		return nil, ErrStatusAlreadySet
	}

	if !CanTransition(current.Status, newStatus) {
		log.Warn().
			Int64("order_id", orderID).
			Str("current_status", string(current.Status)).
			Str("new_status", string(newStatus)).
			Msg("service: invalid order status transition attempt")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	current.Status = newStatus
	s.broadcast(ctx, events.TypeOrderUpdated, current)

	return current, nil
}

func (s *service) SwitchTable(ctx context.Context, orderID, newTableID int64) (*Order, error) {
	if err := s.repo.SwitchTable(ctx, orderID, newTableID); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, table.ErrTableNotFound):
			return nil, table.ErrTableNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Int64("new_table_id", newTableID).Msg("service: failed to switch table")
		return nil, fmt.Errorf("service: failed to switch table: %w", err)
	}

	moved, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload moved order: %w", err)
	}

	s.broadcast(ctx, events.TypeOrderUpdated, moved)

	return moved, nil
}

// SeparateTable splits partial quantities off the old table's preparing
// order onto the new table's order.
func (s *service) SeparateTable(ctx context.Context, oldTableID, newTableID int64, lines []SplitLine) (*SeparateOutcome, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyItemList
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d requested %d", ErrInvalidSplitLine, line.OrderItemID, line.Quantity)
		}
	}

	result, err := s.repo.Separate(ctx, oldTableID, newTableID, lines)
	if err != nil {
		switch {
		case errors.Is(err, table.ErrTableNotFound):
			return nil, table.ErrTableNotFound
		case errors.Is(err, ErrNoPreparingOrder):
			return nil, ErrNoPreparingOrder
		case errors.Is(err, ErrOrderItemNotFound):
			return nil, ErrOrderItemNotFound
		case errors.Is(err, ErrInsufficientQuantity):
			return nil, err
		}
		log.Error().Err(err).Int64("old_table_id", oldTableID).Int64("new_table_id", newTableID).Msg("service: failed to separate table")
		return nil, fmt.Errorf("service: failed to separate table: %w", err)
	}

	outcome := &SeparateOutcome{}

	outcome.Target, err = s.repo.GetByID(ctx, result.TargetOrderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload target order: %w", err)
	}
	s.broadcast(ctx, events.TypeOrderUpdated, outcome.Target)

	if !result.SourceDeleted {
		outcome.Source, err = s.repo.GetByID(ctx, result.SourceOrderID)
		if err != nil {
			return nil, fmt.Errorf("service: failed to reload source order: %w", err)
		}
		s.broadcast(ctx, events.TypeOrderUpdated, outcome.Source)
	}

	return outcome, nil
}

func (s *service) broadcast(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, events.New(eventType, payload)); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("service: failed to publish event")
	}
}
