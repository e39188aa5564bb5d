package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/catalog"
	"github.com/nhtruong/restaurant-pos/internal/events"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

var (
	ErrCartNotActive      = errors.New("cart is not active")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

type Service interface {
	Open(ctx context.Context, tableID int64) (*Cart, error)
	GetByTable(ctx context.Context, tableID int64) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int, note string) (*Cart, error)
	UpdateItem(ctx context.Context, itemID int64, quantity *int, note *string) (*Cart, error)
	RemoveItem(ctx context.Context, itemID int64) (*Cart, error)
}

type service struct {
	repo      Repository
	tables    table.Repository
	products  catalog.Repository
	publisher events.Publisher
}

func NewService(repo Repository, tables table.Repository, products catalog.Repository, publisher events.Publisher) Service {
	return &service{
		repo:      repo,
		tables:    tables,
		products:  products,
		publisher: publisher,
	}
}

func (s *service) Open(ctx context.Context, tableID int64) (*Cart, error) {
	tbl, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		if errors.Is(err, table.ErrTableNotFound) {
			return nil, table.ErrTableNotFound
		}
		return nil, fmt.Errorf("service: failed to get table for cart open: %w", err)
	}

	if !tbl.IsActive {
		return nil, table.ErrTableDisabled
	}

	c, err := s.repo.CreateCart(ctx, tableID)
	if err != nil {
		if errors.Is(err, ErrActiveCartExists) {
			return nil, ErrActiveCartExists
		}
		log.Error().Err(err).Int64("table_id", tableID).Msg("service: failed to open cart")
		return nil, fmt.Errorf("service: failed to open cart: %w", err)
	}

	s.broadcast(ctx, c)

	return c, nil
}

func (s *service) GetByTable(ctx context.Context, tableID int64) (*Cart, error) {
	c, err := s.repo.GetActiveByTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		log.Error().Err(err).Int64("table_id", tableID).Msg("service: failed to fetch cart")
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}

	return c, nil
}

// AddItem merges a product into the active cart. Adding a product that is
// already in the cart accumulates quantity; the note is overwritten with
// the latest value.
func (s *service) AddItem(ctx context.Context, cartID, productID int64, quantity int, note string) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("service: failed to get cart: %w", err)
	}

	if c.Status != StatusActive {
		return nil, ErrCartNotActive
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to get product: %w", err)
	}

	if !product.Available() {
		return nil, ErrProductUnavailable
	}

	if err := s.repo.UpsertItem(ctx, cartID, productID, quantity, note); err != nil {
		log.Error().Err(err).Int64("cart_id", cartID).Int64("product_id", productID).Msg("service: failed to add cart item")
		return nil, fmt.Errorf("service: failed to add cart item: %w", err)
	}

	return s.reload(ctx, cartID)
}

// UpdateItem overwrites quantity and note. A quantity of zero or less
// deletes the line; when that empties the cart, the table reverts to
// available. Nil fields keep their current value.
func (s *service) UpdateItem(ctx context.Context, itemID int64, quantity *int, note *string) (*Cart, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("service: failed to get cart item: %w", err)
	}

	c, err := s.repo.GetCartByID(ctx, item.CartID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get cart: %w", err)
	}

	if c.Status != StatusActive {
		return nil, ErrCartNotActive
	}

	newQuantity := item.Quantity
	if quantity != nil {
		newQuantity = *quantity
	}
	newNote := item.Note
	if note != nil {
		newNote = *note
	}

	if newQuantity <= 0 {
		if err := s.repo.DeleteItem(ctx, itemID); err != nil {
			log.Error().Err(err).Int64("cart_item_id", itemID).Msg("service: failed to delete cart item")
			return nil, fmt.Errorf("service: failed to delete cart item: %w", err)
		}
	} else {
		if err := s.repo.OverwriteItem(ctx, itemID, newQuantity, newNote); err != nil {
			log.Error().Err(err).Int64("cart_item_id", itemID).Msg("service: failed to update cart item")
			return nil, fmt.Errorf("service: failed to update cart item: %w", err)
		}
	}

	return s.reload(ctx, item.CartID)
}

func (s *service) RemoveItem(ctx context.Context, itemID int64) (*Cart, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("service: failed to get cart item: %w", err)
	}

	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		log.Error().Err(err).Int64("cart_item_id", itemID).Msg("service: failed to remove cart item")
		return nil, fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	return s.reload(ctx, item.CartID)
}

func (s *service) reload(ctx context.Context, cartID int64) (*Cart, error) {
	c, err := s.repo.GetWithItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload cart: %w", err)
	}

	s.broadcast(ctx, c)

	return c, nil
}

func (s *service) broadcast(ctx context.Context, c *Cart) {
	if err := s.publisher.Publish(ctx, events.New(events.TypeCartUpdated, c)); err != nil {
		log.Error().Err(err).Int64("cart_id", c.ID).Msg("service: failed to publish cart event")
	}
}
