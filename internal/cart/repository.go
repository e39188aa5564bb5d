package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nhtruong/restaurant-pos/internal/catalog"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrActiveCartExists = errors.New("table already has an active cart")
)

type Repository interface {
	CreateCart(ctx context.Context, tableID int64) (*Cart, error)
	GetCartByID(ctx context.Context, id int64) (*Cart, error)
	GetWithItems(ctx context.Context, cartID int64) (*Cart, error)
	GetActiveByTable(ctx context.Context, tableID int64) (*Cart, error)
	GetItemByID(ctx context.Context, id int64) (*CartItem, error)
	UpsertItem(ctx context.Context, cartID, productID int64, quantity int, note string) error
	OverwriteItem(ctx context.Context, itemID int64, quantity int, note string) error
	DeleteItem(ctx context.Context, itemID int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCart(ctx context.Context, tableID int64) (*Cart, error) {
	query := `
		INSERT INTO carts (table_id, status)
		VALUES ($1, $2)
		RETURNING id, table_id, status, created_at, updated_at
	`

	var c Cart
	err := r.db.QueryRow(ctx, query, tableID, StatusActive).Scan(
		&c.ID,
		&c.TableID,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrActiveCartExists
		}
		return nil, fmt.Errorf("repository: failed to insert cart for table %d: %w", tableID, err)
	}

	c.Items = make([]CartItem, 0)
	return &c, nil
}

func (r *postgresRepository) GetCartByID(ctx context.Context, id int64) (*Cart, error) {
	query := `
		SELECT id, table_id, status, created_at, updated_at
		FROM carts
		WHERE id = $1
	`

	var c Cart
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.TableID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart %d: %w", id, err)
	}

	return &c, nil
}

func (r *postgresRepository) GetWithItems(ctx context.Context, cartID int64) (*Cart, error) {
	c, err := r.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	c.Items = items
	return c, nil
}

func (r *postgresRepository) GetActiveByTable(ctx context.Context, tableID int64) (*Cart, error) {
	query := `
		SELECT id, table_id, status, created_at, updated_at
		FROM carts
		WHERE table_id = $1 AND status = $2
	`

	var c Cart
	err := r.db.QueryRow(ctx, query, tableID, StatusActive).
		Scan(&c.ID, &c.TableID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select active cart for table %d: %w", tableID, err)
	}

	items, err := r.loadItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	c.Items = items
	return &c, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, cartID int64) ([]CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.note, ci.created_at, ci.updated_at,
		       p.id, p.name, p.description, p.price, p.status, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for cart %d: %w", cartID, err)
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var item CartItem
		var product catalog.Product
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.Note,
			&item.CreatedAt,
			&item.UpdatedAt,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.Status,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		item.Product = &product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) GetItemByID(ctx context.Context, id int64) (*CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity, note, created_at, updated_at
		FROM cart_items
		WHERE id = $1
	`

	var item CartItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.Note,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %d: %w", id, err)
	}

	return &item, nil
}

// UpsertItem adds quantity to the (cart, product) line, creating it when
// missing. The unique constraint makes the merge safe under concurrent
// adds. Adding the first item also flips an available or reserved table to
// occupied, in the same transaction.
func (r *postgresRepository) UpsertItem(ctx context.Context, cartID, productID int64, quantity int, note string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("cart_id", cartID).Msg("repository: failed to rollback upsert item")
			}
		}
	}()

	upsert := `
		INSERT INTO cart_items (cart_id, product_id, quantity, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
		              note = EXCLUDED.note,
		              updated_at = now()
	`
	if _, err = tx.Exec(ctx, upsert, cartID, productID, quantity, note); err != nil {
		return fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}

	flip := `
		UPDATE tables
		SET status = 'occupied', updated_at = $1
		WHERE id = (SELECT table_id FROM carts WHERE id = $2)
		  AND status IN ('available', 'reserved')
	`
	if _, err = tx.Exec(ctx, flip, time.Now().UTC(), cartID); err != nil {
		return fmt.Errorf("repository: failed to flip table status: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit upsert item: %w", err)
	}

	return nil
}

func (r *postgresRepository) OverwriteItem(ctx context.Context, itemID int64, quantity int, note string) error {
	query := `
		UPDATE cart_items
		SET quantity = $1, note = $2, updated_at = $3
		WHERE id = $4
	`

	cmdTag, err := r.db.Exec(ctx, query, quantity, note, time.Now().UTC(), itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %d: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// DeleteItem removes the line and, when the cart becomes empty, reverts an
// occupied table back to available.
func (r *postgresRepository) DeleteItem(ctx context.Context, itemID int64) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("cart_item_id", itemID).Msg("repository: failed to rollback delete item")
			}
		}
	}()

	var cartID int64
	err = tx.QueryRow(ctx, `DELETE FROM cart_items WHERE id = $1 RETURNING cart_id`, itemID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCartItemNotFound
		}
		return fmt.Errorf("repository: failed to delete cart item %d: %w", itemID, err)
	}

	var empty bool
	err = tx.QueryRow(ctx, `SELECT NOT EXISTS (SELECT 1 FROM cart_items WHERE cart_id = $1)`, cartID).Scan(&empty)
	if err != nil {
		return fmt.Errorf("repository: failed to check cart emptiness: %w", err)
	}

	if empty {
		revert := `
			UPDATE tables
			SET status = 'available', updated_at = $1
			WHERE id = (SELECT table_id FROM carts WHERE id = $2)
			  AND status = 'occupied'
		`
		if _, err = tx.Exec(ctx, revert, time.Now().UTC(), cartID); err != nil {
			return fmt.Errorf("repository: failed to revert table status: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit delete item: %w", err)
	}

	return nil
}
