package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nhtruong/restaurant-pos/internal/catalog"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderItemNotFound    = errors.New("order item not found")
	ErrInvalidCartItems     = errors.New("some cart items are invalid or do not belong to this table")
	ErrNoPreparingOrder     = errors.New("table has no order in preparing status")
	ErrInsufficientQuantity = errors.New("requested quantity exceeds the quantity on the order item")
)

// ListSpec is an explicit query specification for order lookups, so that
// per-endpoint filtering stays in one place.
type ListSpec struct {
	TableID  *int64
	Statuses []Status
}

// SeparateResult reports what a split produced. SourceDeleted is set when
// the last line left the source order.
type SeparateResult struct {
	SourceOrderID int64
	SourceDeleted bool
	TargetOrderID int64
}

type Repository interface {
	CreateFromCart(ctx context.Context, tableID, cartID int64, cartItemIDs []int64) (int64, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, spec ListSpec) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SwitchTable(ctx context.Context, orderID, newTableID int64) error
	Separate(ctx context.Context, oldTableID, newTableID int64, lines []SplitLine) (*SeparateResult, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) rollback(ctx context.Context, tx pgx.Tx, op string) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Error().Err(err).Str("op", op).Msg("repository: failed to rollback transaction")
	}
}

// CreateFromCart snapshots the selected cart items into a new preparing
// order, freezing current product prices, then clears the selected items
// and locks the cart. One transaction: either everything happens or
// nothing does.
func (r *postgresRepository) CreateFromCart(ctx context.Context, tableID, cartID int64, cartItemIDs []int64) (int64, error) {
	ids := dedupe(cartItemIDs)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer r.rollback(ctx, tx, "create_from_cart")

	selectItems := `
		SELECT ci.id, ci.product_id, ci.quantity, ci.note, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1 AND ci.id = ANY($2)
		ORDER BY ci.id
		FOR UPDATE OF ci
	`

	rows, err := tx.Query(ctx, selectItems, cartID, ids)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to select cart items: %w", err)
	}

	type snapshot struct {
		productID   int64
		quantity    int
		description string
		price       decimal.Decimal
	}

	var (
		snapshots []snapshot
		itemID    int64
	)
	for rows.Next() {
		var s snapshot
		if err := rows.Scan(&itemID, &s.productID, &s.quantity, &s.description, &s.price); err != nil {
			rows.Close()
			return 0, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("repository: error iterating cart items: %w", err)
	}

	// The requested id set must match the cart's rows exactly.
	if len(snapshots) != len(ids) {
		return 0, ErrInvalidCartItems
	}

	total := decimal.Zero
	for _, s := range snapshots {
		total = total.Add(s.price.Mul(decimal.NewFromInt(int64(s.quantity))))
	}

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (table_id, total_amount, status) VALUES ($1, $2, $3) RETURNING id`,
		tableID, total, StatusPreparing,
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	insertItem := `
		INSERT INTO order_items (order_id, product_id, quantity, price, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, product_id)
		DO UPDATE SET quantity = order_items.quantity + EXCLUDED.quantity,
		              updated_at = now()
	`
	for _, s := range snapshots {
		if _, err := tx.Exec(ctx, insertItem, orderID, s.productID, s.quantity, s.price, s.description); err != nil {
			return 0, fmt.Errorf("repository: failed to insert order item for product %d: %w", s.productID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("repository: failed to delete committed cart items: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE carts SET status = 'locked', updated_at = now() WHERE id = $1`, cartID,
	); err != nil {
		return 0, fmt.Errorf("repository: failed to lock cart: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tables SET status = 'occupied', updated_at = now() WHERE id = $1`, tableID,
	); err != nil {
		return 0, fmt.Errorf("repository: failed to occupy table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository: failed to commit order creation: %w", err)
	}

	return orderID, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT o.id, o.table_id, t.number, t.status, o.total_amount, o.status, o.created_at, o.updated_at
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.TableID,
		&o.TableNumber,
		&o.TableStatus,
		&o.TotalAmount,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %d: %w", id, err)
	}

	items, err := r.loadItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = make([]OrderItem, 0)
	}

	return &o, nil
}

func (r *postgresRepository) List(ctx context.Context, spec ListSpec) ([]Order, error) {
	query := `
		SELECT o.id, o.table_id, t.number, t.status, o.total_amount, o.status, o.created_at, o.updated_at
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE ($1::bigint IS NULL OR o.table_id = $1)
		  AND ($2::text[] IS NULL OR o.status = ANY($2))
		ORDER BY o.created_at DESC
	`

	var statuses []string
	for _, s := range spec.Statuses {
		statuses = append(statuses, string(s))
	}

	rows, err := r.db.Query(ctx, query, spec.TableID, statuses)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[int64]*Order)
	var orderIDs []int64

	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.TableID,
			&o.TableNumber,
			&o.TableStatus,
			&o.TotalAmount,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsByOrder, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for orderID, items := range itemsByOrder {
		ordersMap[orderID].Items = items
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	return result, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.description, oi.created_at, oi.updated_at,
		       p.id, p.name, p.description, p.price, p.status, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[int64][]OrderItem)
	for rows.Next() {
		var item OrderItem
		var product catalog.Product
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&item.Description,
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
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		item.Product = &product
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return itemsByOrder, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order %d status: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// SwitchTable moves the order wholesale to another table. The old table
// reverts to available and the new one becomes occupied; prices and items
// are untouched.
func (r *postgresRepository) SwitchTable(ctx context.Context, orderID, newTableID int64) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer r.rollback(ctx, tx, "switch_table")

	var oldTableID int64
	err = tx.QueryRow(ctx, `SELECT table_id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&oldTableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("repository: failed to lock order %d: %w", orderID, err)
	}

	var newTableExists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, newTableID).Scan(&newTableExists)
	if err != nil {
		return fmt.Errorf("repository: failed to check new table: %w", err)
	}
	if !newTableExists {
		return table.ErrTableNotFound
	}

	if _, err = tx.Exec(ctx,
		`UPDATE orders SET table_id = $1, updated_at = now() WHERE id = $2`, newTableID, orderID,
	); err != nil {
		return fmt.Errorf("repository: failed to move order: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE tables SET status = 'available', updated_at = now() WHERE id = $1`, oldTableID,
	); err != nil {
		return fmt.Errorf("repository: failed to free old table: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE tables SET status = 'occupied', updated_at = now() WHERE id = $1`, newTableID,
	); err != nil {
		return fmt.Errorf("repository: failed to occupy new table: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit table switch: %w", err)
	}

	return nil
}

// Separate moves partial quantities from the old table's preparing order
// onto the new table's preparing order, creating the target order when
// missing. Both totals are re-derived from the remaining items. A failure
// on any line rolls back every prior line mutation.
func (r *postgresRepository) Separate(ctx context.Context, oldTableID, newTableID int64, lines []SplitLine) (result *SeparateResult, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer r.rollback(ctx, tx, "separate")

	var newTableExists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, newTableID).Scan(&newTableExists)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to check new table: %w", err)
	}
	if !newTableExists {
		return nil, table.ErrTableNotFound
	}

	var sourceOrderID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM orders WHERE table_id = $1 AND status = $2 ORDER BY id LIMIT 1 FOR UPDATE`,
		oldTableID, StatusPreparing,
	).Scan(&sourceOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPreparingOrder
		}
		return nil, fmt.Errorf("repository: failed to lock source order: %w", err)
	}

	var targetOrderID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM orders WHERE table_id = $1 AND status = $2 ORDER BY id LIMIT 1 FOR UPDATE`,
		newTableID, StatusPreparing,
	).Scan(&targetOrderID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repository: failed to lock target order: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO orders (table_id, total_amount, status) VALUES ($1, 0, $2) RETURNING id`,
			newTableID, StatusPreparing,
		).Scan(&targetOrderID)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to create target order: %w", err)
		}
	}

	for _, line := range lines {
		var (
			productID   int64
			available   int
			price       decimal.Decimal
			description string
		)
		err = tx.QueryRow(ctx,
			`SELECT product_id, quantity, price, description FROM order_items WHERE id = $1 AND order_id = $2 FOR UPDATE`,
			line.OrderItemID, sourceOrderID,
		).Scan(&productID, &available, &price, &description)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderItemNotFound
			}
			return nil, fmt.Errorf("repository: failed to lock order item %d: %w", line.OrderItemID, err)
		}

		if line.Quantity > available {
			return nil, fmt.Errorf("%w: item %d has %d, requested %d",
				ErrInsufficientQuantity, line.OrderItemID, available, line.Quantity)
		}

		if line.Quantity == available {
			if _, err = tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, line.OrderItemID); err != nil {
				return nil, fmt.Errorf("repository: failed to delete drained order item: %w", err)
			}
		} else {
			if _, err = tx.Exec(ctx,
				`UPDATE order_items SET quantity = quantity - $1, updated_at = now() WHERE id = $2`,
				line.Quantity, line.OrderItemID,
			); err != nil {
				return nil, fmt.Errorf("repository: failed to decrement order item: %w", err)
			}
		}

		moveLine := `
			INSERT INTO order_items (order_id, product_id, quantity, price, description)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (order_id, product_id)
			DO UPDATE SET quantity = order_items.quantity + EXCLUDED.quantity,
			              updated_at = now()
		`
		if _, err = tx.Exec(ctx, moveLine, targetOrderID, productID, line.Quantity, price, description); err != nil {
			return nil, fmt.Errorf("repository: failed to move line to target order: %w", err)
		}
	}

	// Full re-derivation, not an incremental adjustment.
	rederive := `
		UPDATE orders
		SET total_amount = COALESCE(
			(SELECT SUM(price * quantity) FROM order_items WHERE order_id = orders.id), 0),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err = tx.Exec(ctx, rederive, targetOrderID); err != nil {
		return nil, fmt.Errorf("repository: failed to re-derive target total: %w", err)
	}
	if _, err = tx.Exec(ctx, rederive, sourceOrderID); err != nil {
		return nil, fmt.Errorf("repository: failed to re-derive source total: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE tables SET status = 'occupied', updated_at = now() WHERE id = $1`, newTableID,
	); err != nil {
		return nil, fmt.Errorf("repository: failed to occupy target table: %w", err)
	}

	result = &SeparateResult{SourceOrderID: sourceOrderID, TargetOrderID: targetOrderID}

	var sourceEmpty bool
	err = tx.QueryRow(ctx,
		`SELECT NOT EXISTS (SELECT 1 FROM order_items WHERE order_id = $1)`, sourceOrderID,
	).Scan(&sourceEmpty)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to check source emptiness: %w", err)
	}

	if sourceEmpty {
		if _, err = tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, sourceOrderID); err != nil {
			return nil, fmt.Errorf("repository: failed to delete empty source order: %w", err)
		}
		if _, err = tx.Exec(ctx,
			`UPDATE tables SET status = 'available', updated_at = now() WHERE id = $1 AND status = 'occupied'`,
			oldTableID,
		); err != nil {
			return nil, fmt.Errorf("repository: failed to free source table: %w", err)
		}
		result.SourceDeleted = true
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit separation: %w", err)
	}

	return result, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
