package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrNoPendingPayment = errors.New("no pending payment matches the token")
)

// Settlement describes what a successful webhook match changed.
type Settlement struct {
	Payment     *Payment
	Invoice     *Invoice
	TableNumber int
}

type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	Settle(ctx context.Context, token string, now time.Time) (*Settlement, error)
	GetInvoiceByOrder(ctx context.Context, orderID int64) (*Invoice, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreatePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (order_id, amount, payment_method, status, transaction_id, expired_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.OrderID,
		p.Amount,
		p.Method,
		p.Status,
		p.TransactionID,
		p.ExpiredAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment for order %d: %w", p.OrderID, err)
	}

	return nil
}

// Settle marks the newest unexpired pending payment for the token as
// completed, the order as paid, and writes the invoice in one transaction.
// Sibling pending payments for the order are failed at the same time, so a
// replayed notification finds nothing left to match even when the intent
// was re-requested and several pending rows carry the token.
func (r *postgresRepository) Settle(ctx context.Context, token string, now time.Time) (settlement *Settlement, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Str("token", token).Msg("repository: failed to rollback settlement")
			}
		}
	}()

	locate := `
		SELECT id, order_id, amount, payment_method, status, transaction_id, expired_at, created_at, updated_at
		FROM payments
		WHERE transaction_id = $1 AND status = $2 AND expired_at > $3
		  AND EXISTS (SELECT 1 FROM orders o WHERE o.id = payments.order_id AND o.status <> 'paid')
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	var p Payment
	err = tx.QueryRow(ctx, locate, token, StatusPending, now).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.TransactionID,
		&p.ExpiredAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingPayment
		}
		return nil, fmt.Errorf("repository: failed to locate pending payment: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE payments SET status = $1, payment_method = $2, updated_at = $3 WHERE id = $4`,
		StatusCompleted, MethodMobilePayment, now, p.ID,
	); err != nil {
		return nil, fmt.Errorf("repository: failed to complete payment %d: %w", p.ID, err)
	}
	p.Status = StatusCompleted
	p.Method = MethodMobilePayment

	if _, err = tx.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE order_id = $3 AND status = $4 AND id <> $5`,
		StatusFailed, now, p.OrderID, StatusPending, p.ID,
	); err != nil {
		return nil, fmt.Errorf("repository: failed to invalidate sibling payments for order %d: %w", p.OrderID, err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE orders SET status = 'paid', updated_at = $1 WHERE id = $2`,
		now, p.OrderID,
	); err != nil {
		return nil, fmt.Errorf("repository: failed to mark order %d paid: %w", p.OrderID, err)
	}

	invoice := &Invoice{
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Method:        MethodMobilePayment,
		InvoiceNumber: NewInvoiceNumber(p.OrderID, now),
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (order_id, amount, method, invoice_number) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		invoice.OrderID, invoice.Amount, invoice.Method, invoice.InvoiceNumber,
	).Scan(&invoice.ID, &invoice.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert invoice for order %d: %w", p.OrderID, err)
	}

	var tableNumber int
	err = tx.QueryRow(ctx,
		`SELECT t.number FROM orders o JOIN tables t ON t.id = o.table_id WHERE o.id = $1`,
		p.OrderID,
	).Scan(&tableNumber)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to resolve table for order %d: %w", p.OrderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit settlement: %w", err)
	}

	return &Settlement{Payment: &p, Invoice: invoice, TableNumber: tableNumber}, nil
}

func (r *postgresRepository) GetInvoiceByOrder(ctx context.Context, orderID int64) (*Invoice, error) {
	query := `
		SELECT id, order_id, amount, method, invoice_number, created_at
		FROM invoices
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var invoice Invoice
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&invoice.ID,
		&invoice.OrderID,
		&invoice.Amount,
		&invoice.Method,
		&invoice.InvoiceNumber,
		&invoice.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("repository: failed to select invoice for order %d: %w", orderID, err)
	}

	return &invoice, nil
}
