package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrTableNumberExists = errors.New("table with this number already exists")
)

type Repository interface {
	Create(ctx context.Context, t *Table) error
	GetByID(ctx context.Context, id int64) (*Table, error)
	List(ctx context.Context) ([]Table, error)
	ListByStatus(ctx context.Context, status Status) ([]Table, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetActive(ctx context.Context, id int64, active bool) error
	HasOrderInStatuses(ctx context.Context, tableID int64, statuses []string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, t *Table) error {
	query := `
		INSERT INTO tables (number, capacity, status, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, t.Number, t.Capacity, t.Status, t.IsActive).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrTableNumberExists
		}
		return fmt.Errorf("repository: failed to insert table: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Table, error) {
	query := `
		SELECT id, number, capacity, status, is_active, created_at, updated_at
		FROM tables
		WHERE id = $1
	`

	var t Table
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Number,
		&t.Capacity,
		&t.Status,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("repository: failed to select table %d: %w", id, err)
	}

	return &t, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Table, error) {
	query := `
		SELECT id, number, capacity, status, is_active, created_at, updated_at
		FROM tables
		ORDER BY number
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query tables: %w", err)
	}
	defer rows.Close()

	return scanTables(rows)
}

func (r *postgresRepository) ListByStatus(ctx context.Context, status Status) ([]Table, error) {
	query := `
		SELECT id, number, capacity, status, is_active, created_at, updated_at
		FROM tables
		WHERE status = $1 AND is_active
		ORDER BY number
	`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query tables by status %s: %w", status, err)
	}
	defer rows.Close()

	return scanTables(rows)
}

func scanTables(rows pgx.Rows) ([]Table, error) {
	tables := make([]Table, 0)
	for rows.Next() {
		var t Table
		err := rows.Scan(
			&t.ID,
			&t.Number,
			&t.Capacity,
			&t.Status,
			&t.IsActive,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating tables: %w", err)
	}

	return tables, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	query := `
		UPDATE tables
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update table %d status: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTableNotFound
	}

	return nil
}

func (r *postgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `
		UPDATE tables
		SET is_active = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to set table %d active flag: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTableNotFound
	}

	return nil
}

func (r *postgresRepository) HasOrderInStatuses(ctx context.Context, tableID int64, statuses []string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE table_id = $1 AND status = ANY($2)
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, tableID, statuses).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check open orders for table %d: %w", tableID, err)
	}

	return exists, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete table %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTableNotFound
	}

	return nil
}
