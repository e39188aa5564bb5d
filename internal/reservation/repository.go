package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrReservationNotFound = errors.New("reservation not found")

type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id int64) (*Reservation, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Reservation, error)
	Update(ctx context.Context, r *Reservation) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const reservationColumns = `id, table_id, customer_id, customer_name, customer_contact,
	reservation_time, number_of_people, status, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, res *Reservation) error {
	query := `
		INSERT INTO reservations (table_id, customer_id, customer_name, customer_contact, reservation_time, number_of_people, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		res.TableID,
		res.CustomerID,
		res.CustomerName,
		res.CustomerContact,
		res.ReservationTime,
		res.NumberOfPeople,
		res.Status,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert reservation: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	var res Reservation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&res.ID,
		&res.TableID,
		&res.CustomerID,
		&res.CustomerName,
		&res.CustomerContact,
		&res.ReservationTime,
		&res.NumberOfPeople,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("repository: failed to select reservation %d: %w", id, err)
	}

	return &res, nil
}

func (r *postgresRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE customer_id = $1 ORDER BY reservation_time`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(
			&res.ID,
			&res.TableID,
			&res.CustomerID,
			&res.CustomerName,
			&res.CustomerContact,
			&res.ReservationTime,
			&res.NumberOfPeople,
			&res.Status,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repository: failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating reservations: %w", err)
	}

	return reservations, nil
}

func (r *postgresRepository) Update(ctx context.Context, res *Reservation) error {
	query := `
		UPDATE reservations
		SET table_id = $1, customer_name = $2, customer_contact = $3,
		    reservation_time = $4, number_of_people = $5, updated_at = now()
		WHERE id = $6
	`

	tag, err := r.db.Exec(ctx, query,
		res.TableID,
		res.CustomerName,
		res.CustomerContact,
		res.ReservationTime,
		res.NumberOfPeople,
		res.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update reservation %d: %w", res.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE reservations SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update reservation %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}
