package customer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Repository persists customers.
type Repository interface {
	Create(ctx context.Context, cust Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	Delete(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed customer repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new customer.
func (r *PostgresRepository) Create(ctx context.Context, cust Customer) error {
	custID, err := uuid.Parse(cust.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO customers (id, display_name, created_at)
        VALUES ($1, $2, $3)`, custID, cust.DisplayName, cust.CreatedAt.UTC())
	return err
}

// Get fetches a customer by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Customer, error) {
	custID, err := uuid.Parse(id)
	if err != nil {
		return Customer{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, display_name, created_at FROM customers WHERE id = $1`, custID)
	var (
		idVal     uuid.UUID
		createdAt time.Time
		cust      Customer
	)
	if err := row.Scan(&idVal, &cust.DisplayName, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	cust.ID = idVal.String()
	cust.CreatedAt = createdAt.UTC()
	return cust, nil
}

// Delete removes a customer record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	custID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, custID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
