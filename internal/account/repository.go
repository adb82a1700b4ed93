package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists accounts and branches. UpdateBalance is a compare-and-set:
// the write only lands if the stored balance still equals the expected value,
// so a lost update from a concurrent writer surfaces as ErrBalanceConflict.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id string) (Account, error)
	GetByNumber(ctx context.Context, number string) (Account, error)
	NumberTaken(ctx context.Context, number string) (bool, error)
	UpdateBalance(ctx context.Context, id string, expected, next decimal.Decimal) error
	UpdateStatus(ctx context.Context, id, status string) error
	CountByCustomer(ctx context.Context, customerID string) (int, error)
	BranchExists(ctx context.Context, code string) (bool, error)
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	acctID, err := uuid.Parse(acct.ID)
	if err != nil {
		return err
	}
	custID, err := uuid.Parse(acct.CustomerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, customer_id, branch_code, number, balance, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		acctID, custID, acct.BranchCode, acct.Number, acct.Balance.StringFixed(2), acct.Status,
		acct.CreatedAt.UTC(), acct.UpdatedAt.UTC())
	return err
}

// Get fetches an account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, customer_id, branch_code, number, balance::text, status, created_at, updated_at
        FROM accounts WHERE id = $1`, acctID)
	return scanAccount(row)
}

// GetByNumber fetches an account by its account number.
func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, customer_id, branch_code, number, balance::text, status, created_at, updated_at
        FROM accounts WHERE number = $1`, number)
	return scanAccount(row)
}

// NumberTaken reports whether an account number is already in use.
func (r *PostgresRepository) NumberTaken(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE number = $1)`, number).Scan(&exists)
	return exists, err
}

// UpdateBalance overwrites the balance only if it still equals expected.
func (r *PostgresRepository) UpdateBalance(ctx context.Context, id string, expected, next decimal.Decimal) error {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = now()
        WHERE id = $1 AND balance = $3`,
		acctID, next.StringFixed(2), expected.StringFixed(2))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrBalanceConflict
	}
	return nil
}

// UpdateStatus transitions the account status with no balance side effects.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) error {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET status = $2, updated_at = now() WHERE id = $1`, acctID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByCustomer returns the number of accounts a customer owns.
func (r *PostgresRepository) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	custID, err := uuid.Parse(customerID)
	if err != nil {
		return 0, nil
	}
	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE customer_id = $1`, custID).Scan(&count)
	return count, err
}

// BranchExists reports whether a branch code is registered.
func (r *PostgresRepository) BranchExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM branches WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		idVal      uuid.UUID
		custID     uuid.UUID
		balanceRaw string
		createdAt  time.Time
		updatedAt  time.Time
		acct       Account
	)
	if err := row.Scan(&idVal, &custID, &acct.BranchCode, &acct.Number, &balanceRaw, &acct.Status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	balance, err := decimal.NewFromString(balanceRaw)
	if err != nil {
		return Account{}, err
	}
	acct.ID = idVal.String()
	acct.CustomerID = custID.String()
	acct.Balance = balance
	acct.CreatedAt = createdAt.UTC()
	acct.UpdatedAt = updatedAt.UTC()
	return acct, nil
}
