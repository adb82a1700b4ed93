package interbank

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists interbank transfer records. Finalize only succeeds on a
// PENDING record, so a terminal record can never be re-finalized. Delete and
// Reopen unwind a Create or Finalize whose enclosing posting did not complete.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, reference string) (Record, error)
	Finalize(ctx context.Context, reference, status, switchRef, message string) error
	SetSwitchReference(ctx context.Context, reference, switchRef string) error
	Delete(ctx context.Context, reference string) error
	Reopen(ctx context.Context, reference string) error
}

// PostgresRepository stores transfer records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed transfer record repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a transfer record.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	sourceID, err := uuid.Parse(rec.SourceAccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO interbank_transfers
        (reference_number, switch_reference, source_account_id, source_account_number,
         bank_code, bank_name, dest_account_number, dest_account_name,
         amount, status, status_message, sent_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ReferenceNumber, rec.SwitchReference, sourceID, rec.SourceAccountNumber,
		rec.BankCode, rec.BankName, rec.DestAccountNumber, rec.DestAccountName,
		rec.Amount.StringFixed(2), rec.Status, rec.StatusMessage,
		rec.SentAt.UTC(), rec.UpdatedAt.UTC())
	return err
}

// Get fetches a transfer record by reference number.
func (r *PostgresRepository) Get(ctx context.Context, reference string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT reference_number, switch_reference, source_account_id,
        source_account_number, bank_code, bank_name, dest_account_number, dest_account_name,
        amount::text, status, status_message, sent_at, updated_at
        FROM interbank_transfers WHERE reference_number = $1`, reference)

	var (
		sourceID  uuid.UUID
		amountRaw string
		sentAt    time.Time
		updatedAt time.Time
		rec       Record
	)
	if err := row.Scan(&rec.ReferenceNumber, &rec.SwitchReference, &sourceID,
		&rec.SourceAccountNumber, &rec.BankCode, &rec.BankName, &rec.DestAccountNumber,
		&rec.DestAccountName, &amountRaw, &rec.Status, &rec.StatusMessage, &sentAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return Record{}, err
	}
	rec.SourceAccountID = sourceID.String()
	rec.Amount = amount
	rec.SentAt = sentAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}

// Finalize transitions a PENDING record to a terminal status exactly once.
func (r *PostgresRepository) Finalize(ctx context.Context, reference, status, switchRef, message string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE interbank_transfers
        SET status = $2, switch_reference = $3, status_message = $4, updated_at = now()
        WHERE reference_number = $1 AND status = $5`,
		reference, status, switchRef, message, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, reference); err != nil {
			return err
		}
		return ErrAlreadyFinal
	}
	return nil
}

// Delete removes a record that never left PENDING.
func (r *PostgresRepository) Delete(ctx context.Context, reference string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM interbank_transfers
        WHERE reference_number = $1 AND status = $2`, reference, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, reference); err != nil {
			return err
		}
		return ErrAlreadyFinal
	}
	return nil
}

// Reopen returns a finalized record to PENDING, clearing the status message.
func (r *PostgresRepository) Reopen(ctx context.Context, reference string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE interbank_transfers
        SET status = $2, status_message = '', updated_at = now()
        WHERE reference_number = $1`, reference, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSwitchReference stores the switch's own reference while the record is
// still PENDING.
func (r *PostgresRepository) SetSwitchReference(ctx context.Context, reference, switchRef string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE interbank_transfers
        SET switch_reference = $2, updated_at = now()
        WHERE reference_number = $1 AND status = $3`,
		reference, switchRef, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, reference); err != nil {
			return err
		}
		return ErrAlreadyFinal
	}
	return nil
}
