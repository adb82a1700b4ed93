package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists ledger entries in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const insertEntry = `INSERT INTO ledger_entries
    (id, reference_number, account_id, type, amount, balance_after,
     related_account_id, related_account_number, description, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Append inserts the given entries in one transaction: all land or none do.
func (l *PostgresLedger) Append(ctx context.Context, entries ...Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, errors.New("nothing to append")
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entryID := uuid.New()
		e.ID = entryID.String()
		e.CreatedAt = time.Now().UTC()

		var related any
		if e.RelatedAccountID != "" {
			relatedID, err := uuid.Parse(e.RelatedAccountID)
			if err != nil {
				return nil, err
			}
			related = relatedID
		}

		accountID, err := uuid.Parse(e.AccountID)
		if err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx, insertEntry,
			entryID, e.ReferenceNumber, accountID, e.Type,
			e.Amount.StringFixed(2), e.BalanceAfter.StringFixed(2),
			related, nullable(e.RelatedAccountNumber), e.Description, e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

const selectEntry = `SELECT id, reference_number, account_id, type, amount::text, balance_after::text,
    COALESCE(related_account_id::text, ''), COALESCE(related_account_number, ''), description, created_at
    FROM ledger_entries`

// ByAccount returns the account's entries, newest first. A non-positive
// limit returns everything.
func (l *PostgresLedger) ByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	acctID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, nil
	}
	query := selectEntry + ` WHERE account_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{acctID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ByReference returns the entry carrying the given reference number.
func (l *PostgresLedger) ByReference(ctx context.Context, reference string) (Entry, error) {
	row := l.db.QueryRow(ctx, selectEntry+` WHERE reference_number = $1`, reference)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		idVal      uuid.UUID
		acctID     uuid.UUID
		amountRaw  string
		balanceRaw string
		createdAt  time.Time
		e          Entry
	)
	if err := row.Scan(&idVal, &e.ReferenceNumber, &acctID, &e.Type, &amountRaw, &balanceRaw,
		&e.RelatedAccountID, &e.RelatedAccountNumber, &e.Description, &createdAt); err != nil {
		return Entry{}, err
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return Entry{}, err
	}
	balance, err := decimal.NewFromString(balanceRaw)
	if err != nil {
		return Entry{}, err
	}
	e.ID = idVal.String()
	e.AccountID = acctID.String()
	e.Amount = amount
	e.BalanceAfter = balance
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
