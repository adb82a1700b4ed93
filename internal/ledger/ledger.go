// Package ledger holds the append-only record of balance-affecting events.
// Entries are immutable once written; corrections are made by posting an
// offsetting entry, never by editing history. No update or delete operation
// exists on this package by design.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Entry types, one per balance-affecting operation.
const (
	TypeDeposit          = "DEPOSIT"
	TypeWithdrawal       = "WITHDRAWAL"
	TypeInternalTransfer = "INTERNAL_TRANSFER"
	TypeInstapay         = "INSTAPAY"
)

var (
	// ErrNotFound indicates no entry matches the query.
	ErrNotFound = errors.New("ledger entry not found")

	// ErrDuplicateReference indicates an entry with the same reference number
	// was already appended; reference numbers are unique per entry.
	ErrDuplicateReference = errors.New("duplicate reference number")
)

// Entry is one immutable ledger row. Amount is signed: positive credits,
// negative debits. BalanceAfter snapshots the account balance that resulted
// from applying this entry.
type Entry struct {
	ID                   string
	ReferenceNumber      string
	AccountID            string
	Type                 string
	Amount               decimal.Decimal
	BalanceAfter         decimal.Decimal
	RelatedAccountID     string
	RelatedAccountNumber string
	Description          string
	CreatedAt            time.Time
}

// Ledger defines the contract implemented by ledger backends.
// Append writes all given entries or none of them, assigning id and
// timestamp, and returns them in order. ByAccount lists newest first;
// limit <= 0 returns everything.
type Ledger interface {
	Append(ctx context.Context, entries ...Entry) ([]Entry, error)
	ByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error)
	ByReference(ctx context.Context, reference string) (Entry, error)
}
