package interbank

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer statuses. PENDING is the only non-terminal state; a record moves
// to SUCCESS or FAILED exactly once and never leaves either.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

var (
	// ErrNotFound indicates no transfer record exists for the reference.
	ErrNotFound = errors.New("interbank transfer not found")

	// ErrAlreadyFinal indicates the record already reached SUCCESS or FAILED.
	ErrAlreadyFinal = errors.New("interbank transfer already finalized")
)

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

// Record tracks one outbound Instapay transfer awaiting the switch's verdict.
// It shares its reference number with the debit ledger entry written when the
// transfer was initiated.
type Record struct {
	ReferenceNumber     string
	SwitchReference     string
	SourceAccountID     string
	SourceAccountNumber string
	BankCode            string
	BankName            string
	DestAccountNumber   string
	DestAccountName     string
	Amount              decimal.Decimal
	Status              string
	StatusMessage       string
	SentAt              time.Time
	UpdatedAt           time.Time
}
