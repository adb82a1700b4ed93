package account

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusActive marks an account open for postings.
	StatusActive = "active"
	// StatusClosed marks an account that accepts no further debits or credits.
	StatusClosed = "closed"
)

// Account represents a customer deposit account. Balance carries exactly two
// fractional digits and is mutated only through the posting engine.
type Account struct {
	ID         string
	CustomerID string
	BranchCode string
	Number     string
	Balance    decimal.Decimal
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Closed reports whether the account refuses postings.
func (a Account) Closed() bool {
	return a.Status == StatusClosed
}

// Branch identifies an originating branch; its code forms the account number prefix.
type Branch struct {
	Code string
	Name string
}
