package posting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrSameAccount indicates a transfer named the same account on both sides.
var ErrSameAccount = errors.New("source and destination accounts are the same")

// ValidationError reports malformed or out-of-range input, detected before
// any mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InsufficientBalanceError reports a debit exceeding the available balance.
type InsufficientBalanceError struct {
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s available", e.Available.StringFixed(2))
}
