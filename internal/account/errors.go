package account

import "errors"

var (
	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrAccountClosed indicates the operation is not permitted on a closed account.
	ErrAccountClosed = errors.New("account is closed")

	// ErrBranchNotFound indicates the branch code is unknown.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrCustomerNotFound indicates the owning customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrBalanceConflict indicates the stored balance no longer matches the
	// expected value a caller read, i.e. a concurrent writer got there first.
	ErrBalanceConflict = errors.New("balance changed concurrently")

	// ErrGenerationExhausted indicates no unique account number was found
	// within the bounded number of attempts.
	ErrGenerationExhausted = errors.New("account number generation exhausted")
)
