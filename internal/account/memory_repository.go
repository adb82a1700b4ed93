package account

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-memory account store for tests and development.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	numbers  map[string]string // number -> account id
	branches map[string]Branch
}

// NewMemoryRepository builds an in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]Account),
		numbers:  make(map[string]string),
		branches: make(map[string]Branch),
	}
}

// SeedBranch registers a branch so account creation can resolve its code.
func (r *MemoryRepository) SeedBranch(code, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[code] = Branch{Code: code, Name: name}
}

// Create inserts an account.
func (r *MemoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.ID]; exists {
		return errors.New("account exists")
	}
	if _, exists := r.numbers[acct.Number]; exists {
		return errors.New("account number exists")
	}
	r.accounts[acct.ID] = acct
	r.numbers[acct.Number] = acct.ID
	return nil
}

// Get fetches an account by id.
func (r *MemoryRepository) Get(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

// GetByNumber fetches an account by number.
func (r *MemoryRepository) GetByNumber(_ context.Context, number string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.numbers[number]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.accounts[id], nil
}

// NumberTaken reports whether the number is in use.
func (r *MemoryRepository) NumberTaken(_ context.Context, number string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.numbers[number]
	return taken, nil
}

// UpdateBalance applies a compare-and-set balance write.
func (r *MemoryRepository) UpdateBalance(_ context.Context, id string, expected, next decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if !acct.Balance.Equal(expected) {
		return ErrBalanceConflict
	}
	acct.Balance = next
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return nil
}

// UpdateStatus transitions the account status.
func (r *MemoryRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.Status = status
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return nil
}

// CountByCustomer returns how many accounts the customer owns.
func (r *MemoryRepository) CountByCustomer(_ context.Context, customerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, acct := range r.accounts {
		if acct.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

// BranchExists reports whether the branch code is registered.
func (r *MemoryRepository) BranchExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.branches[code]
	return ok, nil
}
