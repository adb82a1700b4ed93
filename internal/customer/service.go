package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrHasAccounts indicates deletion is blocked because the customer still
// owns one or more accounts.
var ErrHasAccounts = errors.New("customer still owns accounts")

// AccountCounter reports how many accounts a customer owns. Satisfied by the
// account repository; declared here to keep the dependency one-directional.
type AccountCounter interface {
	CountByCustomer(ctx context.Context, customerID string) (int, error)
}

// Service manages the customer lifecycle.
type Service struct {
	repo     Repository
	accounts AccountCounter
}

// NewService creates a new customer service.
func NewService(repo Repository, accounts AccountCounter) *Service {
	return &Service{repo: repo, accounts: accounts}
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, displayName string) (Customer, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Customer{}, errors.New("display name is required")
	}

	cust := Customer{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, cust); err != nil {
		return Customer{}, err
	}

	return cust, nil
}

// Get retrieves a customer.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a customer. Deletion is blocked while the customer owns any
// account, preserving referential integrity with the ledger.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	owned, err := s.accounts.CountByCustomer(ctx, id)
	if err != nil {
		return err
	}
	if owned > 0 {
		return ErrHasAccounts
	}

	return s.repo.Delete(ctx, id)
}
