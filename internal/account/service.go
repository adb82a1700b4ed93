package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harbor-trust/harbor_core/internal/customer"
)

const (
	branchCodeLength = 3
	suffixModulus    = 10_000_000 // 7-digit random suffix
	numberAttempts   = 100
)

// Service manages account identity and lifecycle. Balances are never touched
// here; only the posting engine mutates them.
type Service struct {
	repo      Repository
	customers customer.Repository
}

// NewService builds an account service instance.
func NewService(repo Repository, customers customer.Repository) *Service {
	return &Service{repo: repo, customers: customers}
}

// Create provisions an account with a fresh unique account number, zero
// balance and active status.
func (s *Service) Create(ctx context.Context, customerID, branchCode string) (Account, error) {
	branchCode = strings.ToUpper(strings.TrimSpace(branchCode))
	if len(branchCode) != branchCodeLength {
		return Account{}, fmt.Errorf("branch code must be %d characters", branchCodeLength)
	}

	known, err := s.repo.BranchExists(ctx, branchCode)
	if err != nil {
		return Account{}, err
	}
	if !known {
		return Account{}, ErrBranchNotFound
	}

	if _, err := s.customers.Get(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return Account{}, ErrCustomerNotFound
		}
		return Account{}, err
	}

	number, err := s.generateNumber(ctx, branchCode)
	if err != nil {
		return Account{}, err
	}

	now := time.Now().UTC()
	acct := Account{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		BranchCode: branchCode,
		Number:     number,
		Balance:    decimal.Zero,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Get retrieves an account by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber retrieves an account by its account number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Account, error) {
	return s.repo.GetByNumber(ctx, number)
}

// Close transitions the account to closed. Closed accounts accept no further
// postings and the transition is one-way.
func (s *Service) Close(ctx context.Context, id string) (Account, error) {
	acct, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acct.Closed() {
		return Account{}, ErrAccountClosed
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusClosed); err != nil {
		return Account{}, err
	}
	acct.Status = StatusClosed
	return acct, nil
}

// generateNumber draws random 7-digit suffixes behind the branch prefix until
// an unused number is found, bounded by numberAttempts.
func (s *Service) generateNumber(ctx context.Context, branchCode string) (string, error) {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		suffix, err := rand.Int(rand.Reader, big.NewInt(suffixModulus))
		if err != nil {
			return "", fmt.Errorf("draw account number suffix: %w", err)
		}
		number := fmt.Sprintf("%s%07d", branchCode, suffix.Int64())

		taken, err := s.repo.NumberTaken(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", ErrGenerationExhausted
}
