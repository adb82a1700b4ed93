package customer

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu        sync.RWMutex
	customers map[string]Customer
}

// NewMemoryRepository builds an in-memory customer store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{customers: make(map[string]Customer)}
}

func (r *memoryRepository) Create(_ context.Context, cust Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.customers[cust.ID]; exists {
		return errors.New("customer exists")
	}
	r.customers[cust.ID] = cust
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cust, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return cust, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	return nil
}
