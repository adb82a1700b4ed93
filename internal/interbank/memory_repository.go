package interbank

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository builds an in-memory transfer record store for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Record)}
}

func (r *memoryRepository) Create(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ReferenceNumber]; exists {
		return errors.New("transfer record exists")
	}
	r.records[rec.ReferenceNumber] = rec
	return nil
}

func (r *memoryRepository) Get(_ context.Context, reference string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[reference]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Finalize(_ context.Context, reference, status, switchRef, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[reference]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadyFinal
	}
	rec.Status = status
	rec.SwitchReference = switchRef
	rec.StatusMessage = message
	rec.UpdatedAt = time.Now().UTC()
	r.records[reference] = rec
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[reference]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadyFinal
	}
	delete(r.records, reference)
	return nil
}

func (r *memoryRepository) Reopen(_ context.Context, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[reference]
	if !ok {
		return ErrNotFound
	}
	rec.Status = StatusPending
	rec.StatusMessage = ""
	rec.UpdatedAt = time.Now().UTC()
	r.records[reference] = rec
	return nil
}

func (r *memoryRepository) SetSwitchReference(_ context.Context, reference, switchRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[reference]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadyFinal
	}
	rec.SwitchReference = switchRef
	rec.UpdatedAt = time.Now().UTC()
	r.records[reference] = rec
	return nil
}
