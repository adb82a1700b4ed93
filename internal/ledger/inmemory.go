package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	entries []Entry
	byRef   map[string]int // reference -> index into entries
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{byRef: make(map[string]int)}
}

func (l *inMemoryLedger) Append(_ context.Context, entries ...Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, errors.New("nothing to append")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate the whole batch before touching state so a bad entry
	// leaves nothing behind.
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ReferenceNumber == "" {
			return nil, errors.New("entry missing reference number")
		}
		if _, exists := l.byRef[e.ReferenceNumber]; exists || seen[e.ReferenceNumber] {
			return nil, ErrDuplicateReference
		}
		seen[e.ReferenceNumber] = true
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = uuid.New().String()
		e.CreatedAt = time.Now().UTC()
		l.byRef[e.ReferenceNumber] = len(l.entries)
		l.entries = append(l.entries, e)
		out = append(out, e)
	}
	return out, nil
}

func (l *inMemoryLedger) ByAccount(_ context.Context, accountID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- { // newest first
		if l.entries[i].AccountID == accountID {
			out = append(out, l.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (l *inMemoryLedger) ByReference(_ context.Context, reference string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.byRef[reference]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return l.entries[idx], nil
}
