package refnum

import (
	"context"
	"sync"
	"time"
)

// MemoryGenerator is an in-process generator for tests and development.
type MemoryGenerator struct {
	mu   sync.Mutex
	seqs map[string]int64
	now  func() time.Time
}

// NewMemory builds an in-memory reference number generator.
func NewMemory() *MemoryGenerator {
	return &MemoryGenerator{seqs: make(map[string]int64), now: time.Now}
}

// Next increments the counter for today's date under the generator lock.
func (g *MemoryGenerator) Next(_ context.Context) (string, error) {
	day := g.now().UTC()
	key := day.Format(dateLayout)

	g.mu.Lock()
	g.seqs[key]++
	seq := g.seqs[key]
	g.mu.Unlock()

	return Format(day, seq), nil
}
