// Package refnum issues transaction reference numbers: a literal TXN prefix,
// the UTC issuance date and a six-digit sequence that restarts each day, e.g.
// TXN20260115000001. Sequences are allocated with a single atomic
// read-modify-write so two postings never share a reference.
package refnum

import (
	"context"
	"fmt"
	"time"
)

// Prefix precedes every reference number.
const Prefix = "TXN"

const dateLayout = "20060102"

// Generator allocates the next reference number. A failed allocation must
// abort the enclosing posting before any balance is touched.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// Format renders a reference number for the given day and sequence.
func Format(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%06d", Prefix, day.UTC().Format(dateLayout), seq)
}
