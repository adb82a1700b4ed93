package refnum

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGenerator allocates sequences from a one-row-per-date counter table
// shared by every server instance.
type PostgresGenerator struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresGenerator builds a Postgres-backed reference number generator.
func NewPostgresGenerator(db *pgxpool.Pool) *PostgresGenerator {
	return &PostgresGenerator{db: db, now: time.Now}
}

// Next increments today's counter row atomically and returns the formatted
// reference. The upsert makes insert-or-increment a single statement, so
// concurrent callers on the same date can never collide.
func (g *PostgresGenerator) Next(ctx context.Context) (string, error) {
	day := g.now().UTC()

	var seq int64
	err := g.db.QueryRow(ctx, `INSERT INTO daily_sequences (seq_date, last_seq) VALUES ($1, 1)
        ON CONFLICT (seq_date) DO UPDATE SET last_seq = daily_sequences.last_seq + 1
        RETURNING last_seq`, day.Format(dateLayout)).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("allocate reference number: %w", err)
	}

	return Format(day, seq), nil
}
