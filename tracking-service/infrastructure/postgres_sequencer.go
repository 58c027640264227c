package infrastructure

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresSequencer implements Sequencer using a counters table. The upsert
// with RETURNING is a single atomic statement, so numbers are monotonic and
// never reused across concurrent callers.
type PostgresSequencer struct {
	db *sqlx.DB
}

// NewPostgresSequencer creates a new PostgresSequencer
func NewPostgresSequencer(db *sqlx.DB) *PostgresSequencer {
	return &PostgresSequencer{db: db}
}

// NextSequenceNumber returns the next number for the given entity
func (s *PostgresSequencer) NextSequenceNumber(ctx context.Context, entity string) (int64, error) {
	query := `
		INSERT INTO sequences (entity, value)
		VALUES ($1, 1)
		ON CONFLICT (entity) DO UPDATE SET value = sequences.value + 1
		RETURNING value`

	var value int64
	if err := s.db.GetContext(ctx, &value, query, entity); err != nil {
		return 0, errors.Wrap(err, "failed to get next sequence number")
	}

	return value, nil
}
