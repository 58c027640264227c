package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL
type PostgresTransactionRepository struct {
	db *sqlx.DB
}

// NewPostgresTransactionRepository creates a new PostgresTransactionRepository
func NewPostgresTransactionRepository(db *sqlx.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

type postgresTransaction struct {
	ID              string     `db:"id"`
	Type            string     `db:"type"`
	FromUser        *string    `db:"from_user"`
	ToUser          string     `db:"to_user"`
	Number          int64      `db:"number"`
	RecyclingCenter *string    `db:"recycling_center"`
	Reason          string     `db:"reason"`
	RelatedTo       *string    `db:"related_to"`
	ExpiredAt       *time.Time `db:"expired_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Get finds a transaction by ID under the given scope. Non-elevated scopes
// only see entries they are party to or were granted access to.
func (r *PostgresTransactionRepository) Get(ctx context.Context, id models.ID, scope models.Scope) (*domain.Transaction, error) {
	query := `
		SELECT id, type, from_user, to_user, number, recycling_center,
			   reason, related_to, expired_at, created_at, updated_at
		FROM transactions
		WHERE id = $1
		  AND ($2 OR from_user = $3 OR to_user = $3 OR EXISTS (
			SELECT 1 FROM permission_grants
			WHERE entity_type = 'transaction' AND entity_id = $1 AND user_id = $3
		  ))`

	var pgTx postgresTransaction
	err := r.db.GetContext(ctx, &pgTx, query, id.String(), scope.Elevated, scope.UserID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find transaction")
	}

	return r.toDomain(&pgTx)
}

// Save inserts or updates a transaction
func (r *PostgresTransactionRepository) Save(ctx context.Context, tx *domain.Transaction, scope models.Scope) error {
	query := `
		INSERT INTO transactions (
			id, type, from_user, to_user, number, recycling_center,
			reason, related_to, expired_at, created_at, updated_at
		) VALUES (
			:id, :type, :from_user, :to_user, :number, :recycling_center,
			:reason, :related_to, :expired_at, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			reason = EXCLUDED.reason,
			related_to = EXCLUDED.related_to,
			expired_at = EXCLUDED.expired_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, r.toPostgres(tx))
	if err != nil {
		return errors.Wrap(err, "failed to save transaction")
	}

	return nil
}

// Destroy hard-deletes a transaction. Used only by compensation.
func (r *PostgresTransactionRepository) Destroy(ctx context.Context, tx *domain.Transaction, scope models.Scope) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, tx.ID.String())
	if err != nil {
		return errors.Wrap(err, "failed to destroy transaction")
	}

	return nil
}

func (r *PostgresTransactionRepository) toPostgres(tx *domain.Transaction) *postgresTransaction {
	pgTx := &postgresTransaction{
		ID:        tx.ID.String(),
		Type:      string(tx.Type),
		ToUser:    tx.To.String(),
		Number:    tx.Number,
		Reason:    tx.Reason,
		ExpiredAt: tx.ExpiredAt,
		CreatedAt: tx.Timestamps.CreatedAt,
		UpdatedAt: tx.Timestamps.UpdatedAt,
	}

	if tx.From != nil {
		from := tx.From.String()
		pgTx.FromUser = &from
	}
	if tx.RecyclingCenter != nil {
		center := tx.RecyclingCenter.String()
		pgTx.RecyclingCenter = &center
	}
	if tx.RelatedTo != nil {
		related := tx.RelatedTo.String()
		pgTx.RelatedTo = &related
	}

	return pgTx
}

func (r *PostgresTransactionRepository) toDomain(pgTx *postgresTransaction) (*domain.Transaction, error) {
	id, err := models.NewID(pgTx.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid transaction ID")
	}

	to, err := models.NewID(pgTx.ToUser)
	if err != nil {
		return nil, errors.Wrap(err, "invalid to user ID")
	}

	tx := &domain.Transaction{
		ID:        id,
		Type:      domain.TransactionType(pgTx.Type),
		To:        to,
		Number:    pgTx.Number,
		Reason:    pgTx.Reason,
		ExpiredAt: pgTx.ExpiredAt,
		Timestamps: models.Timestamps{
			CreatedAt: pgTx.CreatedAt,
			UpdatedAt: pgTx.UpdatedAt,
		},
	}

	if pgTx.FromUser != nil {
		from, err := models.NewID(*pgTx.FromUser)
		if err != nil {
			return nil, errors.Wrap(err, "invalid from user ID")
		}
		tx.From = &from
	}
	if pgTx.RecyclingCenter != nil {
		center, err := models.NewID(*pgTx.RecyclingCenter)
		if err != nil {
			return nil, errors.Wrap(err, "invalid recycling center ID")
		}
		tx.RecyclingCenter = &center
	}
	if pgTx.RelatedTo != nil {
		related, err := models.NewID(*pgTx.RelatedTo)
		if err != nil {
			return nil, errors.Wrap(err, "invalid related transaction ID")
		}
		tx.RelatedTo = &related
	}

	return tx, nil
}
