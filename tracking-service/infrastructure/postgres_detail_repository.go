package infrastructure

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresDetailRepository implements TransactionDetailRepository using PostgreSQL
type PostgresDetailRepository struct {
	db *sqlx.DB
}

// NewPostgresDetailRepository creates a new PostgresDetailRepository
func NewPostgresDetailRepository(db *sqlx.DB) *PostgresDetailRepository {
	return &PostgresDetailRepository{db: db}
}

type postgresDetail struct {
	ID            string `db:"id"`
	TransactionID string `db:"transaction_id"`
	ContainerID   string `db:"container_id"`
	Qty           int64  `db:"qty"`
	Unit          string `db:"unit"`
}

// Save inserts a detail row. Details are never mutated.
func (r *PostgresDetailRepository) Save(ctx context.Context, detail *domain.TransactionDetail, scope models.Scope) error {
	query := `
		INSERT INTO transaction_details (id, transaction_id, container_id, qty, unit)
		VALUES (:id, :transaction_id, :container_id, :qty, :unit)`

	_, err := r.db.NamedExecContext(ctx, query, &postgresDetail{
		ID:            detail.ID.String(),
		TransactionID: detail.TransactionID.String(),
		ContainerID:   detail.ContainerID.String(),
		Qty:           detail.Qty,
		Unit:          detail.Unit,
	})
	if err != nil {
		return errors.Wrap(err, "failed to save transaction detail")
	}

	return nil
}

// FindByTransactionID returns all detail rows of a transaction
func (r *PostgresDetailRepository) FindByTransactionID(ctx context.Context, transactionID models.ID, scope models.Scope) ([]*domain.TransactionDetail, error) {
	query := `
		SELECT id, transaction_id, container_id, qty, unit
		FROM transaction_details
		WHERE transaction_id = $1
		ORDER BY id`

	var pgDetails []postgresDetail
	err := r.db.SelectContext(ctx, &pgDetails, query, transactionID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to find transaction details")
	}

	details := make([]*domain.TransactionDetail, len(pgDetails))
	for i, pgDetail := range pgDetails {
		id, err := models.NewID(pgDetail.ID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid detail ID")
		}
		txID, err := models.NewID(pgDetail.TransactionID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid transaction ID")
		}
		containerID, err := models.NewID(pgDetail.ContainerID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid container ID")
		}

		details[i] = &domain.TransactionDetail{
			ID:            id,
			TransactionID: txID,
			ContainerID:   containerID,
			Qty:           pgDetail.Qty,
			Unit:          pgDetail.Unit,
		}
	}

	return details, nil
}
