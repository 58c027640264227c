package infrastructure

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
)

// PostgresWasteTypeRepository implements WasteTypeRepository using PostgreSQL
type PostgresWasteTypeRepository struct {
	db *sqlx.DB
}

// NewPostgresWasteTypeRepository creates a new PostgresWasteTypeRepository
func NewPostgresWasteTypeRepository(db *sqlx.DB) *PostgresWasteTypeRepository {
	return &PostgresWasteTypeRepository{db: db}
}

type postgresWasteType struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Unit string `db:"unit"`
}

func (r *postgresWasteType) toDomain() (*domain.WasteType, error) {
	id, err := models.NewID(r.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid waste type id")
	}

	return &domain.WasteType{
		ID:   id,
		Name: r.Name,
		Unit: r.Unit,
	}, nil
}

// Get retrieves a waste type by its ID
func (r *PostgresWasteTypeRepository) Get(ctx context.Context, id models.ID) (*domain.WasteType, error) {
	var row postgresWasteType
	err := r.db.GetContext(ctx, &row, `SELECT id, name, unit FROM waste_types WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("waste type", id.String())
		}
		return nil, errors.Wrap(err, "failed to get waste type")
	}

	return row.toDomain()
}

// FindByIDs retrieves waste types for every ID present in the table
func (r *PostgresWasteTypeRepository) FindByIDs(ctx context.Context, ids []models.ID) ([]*domain.WasteType, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	var rows []postgresWasteType
	err := r.db.SelectContext(ctx, &rows, `SELECT id, name, unit FROM waste_types WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find waste types")
	}

	wasteTypes := make([]*domain.WasteType, 0, len(rows))
	for i := range rows {
		wt, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		wasteTypes = append(wasteTypes, wt)
	}

	return wasteTypes, nil
}
