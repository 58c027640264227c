package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// ErrVersionConflict is returned when a container save loses an optimistic
// concurrency race: another workflow wrote the container since it was read.
var ErrVersionConflict = errors.New("container version conflict")

// PostgresContainerRepository implements ContainerRepository using PostgreSQL
type PostgresContainerRepository struct {
	db *sqlx.DB
}

// NewPostgresContainerRepository creates a new PostgresContainerRepository
func NewPostgresContainerRepository(db *sqlx.DB) *PostgresContainerRepository {
	return &PostgresContainerRepository{db: db}
}

type postgresContainer struct {
	ID          string    `db:"id"`
	WasteTypeID string    `db:"waste_type_id"`
	Status      string    `db:"status"`
	CreatedBy   string    `db:"created_by"`
	BatchNumber int64     `db:"batch_number"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

const containerScopeFilter = `
	($2 OR created_by = $3 OR EXISTS (
		SELECT 1 FROM permission_grants
		WHERE entity_type = 'container' AND entity_id = containers.id AND user_id = $3
	))`

// Get finds a container by ID under the given scope
func (r *PostgresContainerRepository) Get(ctx context.Context, id models.ID, scope models.Scope) (*domain.Container, error) {
	query := `
		SELECT id, waste_type_id, status, created_by, batch_number,
			   created_at, updated_at, version
		FROM containers
		WHERE id = $1 AND` + containerScopeFilter

	var pgContainer postgresContainer
	err := r.db.GetContext(ctx, &pgContainer, query, id.String(), scope.Elevated, scope.UserID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find container")
	}

	return r.toDomain(&pgContainer)
}

// FindByIDs loads the given containers, silently skipping any the scope
// cannot see
func (r *PostgresContainerRepository) FindByIDs(ctx context.Context, ids []models.ID, scope models.Scope) ([]*domain.Container, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `
		SELECT id, waste_type_id, status, created_by, batch_number,
			   created_at, updated_at, version
		FROM containers
		WHERE id = ANY($1) AND` + containerScopeFilter

	var pgContainers []postgresContainer
	err := r.db.SelectContext(ctx, &pgContainers, query, pq.Array(raw), scope.Elevated, scope.UserID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to find containers")
	}

	containers := make([]*domain.Container, len(pgContainers))
	for i, pgContainer := range pgContainers {
		container, err := r.toDomain(&pgContainer)
		if err != nil {
			return nil, err
		}
		containers[i] = container
	}

	return containers, nil
}

// Save inserts a new container or updates an existing one with an optimistic
// version check. A lost race returns ErrVersionConflict instead of silently
// accepting a last-write-wins overwrite.
func (r *PostgresContainerRepository) Save(ctx context.Context, container *domain.Container, scope models.Scope) error {
	query := `
		INSERT INTO containers (
			id, waste_type_id, status, created_by, batch_number,
			created_at, updated_at, version
		) VALUES (
			:id, :waste_type_id, :status, :created_by, :batch_number,
			:created_at, :updated_at, :version
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE containers.version = EXCLUDED.version - 1`

	res, err := r.db.NamedExecContext(ctx, query, r.toPostgres(container))
	if err != nil {
		return errors.Wrap(err, "failed to save container")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check save result")
	}
	if affected == 0 {
		return errors.Wrapf(ErrVersionConflict, "container %s", container.ID)
	}

	return nil
}

func (r *PostgresContainerRepository) toPostgres(container *domain.Container) *postgresContainer {
	return &postgresContainer{
		ID:          container.ID.String(),
		WasteTypeID: container.WasteTypeID.String(),
		Status:      string(container.Status),
		CreatedBy:   container.CreatedBy.String(),
		BatchNumber: container.BatchNumber,
		CreatedAt:   container.Timestamps.CreatedAt,
		UpdatedAt:   container.Timestamps.UpdatedAt,
		Version:     container.Version.Value,
	}
}

func (r *PostgresContainerRepository) toDomain(pgContainer *postgresContainer) (*domain.Container, error) {
	id, err := models.NewID(pgContainer.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid container ID")
	}

	wasteTypeID, err := models.NewID(pgContainer.WasteTypeID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid waste type ID")
	}

	createdBy, err := models.NewID(pgContainer.CreatedBy)
	if err != nil {
		return nil, errors.Wrap(err, "invalid creator ID")
	}

	return &domain.Container{
		ID:          id,
		WasteTypeID: wasteTypeID,
		Status:      domain.ContainerStatus(pgContainer.Status),
		CreatedBy:   createdBy,
		BatchNumber: pgContainer.BatchNumber,
		Timestamps: models.Timestamps{
			CreatedAt: pgContainer.CreatedAt,
			UpdatedAt: pgContainer.UpdatedAt,
		},
		Version: models.Version{Value: pgContainer.Version},
	}, nil
}
