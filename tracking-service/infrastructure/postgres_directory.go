package infrastructure

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
)

// PostgresDirectory resolves users and recycling centers from the shared
// directory tables. Both lookups are read-only.
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory creates a new PostgresDirectory
func NewPostgresDirectory(db *sqlx.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

type postgresUser struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type postgresRecyclingCenter struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// FindUser retrieves a user by its ID
func (d *PostgresDirectory) FindUser(ctx context.Context, id models.ID) (*domain.User, error) {
	var row postgresUser
	err := d.db.GetContext(ctx, &row, `SELECT id, name, email FROM users WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		return nil, errors.Wrap(err, "failed to find user")
	}

	userID, err := models.NewID(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user id")
	}

	return &domain.User{
		ID:    userID,
		Name:  row.Name,
		Email: row.Email,
	}, nil
}

// FindRecyclingCenter retrieves a recycling center by its ID
func (d *PostgresDirectory) FindRecyclingCenter(ctx context.Context, id models.ID) (*domain.RecyclingCenter, error) {
	var row postgresRecyclingCenter
	err := d.db.GetContext(ctx, &row, `SELECT id, name FROM recycling_centers WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("recycling center", id.String())
		}
		return nil, errors.Wrap(err, "failed to find recycling center")
	}

	centerID, err := models.NewID(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recycling center id")
	}

	return &domain.RecyclingCenter{
		ID:   centerID,
		Name: row.Name,
	}, nil
}
