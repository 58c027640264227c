package infrastructure

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
)

// PostgresTransportAuthorizer checks transport permits. A user may transport
// a container only when they hold a permit for its waste type.
type PostgresTransportAuthorizer struct {
	db *sqlx.DB
}

// NewPostgresTransportAuthorizer creates a new PostgresTransportAuthorizer
func NewPostgresTransportAuthorizer(db *sqlx.DB) *PostgresTransportAuthorizer {
	return &PostgresTransportAuthorizer{db: db}
}

// CanTransportContainer returns a DeniedError when the user holds no permit
// for the container's waste type
func (a *PostgresTransportAuthorizer) CanTransportContainer(ctx context.Context, container *domain.Container, user models.ID) error {
	query := `SELECT EXISTS (
		SELECT 1 FROM transport_permits
		WHERE user_id = $1 AND waste_type_id = $2
	)`

	var permitted bool
	err := a.db.GetContext(ctx, &permitted, query, user.String(), container.WasteTypeID.String())
	if err != nil {
		return errors.Wrap(err, "failed to check transport permit")
	}

	if !permitted {
		return domain.NewDeniedError("user %s holds no transport permit for waste type %s", user, container.WasteTypeID)
	}

	return nil
}
