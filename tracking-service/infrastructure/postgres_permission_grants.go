package infrastructure

import (
	"context"
	"time"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresPermissionGrants implements PermissionGrants using PostgreSQL
type PostgresPermissionGrants struct {
	db *sqlx.DB
}

// NewPostgresPermissionGrants creates a new PostgresPermissionGrants
func NewPostgresPermissionGrants(db *sqlx.DB) *PostgresPermissionGrants {
	return &PostgresPermissionGrants{db: db}
}

// GrantReadWrite grants a user access to a record. Granting twice is a no-op.
func (g *PostgresPermissionGrants) GrantReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error {
	query := `
		INSERT INTO permission_grants (entity_type, entity_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, entity_id, user_id) DO NOTHING`

	_, err := g.db.ExecContext(ctx, query, entityType, entityID.String(), user.String(), time.Now())
	if err != nil {
		return errors.Wrap(err, "failed to grant access")
	}

	return nil
}

// RevokeReadWrite removes a user's access to a record. Revoking an absent
// grant is a no-op.
func (g *PostgresPermissionGrants) RevokeReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error {
	query := `
		DELETE FROM permission_grants
		WHERE entity_type = $1 AND entity_id = $2 AND user_id = $3`

	_, err := g.db.ExecContext(ctx, query, entityType, entityID.String(), user.String())
	if err != nil {
		return errors.Wrap(err, "failed to revoke access")
	}

	return nil
}
