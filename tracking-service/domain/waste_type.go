package domain

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
)

// WasteType classifies the material a container holds
type WasteType struct {
	ID   models.ID
	Name string
	Unit string
}

type WasteTypeRepository interface {
	Get(ctx context.Context, id models.ID) (*WasteType, error)
	FindByIDs(ctx context.Context, ids []models.ID) ([]*WasteType, error)
}

// User is a participant in the recovery lifecycle, resolved through the
// external directory
type User struct {
	ID    models.ID
	Name  string
	Email string
}

// RecyclingCenter is a transport destination
type RecyclingCenter struct {
	ID   models.ID
	Name string
}

type UserDirectory interface {
	FindUser(ctx context.Context, id models.ID) (*User, error)
}

type RecyclingCenterDirectory interface {
	FindRecyclingCenter(ctx context.Context, id models.ID) (*RecyclingCenter, error)
}
