package domain

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
)

// Stock maps waste type IDs to per-user counters
type Stock map[models.ID]int64

// StockLedger keeps per-user, per-waste-type counters. Counters never go
// negative; RestoreUserStock writes back a snapshot taken before a workflow
// started and exists only for compensation.
type StockLedger interface {
	GetUserStock(ctx context.Context, user models.ID) (Stock, error)
	IncrementStock(ctx context.Context, wasteType, user models.ID, qty int64) error
	MoveStock(ctx context.Context, wasteType, from, to models.ID, qty int64) error
	RestoreUserStock(ctx context.Context, user models.ID, stock Stock) error
}

// Grantable entity kinds for permission grants
const (
	EntityTransaction = "transaction"
	EntityContainer   = "container"
)

// PermissionGrants manages per-record read/write ACL grants
type PermissionGrants interface {
	GrantReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error
	RevokeReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error
}

// Notifier delivers notifications fire-and-forget. Failures are logged and
// never enter the compensation path.
type Notifier interface {
	NotifyTransferRequest(ctx context.Context, transactionID, from, to models.ID) error
	NotifyTransport(ctx context.Context, transactionID, from models.ID, to []models.ID) error
}

// TransportAuthorizer is the external capability check for transport
type TransportAuthorizer interface {
	CanTransportContainer(ctx context.Context, container *Container, user models.ID) error
}

// Sequencer hands out monotonic, process-wide sequence numbers per entity
type Sequencer interface {
	NextSequenceNumber(ctx context.Context, entity string) (int64, error)
}
