package domain

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
)

// ContainerStatus represents the lifecycle status of a container
type ContainerStatus string

const (
	ContainerStatusRecovered       ContainerStatus = "RECOVERED"
	ContainerStatusTransferPending ContainerStatus = "TRANSFER_PENDING"
	ContainerStatusTransferred     ContainerStatus = "TRANSFERRED"
	ContainerStatusInTransit       ContainerStatus = "IN_TRANSIT"
)

// Container is a physical unit of waste of a given type. Status transitions
// are workflow-gated; BatchNumber carries the sequence number of the recover
// transaction that created it.
type Container struct {
	ID          models.ID
	WasteTypeID models.ID
	Status      ContainerStatus
	CreatedBy   models.ID
	BatchNumber int64
	Timestamps  models.Timestamps
	Version     models.Version
}

// NewContainer creates a container in RECOVERED status
func NewContainer(wasteTypeID, createdBy models.ID, batchNumber int64) *Container {
	return &Container{
		ID:          models.GenerateUUID(),
		WasteTypeID: wasteTypeID,
		Status:      ContainerStatusRecovered,
		CreatedBy:   createdBy,
		BatchNumber: batchNumber,
		Timestamps:  models.NewTimestamps(),
		Version:     models.NewVersion(),
	}
}

// CanTransfer reports transfer eligibility
func (c *Container) CanTransfer() bool {
	return c.Status == ContainerStatusRecovered
}

// CanTransport reports transport eligibility
func (c *Container) CanTransport() bool {
	return c.Status == ContainerStatusRecovered || c.Status == ContainerStatusTransferred
}

// MarkTransferPending flips a recovered container into a pending transfer
func (c *Container) MarkTransferPending() error {
	if !c.CanTransfer() {
		return NewValidationError("container %s is not available for transfer (status %s)", c.ID, c.Status)
	}
	c.setStatus(ContainerStatusTransferPending)
	return nil
}

// MarkTransferred completes a pending transfer
func (c *Container) MarkTransferred() error {
	if c.Status != ContainerStatusTransferPending {
		return NewValidationError("container %s has no pending transfer (status %s)", c.ID, c.Status)
	}
	c.setStatus(ContainerStatusTransferred)
	return nil
}

// MarkRecovered returns a pending container to its owner
func (c *Container) MarkRecovered() error {
	if c.Status != ContainerStatusTransferPending {
		return NewValidationError("container %s has no pending transfer (status %s)", c.ID, c.Status)
	}
	c.setStatus(ContainerStatusRecovered)
	return nil
}

// MarkInTransit flips an eligible container into transport
func (c *Container) MarkInTransit() error {
	if !c.CanTransport() {
		return NewValidationError("container %s is not available for transport (status %s)", c.ID, c.Status)
	}
	c.setStatus(ContainerStatusInTransit)
	return nil
}

// RestoreStatus sets the status back during compensation, without gating
func (c *Container) RestoreStatus(status ContainerStatus) {
	c.setStatus(status)
}

func (c *Container) setStatus(status ContainerStatus) {
	c.Status = status
	c.Timestamps = c.Timestamps.Update()
	c.Version = c.Version.Update()
}

// Repository interfaces

type ContainerRepository interface {
	Get(ctx context.Context, id models.ID, scope models.Scope) (*Container, error)
	Save(ctx context.Context, container *Container, scope models.Scope) error
	FindByIDs(ctx context.Context, ids []models.ID, scope models.Scope) ([]*Container, error)
}
