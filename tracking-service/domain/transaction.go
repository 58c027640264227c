package domain

import (
	"context"
	"time"

	"github.com/ecocycle/waste-tracking/shared/models"
)

// TransactionType represents the kind of workflow that produced a ledger entry
type TransactionType string

const (
	TransactionTypeRecover         TransactionType = "RECOVER"
	TransactionTypeTransferRequest TransactionType = "TRANSFER_REQUEST"
	TransactionTypeTransferAccept  TransactionType = "TRANSFER_ACCEPT"
	TransactionTypeTransferReject  TransactionType = "TRANSFER_REJECT"
	TransactionTypeTransferCancel  TransactionType = "TRANSFER_CANCEL"
	TransactionTypeTransport       TransactionType = "TRANSPORT"
)

// Transaction is one immutable ledger entry per workflow invocation.
// Number is unique and strictly increasing across the whole ledger.
// ExpiredAt set marks a TRANSFER_REQUEST as consumed; RelatedTo links an
// accept/reject/cancel entry back to its originating request.
type Transaction struct {
	ID              models.ID
	Type            TransactionType
	From            *models.ID
	To              models.ID
	Number          int64
	RecyclingCenter *models.ID
	Reason          string
	RelatedTo       *models.ID
	ExpiredAt       *time.Time
	Details         []*TransactionDetail
	Timestamps      models.Timestamps
}

// TransactionDetail is one line item linking a Transaction to one affected
// container. Created only after the container's status mutation succeeded.
type TransactionDetail struct {
	ID            models.ID
	TransactionID models.ID
	ContainerID   models.ID
	Qty           int64
	Unit          string
}

// NewRecoverTransaction creates the ledger entry for a recover workflow
func NewRecoverTransaction(to models.ID, number int64) *Transaction {
	return &Transaction{
		ID:         models.GenerateUUID(),
		Type:       TransactionTypeRecover,
		To:         to,
		Number:     number,
		Timestamps: models.NewTimestamps(),
	}
}

// NewTransferRequestTransaction creates the ledger entry for a transfer request
func NewTransferRequestTransaction(from, to models.ID, number int64) *Transaction {
	return &Transaction{
		ID:         models.GenerateUUID(),
		Type:       TransactionTypeTransferRequest,
		From:       &from,
		To:         to,
		Number:     number,
		Timestamps: models.NewTimestamps(),
	}
}

// NewTransferResolution creates the accept/reject/cancel ledger entry for a
// pending transfer request. From/To are copied from the request and RelatedTo
// points back at it.
func NewTransferResolution(txType TransactionType, request *Transaction, number int64, reason string) *Transaction {
	return &Transaction{
		ID:         models.GenerateUUID(),
		Type:       txType,
		From:       request.From,
		To:         request.To,
		Number:     number,
		Reason:     reason,
		RelatedTo:  &request.ID,
		Timestamps: models.NewTimestamps(),
	}
}

// NewTransportTransaction creates the ledger entry for a transport workflow
func NewTransportTransaction(from models.ID, recyclingCenter models.ID, number int64) *Transaction {
	return &Transaction{
		ID:              models.GenerateUUID(),
		Type:            TransactionTypeTransport,
		From:            &from,
		To:              from,
		Number:          number,
		RecyclingCenter: &recyclingCenter,
		Timestamps:      models.NewTimestamps(),
	}
}

// Expire marks a transfer request as consumed
func (t *Transaction) Expire(at time.Time) {
	t.ExpiredAt = &at
	t.Timestamps = t.Timestamps.Update()
}

// ClearExpiry reverts Expire during compensation
func (t *Transaction) ClearExpiry() {
	t.ExpiredAt = nil
	t.Timestamps = t.Timestamps.Update()
}

// IsExpired checks whether the request was already consumed
func (t *Transaction) IsExpired() bool {
	return t.ExpiredAt != nil
}

// NewDetail creates a detail row for the given container
func (t *Transaction) NewDetail(containerID models.ID, qty models.Quantity) *TransactionDetail {
	return &TransactionDetail{
		ID:            models.GenerateUUID(),
		TransactionID: t.ID,
		ContainerID:   containerID,
		Qty:           qty.Amount,
		Unit:          qty.Unit,
	}
}

// AttachDetails sets the in-memory detail snapshots on the returned entry
func (t *Transaction) AttachDetails(details []*TransactionDetail) {
	t.Details = details
}

// Repository interfaces

type TransactionRepository interface {
	Get(ctx context.Context, id models.ID, scope models.Scope) (*Transaction, error)
	Save(ctx context.Context, transaction *Transaction, scope models.Scope) error
	Destroy(ctx context.Context, transaction *Transaction, scope models.Scope) error
}

type TransactionDetailRepository interface {
	Save(ctx context.Context, detail *TransactionDetail, scope models.Scope) error
	FindByTransactionID(ctx context.Context, transactionID models.ID, scope models.Scope) ([]*TransactionDetail, error)
}
