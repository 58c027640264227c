package application

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/pkg/errors"
)

// GetTransactionQuery represents the query to retrieve a ledger entry
type GetTransactionQuery struct {
	RequesterID   string `json:"requester_id"`
	TransactionID string `json:"transaction_id"`
}

// GetTransaction use case retrieves a transaction with its detail rows
type GetTransaction struct {
	transactions domain.TransactionRepository
	details      domain.TransactionDetailRepository
}

// NewGetTransaction creates a new GetTransaction use case
func NewGetTransaction(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
) *GetTransaction {
	return &GetTransaction{
		transactions: transactions,
		details:      details,
	}
}

// Execute retrieves a transaction under the requester's scope
func (uc *GetTransaction) Execute(ctx context.Context, query *GetTransactionQuery) (*domain.Transaction, error) {
	requester, txID, err := parseResolutionCommand(query.RequesterID, query.TransactionID)
	if err != nil {
		return nil, err
	}

	scope := models.UserScope(requester)

	tx, err := uc.transactions.Get(ctx, txID, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transaction")
	}
	if tx == nil {
		return nil, domain.NewNotFoundError("transaction", txID.String())
	}

	details, err := uc.details.FindByTransactionID(ctx, txID, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transaction details")
	}

	tx.AttachDetails(details)
	return tx, nil
}
