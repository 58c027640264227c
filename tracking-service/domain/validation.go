package domain

import (
	"github.com/ecocycle/waste-tracking/shared/models"
)

// RecoverItem is one input line of a recover request
type RecoverItem struct {
	WasteTypeID models.ID
	Qty         int64
	Unit        string
}

// ValidateRecoverItems rejects duplicate waste types within one request and
// any single item quantity over the configured maximum
func ValidateRecoverItems(items []RecoverItem, maxQtyPerItem int64) error {
	if len(items) == 0 {
		return NewValidationError("at least one item is required")
	}

	seen := make(map[models.ID]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.WasteTypeID]; dup {
			return NewValidationError("duplicate waste type %s in request", item.WasteTypeID)
		}
		seen[item.WasteTypeID] = struct{}{}

		if item.Qty <= 0 {
			return NewValidationError("quantity for waste type %s must be positive", item.WasteTypeID)
		}
		if item.Qty > maxQtyPerItem {
			return NewValidationError("quantity %d for waste type %s exceeds maximum %d per request",
				item.Qty, item.WasteTypeID, maxQtyPerItem)
		}
	}

	return nil
}

// ValidateTransferAcceptReject checks that a transaction is a live transfer
// request addressed to the requester
func ValidateTransferAcceptReject(tx *Transaction, requester models.ID) error {
	if tx.Type != TransactionTypeTransferRequest {
		return NewValidationError("transaction %s is not a transfer request", tx.ID)
	}
	if tx.IsExpired() {
		return NewValidationError("transfer request %s is expired", tx.ID)
	}
	if tx.To != requester {
		return NewValidationError("transfer request %s is not addressed to requester", tx.ID)
	}
	return nil
}

// ValidateTransferCancel checks that a transaction is a live transfer request
// issued by the requester
func ValidateTransferCancel(tx *Transaction, requester models.ID) error {
	if tx.Type != TransactionTypeTransferRequest {
		return NewValidationError("transaction %s is not a transfer request", tx.ID)
	}
	if tx.IsExpired() {
		return NewValidationError("transfer request %s is expired", tx.ID)
	}
	if tx.From == nil || *tx.From != requester {
		return NewValidationError("transfer request %s was not issued by requester", tx.ID)
	}
	return nil
}
