package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecocycle/waste-tracking/shared/models"
)

func TestValidateRecoverItems(t *testing.T) {
	plastic := models.GenerateUUID()
	glass := models.GenerateUUID()

	tests := []struct {
		name          string
		items         []RecoverItem
		maxQty        int64
		expectedError string
	}{
		{
			name: "valid items",
			items: []RecoverItem{
				{WasteTypeID: plastic, Qty: 5},
				{WasteTypeID: glass, Qty: 10},
			},
			maxQty: 100,
		},
		{
			name:          "empty list",
			items:         []RecoverItem{},
			maxQty:        100,
			expectedError: "at least one item is required",
		},
		{
			name: "duplicate waste type",
			items: []RecoverItem{
				{WasteTypeID: plastic, Qty: 5},
				{WasteTypeID: plastic, Qty: 1},
			},
			maxQty:        100,
			expectedError: "duplicate waste type",
		},
		{
			name:          "zero quantity",
			items:         []RecoverItem{{WasteTypeID: plastic, Qty: 0}},
			maxQty:        100,
			expectedError: "must be positive",
		},
		{
			name:          "negative quantity",
			items:         []RecoverItem{{WasteTypeID: plastic, Qty: -3}},
			maxQty:        100,
			expectedError: "must be positive",
		},
		{
			name:          "quantity at the limit",
			items:         []RecoverItem{{WasteTypeID: plastic, Qty: 100}},
			maxQty:        100,
		},
		{
			name:          "quantity over the limit",
			items:         []RecoverItem{{WasteTypeID: plastic, Qty: 101}},
			maxQty:        100,
			expectedError: "exceeds maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecoverItems(tt.items, tt.maxQty)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTransferAcceptReject(t *testing.T) {
	sender := models.GenerateUUID()
	recipient := models.GenerateUUID()
	stranger := models.GenerateUUID()

	liveRequest := func() *Transaction {
		return &Transaction{
			ID:   models.GenerateUUID(),
			Type: TransactionTypeTransferRequest,
			From: &sender,
			To:   recipient,
		}
	}

	t.Run("live request addressed to requester", func(t *testing.T) {
		assert.NoError(t, ValidateTransferAcceptReject(liveRequest(), recipient))
	})

	t.Run("not a transfer request", func(t *testing.T) {
		tx := liveRequest()
		tx.Type = TransactionTypeRecover
		err := ValidateTransferAcceptReject(tx, recipient)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "is not a transfer request")
	})

	t.Run("expired request", func(t *testing.T) {
		tx := liveRequest()
		tx.Expire(time.Now())
		err := ValidateTransferAcceptReject(tx, recipient)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "is expired")
	})

	t.Run("addressed to someone else", func(t *testing.T) {
		err := ValidateTransferAcceptReject(liveRequest(), stranger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "is not addressed to requester")
	})
}

func TestValidateTransferCancel(t *testing.T) {
	sender := models.GenerateUUID()
	recipient := models.GenerateUUID()

	liveRequest := func() *Transaction {
		return &Transaction{
			ID:   models.GenerateUUID(),
			Type: TransactionTypeTransferRequest,
			From: &sender,
			To:   recipient,
		}
	}

	t.Run("sender may cancel", func(t *testing.T) {
		assert.NoError(t, ValidateTransferCancel(liveRequest(), sender))
	})

	t.Run("recipient may not cancel", func(t *testing.T) {
		err := ValidateTransferCancel(liveRequest(), recipient)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "was not issued by requester")
	})

	t.Run("expired request", func(t *testing.T) {
		tx := liveRequest()
		tx.Expire(time.Now())
		err := ValidateTransferCancel(tx, sender)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "is expired")
	})

	t.Run("request without sender", func(t *testing.T) {
		tx := liveRequest()
		tx.From = nil
		err := ValidateTransferCancel(tx, sender)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "was not issued by requester")
	})
}
