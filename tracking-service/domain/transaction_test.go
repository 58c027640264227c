package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecocycle/waste-tracking/shared/models"
)

func TestTransactionFactories(t *testing.T) {
	sender := models.GenerateUUID()
	recipient := models.GenerateUUID()
	center := models.GenerateUUID()

	t.Run("recover", func(t *testing.T) {
		tx := NewRecoverTransaction(recipient, 1)
		assert.Equal(t, TransactionTypeRecover, tx.Type)
		assert.Nil(t, tx.From)
		assert.Equal(t, recipient, tx.To)
		assert.Equal(t, int64(1), tx.Number)
	})

	t.Run("transfer request", func(t *testing.T) {
		tx := NewTransferRequestTransaction(sender, recipient, 2)
		assert.Equal(t, TransactionTypeTransferRequest, tx.Type)
		assert.Equal(t, sender, *tx.From)
		assert.Equal(t, recipient, tx.To)
	})

	t.Run("resolution copies endpoints and links the request", func(t *testing.T) {
		request := NewTransferRequestTransaction(sender, recipient, 2)
		tx := NewTransferResolution(TransactionTypeTransferReject, request, 3, "damaged")
		assert.Equal(t, TransactionTypeTransferReject, tx.Type)
		assert.Equal(t, sender, *tx.From)
		assert.Equal(t, recipient, tx.To)
		assert.Equal(t, request.ID, *tx.RelatedTo)
		assert.Equal(t, "damaged", tx.Reason)
	})

	t.Run("transport keeps containers with the requester", func(t *testing.T) {
		tx := NewTransportTransaction(sender, center, 4)
		assert.Equal(t, TransactionTypeTransport, tx.Type)
		assert.Equal(t, sender, *tx.From)
		assert.Equal(t, sender, tx.To)
		assert.Equal(t, center, *tx.RecyclingCenter)
	})
}

func TestTransaction_Expiry(t *testing.T) {
	tx := NewTransferRequestTransaction(models.GenerateUUID(), models.GenerateUUID(), 1)
	assert.False(t, tx.IsExpired())

	tx.Expire(time.Now())
	assert.True(t, tx.IsExpired())

	tx.ClearExpiry()
	assert.False(t, tx.IsExpired())
}

func TestTransaction_NewDetail(t *testing.T) {
	tx := NewRecoverTransaction(models.GenerateUUID(), 1)
	containerID := models.GenerateUUID()

	detail := tx.NewDetail(containerID, models.NewQuantity(5, "kg"))

	assert.Equal(t, tx.ID, detail.TransactionID)
	assert.Equal(t, containerID, detail.ContainerID)
	assert.Equal(t, int64(5), detail.Qty)
	assert.Equal(t, "kg", detail.Unit)
}
