package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/shared/saga"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/ecocycle/waste-tracking/tracking-service/mocks"
)

func TestRegisterTransferReject_Execute(t *testing.T) {
	senderID := "550e8400-e29b-41d4-a716-446655440010"
	recipientID := "550e8400-e29b-41d4-a716-446655440011"
	requestID := "550e8400-e29b-41d4-a716-446655440030"
	containerID := "550e8400-e29b-41d4-a716-446655440020"
	wasteTypeID := "550e8400-e29b-41d4-a716-446655440001"

	sender := models.ID(senderID)
	recipient := models.ID(recipientID)

	recipientScope := models.UserScope(recipient)
	elevated := models.ElevatedScope()

	pendingRequest := func() *domain.Transaction {
		return &domain.Transaction{
			ID:     models.ID(requestID),
			Type:   domain.TransactionTypeTransferRequest,
			From:   &sender,
			To:     recipient,
			Number: 5,
		}
	}
	pendingContainer := func() *domain.Container {
		return &domain.Container{
			ID:          models.ID(containerID),
			WasteTypeID: models.ID(wasteTypeID),
			Status:      domain.ContainerStatusTransferPending,
			CreatedBy:   sender,
		}
	}
	requestDetail := &domain.TransactionDetail{
		ID:            models.GenerateUUID(),
		TransactionID: models.ID(requestID),
		ContainerID:   models.ID(containerID),
		Qty:           1,
		Unit:          "kg",
	}

	type testMocks struct {
		transactions *mocks.TransactionRepository
		details      *mocks.TransactionDetailRepository
		containers   *mocks.ContainerRepository
		sequencer    *mocks.Sequencer
		stock        *mocks.StockLedger
	}

	tests := []struct {
		name           string
		command        *RegisterTransferRejectCommand
		request        *domain.Transaction
		container      *domain.Container
		setupMocks     func(m *testMocks, request *domain.Transaction, container *domain.Container)
		expectedError  string
		validateResult func(t *testing.T, m *testMocks, request *domain.Transaction, container *domain.Container, result *RegisterTransferRejectResponse)
	}{
		{
			name: "successful reject",
			command: &RegisterTransferRejectCommand{
				RequesterID:   recipientID,
				TransactionID: requestID,
				Reason:        "wrong waste type",
			},
			request:   pendingRequest(),
			container: pendingContainer(),
			setupMocks: func(m *testMocks, request *domain.Transaction, container *domain.Container) {
				m.transactions.On("Get", mock.Anything, models.ID(requestID), recipientScope).
					Return(request, nil)
				m.sequencer.On("NextSequenceNumber", mock.Anything, transactionSequence).
					Return(int64(6), nil)
				m.transactions.On("Save", mock.Anything, mock.Anything, recipientScope).Return(nil)
				m.details.On("FindByTransactionID", mock.Anything, models.ID(requestID), elevated).
					Return([]*domain.TransactionDetail{requestDetail}, nil)
				m.containers.On("FindByIDs", mock.Anything, []models.ID{container.ID}, elevated).
					Return([]*domain.Container{container}, nil)
				m.containers.On("Save", mock.Anything, container, elevated).Return(nil)
				m.details.On("Save", mock.Anything, mock.Anything, recipientScope).Return(nil)
			},
			validateResult: func(t *testing.T, m *testMocks, request *domain.Transaction, container *domain.Container, result *RegisterTransferRejectResponse) {
				assert.Equal(t, domain.TransactionTypeTransferReject, result.Transaction.Type)
				assert.Equal(t, "wrong waste type", result.Transaction.Reason)
				assert.Equal(t, models.ID(requestID), *result.Transaction.RelatedTo)
				assert.True(t, request.IsExpired())
				assert.Equal(t, domain.ContainerStatusRecovered, container.Status)
				// rejecting never moves stock
				m.stock.AssertNotCalled(t, "MoveStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "missing reason",
			command: &RegisterTransferRejectCommand{
				RequesterID:   recipientID,
				TransactionID: requestID,
			},
			request:       pendingRequest(),
			container:     pendingContainer(),
			setupMocks:    func(m *testMocks, request *domain.Transaction, container *domain.Container) {},
			expectedError: "reason is required",
		},
		{
			name: "transaction not found",
			command: &RegisterTransferRejectCommand{
				RequesterID:   recipientID,
				TransactionID: requestID,
				Reason:        "wrong waste type",
			},
			request:   pendingRequest(),
			container: pendingContainer(),
			setupMocks: func(m *testMocks, request *domain.Transaction, container *domain.Container) {
				m.transactions.On("Get", mock.Anything, models.ID(requestID), recipientScope).
					Return(nil, nil)
			},
			expectedError: "transaction " + requestID + " not found",
		},
		{
			name: "detail save failure reverts container and expiry",
			command: &RegisterTransferRejectCommand{
				RequesterID:   recipientID,
				TransactionID: requestID,
				Reason:        "wrong waste type",
			},
			request:   pendingRequest(),
			container: pendingContainer(),
			setupMocks: func(m *testMocks, request *domain.Transaction, container *domain.Container) {
				m.transactions.On("Get", mock.Anything, models.ID(requestID), recipientScope).
					Return(request, nil)
				m.sequencer.On("NextSequenceNumber", mock.Anything, transactionSequence).
					Return(int64(6), nil)
				m.transactions.On("Save", mock.Anything, mock.Anything, recipientScope).Return(nil)
				m.details.On("FindByTransactionID", mock.Anything, models.ID(requestID), elevated).
					Return([]*domain.TransactionDetail{requestDetail}, nil)
				m.containers.On("FindByIDs", mock.Anything, []models.ID{container.ID}, elevated).
					Return([]*domain.Container{container}, nil)
				m.containers.On("Save", mock.Anything, container, elevated).Return(nil)
				m.details.On("Save", mock.Anything, mock.Anything, recipientScope).
					Return(errors.New("db down"))
				m.transactions.On("Save", mock.Anything, request, elevated).Return(nil)
				m.transactions.On("Destroy", mock.Anything, mock.Anything, elevated).Return(nil)
			},
			expectedError: "could not complete",
			validateResult: func(t *testing.T, m *testMocks, request *domain.Transaction, container *domain.Container, result *RegisterTransferRejectResponse) {
				assert.False(t, request.IsExpired())
				assert.Equal(t, domain.ContainerStatusTransferPending, container.Status)
				m.transactions.AssertCalled(t, "Destroy", mock.Anything, mock.Anything, elevated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &testMocks{
				transactions: &mocks.TransactionRepository{},
				details:      &mocks.TransactionDetailRepository{},
				containers:   &mocks.ContainerRepository{},
				sequencer:    &mocks.Sequencer{},
				stock:        &mocks.StockLedger{},
			}
			tt.setupMocks(m, tt.request, tt.container)

			useCase := NewRegisterTransferReject(
				m.transactions,
				m.details,
				m.containers,
				m.sequencer,
				saga.NewCoordinator(nil, nil),
			)

			result, err := useCase.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, result)
			}
			if tt.validateResult != nil {
				tt.validateResult(t, m, tt.request, tt.container, result)
			}
			m.transactions.AssertExpectations(t)
		})
	}
}
