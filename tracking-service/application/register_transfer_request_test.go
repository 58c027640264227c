package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/shared/saga"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/ecocycle/waste-tracking/tracking-service/mocks"
)

func TestRegisterTransferRequest_Execute(t *testing.T) {
	requesterID := "550e8400-e29b-41d4-a716-446655440010"
	recipientID := "550e8400-e29b-41d4-a716-446655440011"
	containerID := "550e8400-e29b-41d4-a716-446655440020"
	wasteTypeID := "550e8400-e29b-41d4-a716-446655440001"

	requester := models.ID(requesterID)
	recipient := models.ID(recipientID)
	wasteType := models.ID(wasteTypeID)

	userScope := models.UserScope(requester)

	recoveredContainer := func() *domain.Container {
		return &domain.Container{
			ID:          models.ID(containerID),
			WasteTypeID: wasteType,
			Status:      domain.ContainerStatusRecovered,
			CreatedBy:   requester,
		}
	}

	type testMocks struct {
		transactions *mocks.TransactionRepository
		details      *mocks.TransactionDetailRepository
		containers   *mocks.ContainerRepository
		wasteTypes   *mocks.WasteTypeRepository
		users        *mocks.UserDirectory
		grants       *mocks.PermissionGrants
		notifier     *mocks.Notifier
		sequencer    *mocks.Sequencer
	}

	setupHappyPath := func(m *testMocks, c *domain.Container) {
		m.users.On("FindUser", mock.Anything, recipient).
			Return(&domain.User{ID: recipient, Name: "Robin"}, nil)
		m.containers.On("FindByIDs", mock.Anything, []models.ID{c.ID}, userScope).
			Return([]*domain.Container{c}, nil)
		m.wasteTypes.On("FindByIDs", mock.Anything, []models.ID{wasteType}).
			Return([]*domain.WasteType{{ID: wasteType, Name: "Plastic", Unit: "kg"}}, nil)
		m.sequencer.On("NextSequenceNumber", mock.Anything, transactionSequence).
			Return(int64(11), nil)
		m.transactions.On("Save", mock.Anything, mock.Anything, userScope).Return(nil)
		m.grants.On("GrantReadWrite", mock.Anything, domain.EntityTransaction, mock.Anything, recipient).
			Return(nil)
		m.grants.On("GrantReadWrite", mock.Anything, domain.EntityContainer, c.ID, recipient).
			Return(nil)
		m.containers.On("Save", mock.Anything, c, userScope).Return(nil)
		m.details.On("Save", mock.Anything, mock.Anything, userScope).Return(nil)
	}

	tests := []struct {
		name           string
		command        *RegisterTransferRequestCommand
		container      *domain.Container
		setupMocks     func(m *testMocks, c *domain.Container)
		expectedError  string
		validateResult func(t *testing.T, m *testMocks, c *domain.Container, result *RegisterTransferRequestResponse)
	}{
		{
			name: "successful transfer request",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: recoveredContainer(),
			setupMocks: func(m *testMocks, c *domain.Container) {
				setupHappyPath(m, c)
				m.notifier.On("NotifyTransferRequest", mock.Anything, mock.Anything, requester, recipient).
					Return(nil)
			},
			validateResult: func(t *testing.T, m *testMocks, c *domain.Container, result *RegisterTransferRequestResponse) {
				assert.Equal(t, domain.TransactionTypeTransferRequest, result.Transaction.Type)
				assert.Equal(t, requester, *result.Transaction.From)
				assert.Equal(t, recipient, result.Transaction.To)
				assert.Equal(t, int64(11), result.Transaction.Number)
				assert.Equal(t, domain.ContainerStatusTransferPending, c.Status)
				assert.Len(t, result.Transaction.Details, 1)
				assert.Equal(t, int64(1), result.Transaction.Details[0].Qty)
				assert.Equal(t, "kg", result.Transaction.Details[0].Unit)
			},
		},
		{
			name: "notification failure does not fail the workflow",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: recoveredContainer(),
			setupMocks: func(m *testMocks, c *domain.Container) {
				setupHappyPath(m, c)
				m.notifier.On("NotifyTransferRequest", mock.Anything, mock.Anything, requester, recipient).
					Return(errors.New("sns unreachable"))
			},
			validateResult: func(t *testing.T, m *testMocks, c *domain.Container, result *RegisterTransferRequestResponse) {
				assert.Equal(t, domain.ContainerStatusTransferPending, c.Status)
			},
		},
		{
			name: "self transfer rejected",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  requesterID,
				ContainerIDs: []string{containerID},
			},
			container:     recoveredContainer(),
			setupMocks:    func(m *testMocks, c *domain.Container) {},
			expectedError: "cannot transfer containers to yourself",
		},
		{
			name: "unknown recipient",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: recoveredContainer(),
			setupMocks: func(m *testMocks, c *domain.Container) {
				m.users.On("FindUser", mock.Anything, recipient).Return(nil, nil)
			},
			expectedError: "user " + recipientID + " not found",
		},
		{
			name: "container not visible to requester",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: recoveredContainer(),
			setupMocks: func(m *testMocks, c *domain.Container) {
				m.users.On("FindUser", mock.Anything, recipient).
					Return(&domain.User{ID: recipient}, nil)
				m.containers.On("FindByIDs", mock.Anything, []models.ID{c.ID}, userScope).
					Return([]*domain.Container{}, nil)
			},
			expectedError: "container " + containerID + " not found",
		},
		{
			name: "container already pending transfer",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: &domain.Container{
				ID:          models.ID(containerID),
				WasteTypeID: wasteType,
				Status:      domain.ContainerStatusTransferPending,
				CreatedBy:   requester,
			},
			setupMocks: func(m *testMocks, c *domain.Container) {
				m.users.On("FindUser", mock.Anything, recipient).
					Return(&domain.User{ID: recipient}, nil)
				m.containers.On("FindByIDs", mock.Anything, []models.ID{c.ID}, userScope).
					Return([]*domain.Container{c}, nil)
			},
			expectedError: "is not available for transfer",
		},
		{
			name: "detail save failure rolls back grants and status",
			command: &RegisterTransferRequestCommand{
				RequesterID:  requesterID,
				RecipientID:  recipientID,
				ContainerIDs: []string{containerID},
			},
			container: recoveredContainer(),
			setupMocks: func(m *testMocks, c *domain.Container) {
				m.users.On("FindUser", mock.Anything, recipient).
					Return(&domain.User{ID: recipient}, nil)
				m.containers.On("FindByIDs", mock.Anything, []models.ID{c.ID}, userScope).
					Return([]*domain.Container{c}, nil)
				m.wasteTypes.On("FindByIDs", mock.Anything, []models.ID{wasteType}).
					Return([]*domain.WasteType{{ID: wasteType, Unit: "kg"}}, nil)
				m.sequencer.On("NextSequenceNumber", mock.Anything, transactionSequence).
					Return(int64(11), nil)
				m.transactions.On("Save", mock.Anything, mock.Anything, userScope).Return(nil)
				m.grants.On("GrantReadWrite", mock.Anything, mock.Anything, mock.Anything, recipient).
					Return(nil)
				m.containers.On("Save", mock.Anything, c, userScope).Return(nil)
				m.details.On("Save", mock.Anything, mock.Anything, userScope).
					Return(errors.New("db down"))
				m.containers.On("Save", mock.Anything, c, models.ElevatedScope()).Return(nil)
				m.grants.On("RevokeReadWrite", mock.Anything, domain.EntityContainer, c.ID, recipient).
					Return(nil)
				m.grants.On("RevokeReadWrite", mock.Anything, domain.EntityTransaction, mock.Anything, recipient).
					Return(nil)
				m.transactions.On("Destroy", mock.Anything, mock.Anything, models.ElevatedScope()).
					Return(nil)
			},
			expectedError: "could not complete",
			validateResult: func(t *testing.T, m *testMocks, c *domain.Container, result *RegisterTransferRequestResponse) {
				assert.Equal(t, domain.ContainerStatusRecovered, c.Status)
				m.containers.AssertCalled(t, "Save", mock.Anything, c, models.ElevatedScope())
				m.grants.AssertCalled(t, "RevokeReadWrite", mock.Anything, domain.EntityContainer, c.ID, recipient)
				m.grants.AssertCalled(t, "RevokeReadWrite", mock.Anything, domain.EntityTransaction, mock.Anything, recipient)
				m.transactions.AssertCalled(t, "Destroy", mock.Anything, mock.Anything, models.ElevatedScope())
				m.notifier.AssertNotCalled(t, "NotifyTransferRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &testMocks{
				transactions: &mocks.TransactionRepository{},
				details:      &mocks.TransactionDetailRepository{},
				containers:   &mocks.ContainerRepository{},
				wasteTypes:   &mocks.WasteTypeRepository{},
				users:        &mocks.UserDirectory{},
				grants:       &mocks.PermissionGrants{},
				notifier:     &mocks.Notifier{},
				sequencer:    &mocks.Sequencer{},
			}
			tt.setupMocks(m, tt.container)

			useCase := NewRegisterTransferRequest(
				m.transactions,
				m.details,
				m.containers,
				m.wasteTypes,
				m.users,
				m.grants,
				m.notifier,
				m.sequencer,
				saga.NewCoordinator(nil, nil),
				zap.NewNop(),
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
				tt.validateResult(t, m, tt.container, result)
			}
			m.transactions.AssertExpectations(t)
			m.grants.AssertExpectations(t)
		})
	}
}

func TestRegisterTransferRequest_validateCommand(t *testing.T) {
	useCase := &RegisterTransferRequest{}

	tests := []struct {
		name          string
		command       *RegisterTransferRequestCommand
		expectedError string
	}{
		{
			name: "valid command",
			command: &RegisterTransferRequestCommand{
				RequesterID:  "550e8400-e29b-41d4-a716-446655440010",
				RecipientID:  "550e8400-e29b-41d4-a716-446655440011",
				ContainerIDs: []string{"550e8400-e29b-41d4-a716-446655440020"},
			},
		},
		{
			name: "missing recipient",
			command: &RegisterTransferRequestCommand{
				RequesterID:  "550e8400-e29b-41d4-a716-446655440010",
				ContainerIDs: []string{"550e8400-e29b-41d4-a716-446655440020"},
			},
			expectedError: "recipient ID is required",
		},
		{
			name: "no containers",
			command: &RegisterTransferRequestCommand{
				RequesterID: "550e8400-e29b-41d4-a716-446655440010",
				RecipientID: "550e8400-e29b-41d4-a716-446655440011",
			},
			expectedError: "at least one container is required",
		},
		{
			name: "invalid container ID",
			command: &RegisterTransferRequestCommand{
				RequesterID:  "550e8400-e29b-41d4-a716-446655440010",
				RecipientID:  "550e8400-e29b-41d4-a716-446655440011",
				ContainerIDs: []string{"not-a-uuid"},
			},
			expectedError: "invalid container ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := useCase.validateCommand(tt.command)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
