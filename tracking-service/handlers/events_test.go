package handlers

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/ecocycle/waste-tracking/tracking-service/mocks"
)

func TestNotificationEventHandlers_Handle(t *testing.T) {
	transactionID := "550e8400-e29b-41d4-a716-446655440030"
	senderID := "550e8400-e29b-41d4-a716-446655440010"
	recipientID := "550e8400-e29b-41d4-a716-446655440011"
	ownerID := "550e8400-e29b-41d4-a716-446655440012"

	tests := []struct {
		name          string
		event         *events.Event
		setupMocks    func(users *mocks.UserDirectory)
		expectedError string
	}{
		{
			name: "transfer request notification delivered to recipient",
			event: events.NewEvent(models.ID(transactionID), events.TransferRequestNotificationEvent, map[string]string{
				"transaction_id": transactionID,
				"from":           senderID,
				"to":             recipientID,
			}),
			setupMocks: func(users *mocks.UserDirectory) {
				users.On("FindUser", mock.Anything, models.ID(recipientID)).
					Return(&domain.User{ID: models.ID(recipientID), Email: "robin@example.com"}, nil)
			},
		},
		{
			name: "transport notification delivered to every owner",
			event: events.NewEvent(models.ID(transactionID), events.TransportNotificationEvent, map[string]interface{}{
				"transaction_id": transactionID,
				"from":           senderID,
				"to":             []string{recipientID, ownerID},
			}),
			setupMocks: func(users *mocks.UserDirectory) {
				users.On("FindUser", mock.Anything, models.ID(recipientID)).
					Return(&domain.User{ID: models.ID(recipientID), Email: "robin@example.com"}, nil)
				users.On("FindUser", mock.Anything, models.ID(ownerID)).
					Return(&domain.User{ID: models.ID(ownerID), Email: "sam@example.com"}, nil)
			},
		},
		{
			name: "unresolvable recipient fails the message for redelivery",
			event: events.NewEvent(models.ID(transactionID), events.TransferRequestNotificationEvent, map[string]string{
				"transaction_id": transactionID,
				"from":           senderID,
				"to":             recipientID,
			}),
			setupMocks: func(users *mocks.UserDirectory) {
				users.On("FindUser", mock.Anything, models.ID(recipientID)).
					Return(nil, errors.New("directory unreachable"))
			},
			expectedError: "failed to resolve user",
		},
		{
			name: "invalid user id in payload",
			event: events.NewEvent(models.ID(transactionID), events.TransferRequestNotificationEvent, map[string]string{
				"transaction_id": transactionID,
				"from":           senderID,
				"to":             "not-a-uuid",
			}),
			setupMocks:    func(users *mocks.UserDirectory) {},
			expectedError: "invalid user id",
		},
		{
			name:       "unknown event type is ignored",
			event:      events.NewEvent(models.ID(transactionID), events.WorkflowCompletedEvent, nil),
			setupMocks: func(users *mocks.UserDirectory) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mocks.UserDirectory{}
			tt.setupMocks(users)

			handlers := NewNotificationEventHandlers(users, zap.NewNop())

			err := handlers.Handle(context.Background(), tt.event)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			users.AssertExpectations(t)
		})
	}
}
