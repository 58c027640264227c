package infrastructure

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
)

// TransferRequestNotification is the payload delivered to the recipient of a
// transfer request
type TransferRequestNotification struct {
	TransactionID string `json:"transaction_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// TransportNotification is the payload delivered to every distinct owner of
// the containers on a transport
type TransportNotification struct {
	TransactionID string   `json:"transaction_id"`
	From          string   `json:"from"`
	To            []string `json:"to"`
}

// EventNotifier implements Notifier by publishing notification events. The
// delivery worker consumes them off the queue and fans out to channels.
type EventNotifier struct {
	publisher events.Publisher
}

// NewEventNotifier creates a new EventNotifier
func NewEventNotifier(publisher events.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

// NotifyTransferRequest publishes a transfer request notification
func (n *EventNotifier) NotifyTransferRequest(ctx context.Context, transactionID, from, to models.ID) error {
	event := events.NewEvent(transactionID, events.TransferRequestNotificationEvent, TransferRequestNotification{
		TransactionID: transactionID.String(),
		From:          from.String(),
		To:            to.String(),
	})

	if err := n.publisher.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish transfer request notification")
	}

	return nil
}

// NotifyTransport publishes a transport notification addressed to every owner
func (n *EventNotifier) NotifyTransport(ctx context.Context, transactionID, from models.ID, to []models.ID) error {
	recipients := make([]string, len(to))
	for i, id := range to {
		recipients[i] = id.String()
	}

	event := events.NewEvent(transactionID, events.TransportNotificationEvent, TransportNotification{
		TransactionID: transactionID.String(),
		From:          from.String(),
		To:            recipients,
	})

	if err := n.publisher.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish transport notification")
	}

	return nil
}
