package handlers

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
)

// NotificationEventHandlers consumes notification events off the queue and
// delivers them to the affected users. Delivery is at-least-once; handlers
// must stay idempotent.
type NotificationEventHandlers struct {
	users  domain.UserDirectory
	logger *zap.Logger
}

// NewNotificationEventHandlers creates new notification event handlers
func NewNotificationEventHandlers(users domain.UserDirectory, logger *zap.Logger) *NotificationEventHandlers {
	return &NotificationEventHandlers{
		users:  users,
		logger: logger,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *NotificationEventHandlers) HandlerID() string {
	return "tracking-service-notification-handler"
}

// Handle implements the events.EventHandler interface
func (h *NotificationEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.TransferRequestNotificationEvent:
		return h.HandleTransferRequestNotification(ctx, event)
	case events.TransportNotificationEvent:
		return h.HandleTransportNotification(ctx, event)
	default:
		// Unknown event type, ignore
		return nil
	}
}

type transferRequestPayload struct {
	TransactionID string `json:"transaction_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// HandleTransferRequestNotification notifies the recipient of a new transfer
// request
func (h *NotificationEventHandlers) HandleTransferRequestNotification(ctx context.Context, event *events.Event) error {
	var payload transferRequestPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return errors.Wrap(err, "failed to unmarshal transfer request notification")
	}

	recipient, err := h.resolveUser(ctx, payload.To)
	if err != nil {
		return err
	}

	h.logger.Info("transfer request notification delivered",
		zap.String("transaction_id", payload.TransactionID),
		zap.String("from", payload.From),
		zap.String("recipient", recipient.Email),
	)

	return nil
}

type transportPayload struct {
	TransactionID string   `json:"transaction_id"`
	From          string   `json:"from"`
	To            []string `json:"to"`
}

// HandleTransportNotification notifies every owner whose containers left on a
// transport. One unresolvable owner fails the whole message, so the queue
// redelivers it; the duplicate deliveries that causes are acceptable.
func (h *NotificationEventHandlers) HandleTransportNotification(ctx context.Context, event *events.Event) error {
	var payload transportPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return errors.Wrap(err, "failed to unmarshal transport notification")
	}

	for _, userID := range payload.To {
		owner, err := h.resolveUser(ctx, userID)
		if err != nil {
			return err
		}

		h.logger.Info("transport notification delivered",
			zap.String("transaction_id", payload.TransactionID),
			zap.String("from", payload.From),
			zap.String("recipient", owner.Email),
		)
	}

	return nil
}

func (h *NotificationEventHandlers) resolveUser(ctx context.Context, rawID string) (*domain.User, error) {
	id, err := models.NewID(rawID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid user id %q", rawID)
	}

	user, err := h.users.FindUser(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve user %s", id)
	}
	if user == nil {
		return nil, domain.NewNotFoundError("user", id.String())
	}

	return user, nil
}
