package application

import (
	"context"
	"time"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/shared/saga"
	"github.com/ecocycle/waste-tracking/shared/telemetry"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RegisterTransferRequestCommand represents the command to offer containers
// to another user
type RegisterTransferRequestCommand struct {
	RequesterID  string   `json:"requester_id"`
	RecipientID  string   `json:"recipient_id"`
	ContainerIDs []string `json:"container_ids"`
}

// RegisterTransferRequestResponse represents the response after requesting a transfer
type RegisterTransferRequestResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
}

// RegisterTransferRequest use case flips recovered containers into a pending
// transfer and grants the recipient access to them
type RegisterTransferRequest struct {
	transactions domain.TransactionRepository
	details      domain.TransactionDetailRepository
	containers   domain.ContainerRepository
	wasteTypes   domain.WasteTypeRepository
	users        domain.UserDirectory
	grants       domain.PermissionGrants
	notifier     domain.Notifier
	sequencer    domain.Sequencer
	coordinator  *saga.Coordinator
	logger       *zap.Logger
}

// NewRegisterTransferRequest creates a new RegisterTransferRequest use case
func NewRegisterTransferRequest(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
	containers domain.ContainerRepository,
	wasteTypes domain.WasteTypeRepository,
	users domain.UserDirectory,
	grants domain.PermissionGrants,
	notifier domain.Notifier,
	sequencer domain.Sequencer,
	coordinator *saga.Coordinator,
	logger *zap.Logger,
) *RegisterTransferRequest {
	return &RegisterTransferRequest{
		transactions: transactions,
		details:      details,
		containers:   containers,
		wasteTypes:   wasteTypes,
		users:        users,
		grants:       grants,
		notifier:     notifier,
		sequencer:    sequencer,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// Execute runs the transfer request workflow
func (uc *RegisterTransferRequest) Execute(ctx context.Context, cmd *RegisterTransferRequestCommand) (*RegisterTransferRequestResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "register_transfer_request",
		trace.WithAttributes(
			attribute.String("requester_id", cmd.RequesterID),
			attribute.String("recipient_id", cmd.RecipientID),
			attribute.Int("containers", len(cmd.ContainerIDs)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordWorkflowMetrics(ctx, "register_transfer_request", status, time.Since(start))
	}()

	requester, recipientID, containerIDs, err := uc.validateCommand(cmd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scope := models.UserScope(requester)

	recipient, err := uc.users.FindUser(ctx, recipientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve recipient")
	}
	if recipient == nil {
		return nil, domain.NewNotFoundError("user", recipientID.String())
	}

	containers, err := loadContainers(ctx, uc.containers, containerIDs, scope)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		if !c.CanTransfer() {
			return nil, domain.NewValidationError("container %s is not available for transfer (status %s)", c.ID, c.Status)
		}
	}

	units, err := resolveContainerUnits(ctx, uc.wasteTypes, containers)
	if err != nil {
		return nil, err
	}

	number, err := uc.sequencer.NextSequenceNumber(ctx, transactionSequence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sequence number")
	}

	tx := domain.NewTransferRequestTransaction(requester, recipient.ID, number)
	if err := uc.transactions.Save(ctx, tx, scope); err != nil {
		return nil, errors.Wrap(err, "failed to save transaction")
	}

	exec := uc.coordinator.Begin(ctx, "register_transfer_request", tx.ID)
	exec.OnRollback("destroy transaction", func(ctx context.Context) error {
		return uc.transactions.Destroy(ctx, tx, models.ElevatedScope())
	})

	if err := uc.grants.GrantReadWrite(ctx, domain.EntityTransaction, tx.ID, recipient.ID); err != nil {
		return nil, exec.Fail(ctx, errors.Wrap(err, "failed to grant transaction access"))
	}
	exec.OnRollback("revoke transaction grant", func(ctx context.Context) error {
		return uc.grants.RevokeReadWrite(ctx, domain.EntityTransaction, tx.ID, recipient.ID)
	})

	details := make([]*domain.TransactionDetail, len(containers))
	gr, grCtx := errgroup.WithContext(ctx)
	for i, container := range containers {
		i, container := i, container
		gr.Go(func() error {
			if err := uc.grants.GrantReadWrite(grCtx, domain.EntityContainer, container.ID, recipient.ID); err != nil {
				return errors.Wrapf(err, "failed to grant access to container %s", container.ID)
			}
			exec.OnRollback("revoke container grant", func(ctx context.Context) error {
				return uc.grants.RevokeReadWrite(ctx, domain.EntityContainer, container.ID, recipient.ID)
			})

			if err := container.MarkTransferPending(); err != nil {
				return err
			}
			if err := uc.containers.Save(grCtx, container, scope); err != nil {
				return errors.Wrapf(err, "failed to save container %s", container.ID)
			}
			exec.OnRollback("restore container status", func(ctx context.Context) error {
				container.RestoreStatus(domain.ContainerStatusRecovered)
				return uc.containers.Save(ctx, container, models.ElevatedScope())
			})

			detail := tx.NewDetail(container.ID, models.NewQuantity(1, units[container.ID]))
			if err := uc.details.Save(grCtx, detail, scope); err != nil {
				return errors.Wrapf(err, "failed to save detail for container %s", container.ID)
			}

			details[i] = detail
			return nil
		})
	}
	if err := gr.Wait(); err != nil {
		return nil, exec.Fail(ctx, err)
	}

	if err := uc.notifier.NotifyTransferRequest(ctx, tx.ID, requester, recipient.ID); err != nil {
		uc.logger.Warn("failed to notify transfer recipient",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}

	tx.AttachDetails(details)
	exec.Complete(ctx)

	status = "success"
	return &RegisterTransferRequestResponse{Transaction: tx}, nil
}

func (uc *RegisterTransferRequest) validateCommand(cmd *RegisterTransferRequestCommand) (models.ID, models.ID, []models.ID, error) {
	if cmd.RequesterID == "" {
		return "", "", nil, domain.NewValidationError("requester ID is required")
	}
	if cmd.RecipientID == "" {
		return "", "", nil, domain.NewValidationError("recipient ID is required")
	}
	if cmd.RequesterID == cmd.RecipientID {
		return "", "", nil, domain.NewValidationError("cannot transfer containers to yourself")
	}
	if len(cmd.ContainerIDs) == 0 {
		return "", "", nil, domain.NewValidationError("at least one container is required")
	}

	requester, err := models.NewID(cmd.RequesterID)
	if err != nil {
		return "", "", nil, domain.NewValidationError("invalid requester ID")
	}

	recipient, err := models.NewID(cmd.RecipientID)
	if err != nil {
		return "", "", nil, domain.NewValidationError("invalid recipient ID")
	}

	containerIDs, err := parseIDs(cmd.ContainerIDs)
	if err != nil {
		return "", "", nil, err
	}

	return requester, recipient, containerIDs, nil
}
