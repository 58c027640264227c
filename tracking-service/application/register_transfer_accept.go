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
	"golang.org/x/sync/errgroup"
)

// RegisterTransferAcceptCommand represents the command to accept a pending transfer
type RegisterTransferAcceptCommand struct {
	RequesterID   string `json:"requester_id"`
	TransactionID string `json:"transaction_id"`
}

// RegisterTransferAcceptResponse represents the response after accepting a transfer
type RegisterTransferAcceptResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
}

// RegisterTransferAccept use case completes a pending transfer: the request
// is consumed, containers become TRANSFERRED and stock moves to the recipient
type RegisterTransferAccept struct {
	transactions domain.TransactionRepository
	details      domain.TransactionDetailRepository
	containers   domain.ContainerRepository
	stock        domain.StockLedger
	sequencer    domain.Sequencer
	coordinator  *saga.Coordinator
}

// NewRegisterTransferAccept creates a new RegisterTransferAccept use case
func NewRegisterTransferAccept(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
	containers domain.ContainerRepository,
	stock domain.StockLedger,
	sequencer domain.Sequencer,
	coordinator *saga.Coordinator,
) *RegisterTransferAccept {
	return &RegisterTransferAccept{
		transactions: transactions,
		details:      details,
		containers:   containers,
		stock:        stock,
		sequencer:    sequencer,
		coordinator:  coordinator,
	}
}

// Execute runs the transfer accept workflow
func (uc *RegisterTransferAccept) Execute(ctx context.Context, cmd *RegisterTransferAcceptCommand) (*RegisterTransferAcceptResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "register_transfer_accept",
		trace.WithAttributes(
			attribute.String("requester_id", cmd.RequesterID),
			attribute.String("transaction_id", cmd.TransactionID),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordWorkflowMetrics(ctx, "register_transfer_accept", status, time.Since(start))
	}()

	requester, requestID, err := parseResolutionCommand(cmd.RequesterID, cmd.TransactionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scope := models.UserScope(requester)

	request, err := uc.transactions.Get(ctx, requestID, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transfer request")
	}
	if request == nil {
		return nil, domain.NewNotFoundError("transaction", requestID.String())
	}

	if err := domain.ValidateTransferAcceptReject(request, requester); err != nil {
		return nil, err
	}

	number, err := uc.sequencer.NextSequenceNumber(ctx, transactionSequence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sequence number")
	}

	tx := domain.NewTransferResolution(domain.TransactionTypeTransferAccept, request, number, "")
	if err := uc.transactions.Save(ctx, tx, scope); err != nil {
		return nil, errors.Wrap(err, "failed to save transaction")
	}

	exec := uc.coordinator.Begin(ctx, "register_transfer_accept", tx.ID)
	exec.OnRollback("destroy transaction", func(ctx context.Context) error {
		return uc.transactions.Destroy(ctx, tx, models.ElevatedScope())
	})

	request.Expire(time.Now())
	if err := uc.transactions.Save(ctx, request, scope); err != nil {
		return nil, exec.Fail(ctx, errors.Wrap(err, "failed to expire transfer request"))
	}
	exec.OnRollback("clear request expiry", func(ctx context.Context) error {
		request.ClearExpiry()
		return uc.transactions.Save(ctx, request, models.ElevatedScope())
	})

	requestDetails, err := uc.details.FindByTransactionID(ctx, request.ID, models.ElevatedScope())
	if err != nil {
		return nil, exec.Fail(ctx, errors.Wrap(err, "failed to load request details"))
	}

	qtyByContainer := make(map[models.ID]models.Quantity, len(requestDetails))
	containerIDs := make([]models.ID, len(requestDetails))
	for i, d := range requestDetails {
		qtyByContainer[d.ContainerID] = models.NewQuantity(d.Qty, d.Unit)
		containerIDs[i] = d.ContainerID
	}

	// Containers still belong to the sender, so they are read and written
	// under the elevated scope.
	containers, err := loadContainers(ctx, uc.containers, containerIDs, models.ElevatedScope())
	if err != nil {
		return nil, exec.Fail(ctx, err)
	}

	details := make([]*domain.TransactionDetail, len(containers))
	gr, grCtx := errgroup.WithContext(ctx)
	for i, container := range containers {
		i, container := i, container
		gr.Go(func() error {
			if err := container.MarkTransferred(); err != nil {
				return err
			}
			if err := uc.containers.Save(grCtx, container, models.ElevatedScope()); err != nil {
				return errors.Wrapf(err, "failed to save container %s", container.ID)
			}
			exec.OnRollback("restore container status", func(ctx context.Context) error {
				container.RestoreStatus(domain.ContainerStatusTransferPending)
				return uc.containers.Save(ctx, container, models.ElevatedScope())
			})

			if err := uc.stock.MoveStock(grCtx, container.WasteTypeID, *request.From, request.To, 1); err != nil {
				return errors.Wrapf(err, "failed to move stock for container %s", container.ID)
			}

			detail := tx.NewDetail(container.ID, qtyByContainer[container.ID])
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

	tx.AttachDetails(details)
	exec.Complete(ctx)

	status = "success"
	return &RegisterTransferAcceptResponse{Transaction: tx}, nil
}

func parseResolutionCommand(requesterID, transactionID string) (models.ID, models.ID, error) {
	if requesterID == "" {
		return "", "", domain.NewValidationError("requester ID is required")
	}
	if transactionID == "" {
		return "", "", domain.NewValidationError("transaction ID is required")
	}

	requester, err := models.NewID(requesterID)
	if err != nil {
		return "", "", domain.NewValidationError("invalid requester ID")
	}

	txID, err := models.NewID(transactionID)
	if err != nil {
		return "", "", domain.NewValidationError("invalid transaction ID")
	}

	return requester, txID, nil
}
