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

// RegisterTransferRejectCommand represents the command to reject a pending transfer
type RegisterTransferRejectCommand struct {
	RequesterID   string `json:"requester_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// RegisterTransferRejectResponse represents the response after rejecting a transfer
type RegisterTransferRejectResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
}

// RegisterTransferReject use case refuses a pending transfer: the request is
// consumed and containers return to their owner. Stock never moved, so no
// stock mutation happens here.
type RegisterTransferReject struct {
	transactions domain.TransactionRepository
	details      domain.TransactionDetailRepository
	containers   domain.ContainerRepository
	sequencer    domain.Sequencer
	coordinator  *saga.Coordinator
}

// NewRegisterTransferReject creates a new RegisterTransferReject use case
func NewRegisterTransferReject(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
	containers domain.ContainerRepository,
	sequencer domain.Sequencer,
	coordinator *saga.Coordinator,
) *RegisterTransferReject {
	return &RegisterTransferReject{
		transactions: transactions,
		details:      details,
		containers:   containers,
		sequencer:    sequencer,
		coordinator:  coordinator,
	}
}

// Execute runs the transfer reject workflow
func (uc *RegisterTransferReject) Execute(ctx context.Context, cmd *RegisterTransferRejectCommand) (*RegisterTransferRejectResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "register_transfer_reject",
		trace.WithAttributes(
			attribute.String("requester_id", cmd.RequesterID),
			attribute.String("transaction_id", cmd.TransactionID),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordWorkflowMetrics(ctx, "register_transfer_reject", status, time.Since(start))
	}()

	requester, requestID, err := parseResolutionCommand(cmd.RequesterID, cmd.TransactionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if cmd.Reason == "" {
		return nil, domain.NewValidationError("reason is required")
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

	tx := domain.NewTransferResolution(domain.TransactionTypeTransferReject, request, number, cmd.Reason)
	if err := uc.transactions.Save(ctx, tx, scope); err != nil {
		return nil, errors.Wrap(err, "failed to save transaction")
	}

	exec := uc.coordinator.Begin(ctx, "register_transfer_reject", tx.ID)
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

	containers, err := loadContainers(ctx, uc.containers, containerIDs, models.ElevatedScope())
	if err != nil {
		return nil, exec.Fail(ctx, err)
	}

	details := make([]*domain.TransactionDetail, len(containers))
	gr, grCtx := errgroup.WithContext(ctx)
	for i, container := range containers {
		i, container := i, container
		gr.Go(func() error {
			if err := container.MarkRecovered(); err != nil {
				return err
			}
			if err := uc.containers.Save(grCtx, container, models.ElevatedScope()); err != nil {
				return errors.Wrapf(err, "failed to save container %s", container.ID)
			}
			exec.OnRollback("restore container status", func(ctx context.Context) error {
				container.RestoreStatus(domain.ContainerStatusTransferPending)
				return uc.containers.Save(ctx, container, models.ElevatedScope())
			})

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
	return &RegisterTransferRejectResponse{Transaction: tx}, nil
}
