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

// RegisterTransportCommand represents the command to send containers to a
// recycling center
type RegisterTransportCommand struct {
	RequesterID       string   `json:"requester_id"`
	RecyclingCenterID string   `json:"recycling_center_id"`
	ContainerIDs      []string `json:"container_ids"`
}

// RegisterTransportResponse represents the response after starting a transport
type RegisterTransportResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
}

// RegisterTransport use case flips eligible containers into IN_TRANSIT.
// The original status of every container is captured before mutation so
// compensation restores each one precisely.
type RegisterTransport struct {
	transactions domain.TransactionRepository
	details      domain.TransactionDetailRepository
	containers   domain.ContainerRepository
	wasteTypes   domain.WasteTypeRepository
	centers      domain.RecyclingCenterDirectory
	authorizer   domain.TransportAuthorizer
	notifier     domain.Notifier
	sequencer    domain.Sequencer
	coordinator  *saga.Coordinator
	logger       *zap.Logger
}

// NewRegisterTransport creates a new RegisterTransport use case
func NewRegisterTransport(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
	containers domain.ContainerRepository,
	wasteTypes domain.WasteTypeRepository,
	centers domain.RecyclingCenterDirectory,
	authorizer domain.TransportAuthorizer,
	notifier domain.Notifier,
	sequencer domain.Sequencer,
	coordinator *saga.Coordinator,
	logger *zap.Logger,
) *RegisterTransport {
	return &RegisterTransport{
		transactions: transactions,
		details:      details,
		containers:   containers,
		wasteTypes:   wasteTypes,
		centers:      centers,
		authorizer:   authorizer,
		notifier:     notifier,
		sequencer:    sequencer,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// Execute runs the transport workflow
func (uc *RegisterTransport) Execute(ctx context.Context, cmd *RegisterTransportCommand) (*RegisterTransportResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "register_transport",
		trace.WithAttributes(
			attribute.String("requester_id", cmd.RequesterID),
			attribute.String("recycling_center_id", cmd.RecyclingCenterID),
			attribute.Int("containers", len(cmd.ContainerIDs)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordWorkflowMetrics(ctx, "register_transport", status, time.Since(start))
	}()

	requester, centerID, containerIDs, err := uc.validateCommand(cmd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scope := models.UserScope(requester)

	center, err := uc.centers.FindRecyclingCenter(ctx, centerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve recycling center")
	}
	if center == nil {
		return nil, domain.NewNotFoundError("recycling center", centerID.String())
	}

	containers, err := loadContainers(ctx, uc.containers, containerIDs, scope)
	if err != nil {
		return nil, err
	}

	// Original status per container, tracked before mutation so the rollback
	// restores RECOVERED vs TRANSFERRED precisely.
	originalStatus := make(map[models.ID]domain.ContainerStatus, len(containers))
	for _, c := range containers {
		if !c.CanTransport() {
			return nil, domain.NewValidationError("container %s is not available for transport (status %s)", c.ID, c.Status)
		}
		originalStatus[c.ID] = c.Status
	}

	for _, c := range containers {
		if err := uc.authorizer.CanTransportContainer(ctx, c, requester); err != nil {
			return nil, errors.Wrapf(err, "transport of container %s denied", c.ID)
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

	tx := domain.NewTransportTransaction(requester, center.ID, number)
	if err := uc.transactions.Save(ctx, tx, scope); err != nil {
		return nil, errors.Wrap(err, "failed to save transaction")
	}

	exec := uc.coordinator.Begin(ctx, "register_transport", tx.ID)
	exec.OnRollback("destroy transaction", func(ctx context.Context) error {
		return uc.transactions.Destroy(ctx, tx, models.ElevatedScope())
	})

	details := make([]*domain.TransactionDetail, len(containers))
	gr, grCtx := errgroup.WithContext(ctx)
	for i, container := range containers {
		i, container := i, container
		gr.Go(func() error {
			if err := container.MarkInTransit(); err != nil {
				return err
			}
			if err := uc.containers.Save(grCtx, container, scope); err != nil {
				return errors.Wrapf(err, "failed to save container %s", container.ID)
			}
			exec.OnRollback("restore container status", func(ctx context.Context) error {
				container.RestoreStatus(originalStatus[container.ID])
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

	if owners := distinctOwners(containers, requester); len(owners) > 0 {
		if err := uc.notifier.NotifyTransport(ctx, tx.ID, requester, owners); err != nil {
			uc.logger.Warn("failed to notify container owners",
				zap.String("transaction_id", tx.ID.String()),
				zap.Error(err),
			)
		}
	}

	tx.AttachDetails(details)
	exec.Complete(ctx)

	status = "success"
	return &RegisterTransportResponse{Transaction: tx}, nil
}

func (uc *RegisterTransport) validateCommand(cmd *RegisterTransportCommand) (models.ID, models.ID, []models.ID, error) {
	if cmd.RequesterID == "" {
		return "", "", nil, domain.NewValidationError("requester ID is required")
	}
	if cmd.RecyclingCenterID == "" {
		return "", "", nil, domain.NewValidationError("recycling center ID is required")
	}
	if len(cmd.ContainerIDs) == 0 {
		return "", "", nil, domain.NewValidationError("at least one container is required")
	}

	requester, err := models.NewID(cmd.RequesterID)
	if err != nil {
		return "", "", nil, domain.NewValidationError("invalid requester ID")
	}

	centerID, err := models.NewID(cmd.RecyclingCenterID)
	if err != nil {
		return "", "", nil, domain.NewValidationError("invalid recycling center ID")
	}

	containerIDs, err := parseIDs(cmd.ContainerIDs)
	if err != nil {
		return "", "", nil, err
	}

	return requester, centerID, containerIDs, nil
}

func distinctOwners(containers []*domain.Container, except models.ID) []models.ID {
	seen := map[models.ID]struct{}{except: {}}
	var owners []models.ID
	for _, c := range containers {
		if _, ok := seen[c.CreatedBy]; ok {
			continue
		}
		seen[c.CreatedBy] = struct{}{}
		owners = append(owners, c.CreatedBy)
	}
	return owners
}
