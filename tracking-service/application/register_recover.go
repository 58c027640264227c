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

// transactionSequence is the sequence entity for ledger numbering
const transactionSequence = "transactions"

// RecoverItemInput is one input line of a recover request
type RecoverItemInput struct {
	WasteTypeID string `json:"waste_type_id"`
	Qty         int64  `json:"qty"`
	Unit        string `json:"unit"`
}

// RegisterRecoverCommand represents the command to recover waste containers
type RegisterRecoverCommand struct {
	RequesterID string             `json:"requester_id"`
	Items       []RecoverItemInput `json:"items"`
}

// RegisterRecoverResponse represents the response after recovering containers
type RegisterRecoverResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	Containers  []*domain.Container `json:"containers"`
}

// RegisterRecover use case creates containers for newly recovered waste,
// records the ledger entry and increments the requester's stock
type RegisterRecover struct {
	transactions  domain.TransactionRepository
	details       domain.TransactionDetailRepository
	containers    domain.ContainerRepository
	wasteTypes    domain.WasteTypeRepository
	stock         domain.StockLedger
	sequencer     domain.Sequencer
	coordinator   *saga.Coordinator
	maxQtyPerItem int64
}

// NewRegisterRecover creates a new RegisterRecover use case
func NewRegisterRecover(
	transactions domain.TransactionRepository,
	details domain.TransactionDetailRepository,
	containers domain.ContainerRepository,
	wasteTypes domain.WasteTypeRepository,
	stock domain.StockLedger,
	sequencer domain.Sequencer,
	coordinator *saga.Coordinator,
	maxQtyPerItem int64,
) *RegisterRecover {
	return &RegisterRecover{
		transactions:  transactions,
		details:       details,
		containers:    containers,
		wasteTypes:    wasteTypes,
		stock:         stock,
		sequencer:     sequencer,
		coordinator:   coordinator,
		maxQtyPerItem: maxQtyPerItem,
	}
}

// Execute runs the recover workflow
func (uc *RegisterRecover) Execute(ctx context.Context, cmd *RegisterRecoverCommand) (*RegisterRecoverResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "register_recover",
		trace.WithAttributes(
			attribute.String("requester_id", cmd.RequesterID),
			attribute.Int("items", len(cmd.Items)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordWorkflowMetrics(ctx, "register_recover", status, time.Since(start))
	}()

	requester, items, err := uc.validateCommand(cmd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scope := models.UserScope(requester)

	wasteTypes, err := uc.resolveWasteTypes(ctx, items)
	if err != nil {
		return nil, err
	}

	stockBefore, err := uc.stock.GetUserStock(ctx, requester)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch stock snapshot")
	}

	number, err := uc.sequencer.NextSequenceNumber(ctx, transactionSequence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sequence number")
	}

	tx := domain.NewRecoverTransaction(requester, number)
	if err := uc.transactions.Save(ctx, tx, scope); err != nil {
		return nil, errors.Wrap(err, "failed to save transaction")
	}

	exec := uc.coordinator.Begin(ctx, "register_recover", tx.ID)
	exec.OnRollback("destroy transaction", func(ctx context.Context) error {
		return uc.transactions.Destroy(ctx, tx, models.ElevatedScope())
	})

	// Created containers and their details are deliberately not part of the
	// rollback plan: without the parent transaction they are unreachable slack.
	containers := make([]*domain.Container, len(items))
	details := make([]*domain.TransactionDetail, len(items))

	gr, grCtx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		gr.Go(func() error {
			container := domain.NewContainer(item.WasteTypeID, requester, tx.Number)
			if err := uc.containers.Save(grCtx, container, scope); err != nil {
				return errors.Wrapf(err, "failed to save container for waste type %s", item.WasteTypeID)
			}

			unit := item.Unit
			if unit == "" {
				unit = wasteTypes[item.WasteTypeID].Unit
			}

			detail := tx.NewDetail(container.ID, models.NewQuantity(item.Qty, unit))
			if err := uc.details.Save(grCtx, detail, scope); err != nil {
				return errors.Wrapf(err, "failed to save detail for container %s", container.ID)
			}

			containers[i] = container
			details[i] = detail
			return nil
		})
	}
	if err := gr.Wait(); err != nil {
		return nil, exec.Fail(ctx, err)
	}

	exec.OnRollback("restore stock snapshot", func(ctx context.Context) error {
		return uc.stock.RestoreUserStock(ctx, requester, stockBefore)
	})
	for _, item := range items {
		if err := uc.stock.IncrementStock(ctx, item.WasteTypeID, requester, item.Qty); err != nil {
			return nil, exec.Fail(ctx, errors.Wrapf(err, "failed to increment stock for waste type %s", item.WasteTypeID))
		}
	}

	tx.AttachDetails(details)
	exec.Complete(ctx)

	status = "success"
	return &RegisterRecoverResponse{
		Transaction: tx,
		Containers:  containers,
	}, nil
}

func (uc *RegisterRecover) validateCommand(cmd *RegisterRecoverCommand) (models.ID, []domain.RecoverItem, error) {
	if cmd.RequesterID == "" {
		return "", nil, domain.NewValidationError("requester ID is required")
	}

	requester, err := models.NewID(cmd.RequesterID)
	if err != nil {
		return "", nil, domain.NewValidationError("invalid requester ID")
	}

	items := make([]domain.RecoverItem, len(cmd.Items))
	for i, item := range cmd.Items {
		wasteTypeID, err := models.NewID(item.WasteTypeID)
		if err != nil {
			return "", nil, domain.NewValidationError("invalid waste type ID %q", item.WasteTypeID)
		}
		items[i] = domain.RecoverItem{
			WasteTypeID: wasteTypeID,
			Qty:         item.Qty,
			Unit:        item.Unit,
		}
	}

	if err := domain.ValidateRecoverItems(items, uc.maxQtyPerItem); err != nil {
		return "", nil, err
	}

	return requester, items, nil
}

func (uc *RegisterRecover) resolveWasteTypes(ctx context.Context, items []domain.RecoverItem) (map[models.ID]*domain.WasteType, error) {
	ids := make([]models.ID, len(items))
	for i, item := range items {
		ids[i] = item.WasteTypeID
	}

	found, err := uc.wasteTypes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve waste types")
	}

	byID := make(map[models.ID]*domain.WasteType, len(found))
	for _, wt := range found {
		byID[wt.ID] = wt
	}

	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, domain.NewNotFoundError("waste type", id.String())
		}
	}

	return byID, nil
}
