package saga

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
	"go.uber.org/zap"
)

// Status represents the current status of a workflow execution
type Status string

const (
	StatusStarted     Status = "started"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCompensated Status = "compensated"
)

// Compensation is one undo step, registered after its forward step succeeded.
// Compensations are data: each workflow builds its rollback plan as it goes,
// and the plan runs LIFO when the workflow fails.
type Compensation struct {
	Name string
	Undo func(ctx context.Context) error
}

// WorkflowError wraps any failure that happened after the ledger entry was
// created. By the time it is returned compensation has been attempted;
// compensation failures ride along and never replace the original cause.
type WorkflowError struct {
	Workflow         string
	Cause            error
	CompensationErrs []error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow %s could not complete: %v", e.Workflow, e.Cause)
}

func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

// Coordinator creates workflow executions and records their lifecycle in the
// audit event store. The store is best-effort: an unavailable audit trail
// never blocks a workflow.
type Coordinator struct {
	logger *zap.Logger
	store  events.EventStore
}

// NewCoordinator creates a new saga coordinator. The event store may be nil.
func NewCoordinator(logger *zap.Logger, store events.EventStore) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		logger: logger,
		store:  store,
	}
}

// Begin starts a workflow execution for the given aggregate
func (c *Coordinator) Begin(ctx context.Context, workflow string, aggregateID models.ID) *Execution {
	e := &Execution{
		workflow:    workflow,
		aggregateID: aggregateID,
		coordinator: c,
		status:      StatusStarted,
	}
	c.record(ctx, e, events.WorkflowStartedEvent, nil)
	return e
}

type lifecycleData struct {
	Workflow         string   `json:"workflow"`
	Cause            string   `json:"cause,omitempty"`
	CompensationErrs []string `json:"compensation_errors,omitempty"`
}

func (c *Coordinator) record(ctx context.Context, e *Execution, eventType string, data *lifecycleData) {
	if c.store == nil {
		return
	}

	if data == nil {
		data = &lifecycleData{Workflow: e.workflow}
	}

	event := events.NewEvent(e.aggregateID, eventType, data)
	if err := c.store.SaveEvents(ctx, e.aggregateID, []*events.Event{event}); err != nil {
		c.logger.Warn("failed to record workflow lifecycle event",
			zap.String("workflow", e.workflow),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// Execution tracks one in-flight workflow invocation and its rollback plan.
// OnRollback may be called from the fan-out goroutines of a single stage.
type Execution struct {
	workflow    string
	aggregateID models.ID
	coordinator *Coordinator

	mu     sync.Mutex
	plan   []Compensation
	status Status
}

// Workflow returns the workflow name
func (e *Execution) Workflow() string {
	return e.workflow
}

// OnRollback registers an undo step for a forward mutation that succeeded
func (e *Execution) OnRollback(name string, undo func(ctx context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plan = append(e.plan, Compensation{Name: name, Undo: undo})
}

// Complete marks the execution as successful and discards the rollback plan
func (e *Execution) Complete(ctx context.Context) {
	e.mu.Lock()
	e.status = StatusCompleted
	e.plan = nil
	e.mu.Unlock()

	e.coordinator.record(ctx, e, events.WorkflowCompletedEvent, nil)
}

// Fail runs the rollback plan in reverse order and returns a WorkflowError
// wrapping the original cause. Compensation is best-effort: each step runs
// even if an earlier one failed, failures are logged, and the rollback uses a
// context detached from the caller's cancellation.
func (e *Execution) Fail(ctx context.Context, cause error) error {
	e.mu.Lock()
	plan := e.plan
	e.plan = nil
	e.status = StatusFailed
	e.mu.Unlock()

	e.coordinator.logger.Error("workflow failed, compensating",
		zap.String("workflow", e.workflow),
		zap.Int("compensation_steps", len(plan)),
		zap.Error(cause),
	)

	ctx = context.WithoutCancel(ctx)

	var compErrs []error
	for i := len(plan) - 1; i >= 0; i-- {
		step := plan[i]
		if err := step.Undo(ctx); err != nil {
			compErrs = append(compErrs, fmt.Errorf("%s: %w", step.Name, err))
			e.coordinator.logger.Error("compensation step failed",
				zap.String("workflow", e.workflow),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}

	data := &lifecycleData{
		Workflow: e.workflow,
		Cause:    cause.Error(),
	}
	for _, err := range compErrs {
		data.CompensationErrs = append(data.CompensationErrs, err.Error())
	}

	e.coordinator.record(ctx, e, events.WorkflowFailedEvent, data)
	if len(plan) > 0 {
		e.mu.Lock()
		e.status = StatusCompensated
		e.mu.Unlock()
		e.coordinator.record(ctx, e, events.WorkflowCompensatedEvent, data)
	}

	return &WorkflowError{
		Workflow:         e.workflow,
		Cause:            cause,
		CompensationErrs: compErrs,
	}
}

// Status returns the current execution status
func (e *Execution) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}
