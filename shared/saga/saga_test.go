package saga

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
)

type eventStoreMock struct {
	mock.Mock
}

func (m *eventStoreMock) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event) error {
	args := m.Called(ctx, aggregateID, evts)
	return args.Error(0)
}

func (m *eventStoreMock) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	args := m.Called(ctx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.Event), args.Error(1)
}

func (m *eventStoreMock) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	args := m.Called(ctx, eventType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.Event), args.Error(1)
}

func TestExecution_CompleteDiscardsPlan(t *testing.T) {
	coordinator := NewCoordinator(nil, nil)
	exec := coordinator.Begin(context.Background(), "test_workflow", models.GenerateUUID())
	assert.Equal(t, StatusStarted, exec.Status())

	ran := false
	exec.OnRollback("never runs", func(ctx context.Context) error {
		ran = true
		return nil
	})

	exec.Complete(context.Background())

	assert.Equal(t, StatusCompleted, exec.Status())
	assert.False(t, ran)
}

func TestExecution_FailRunsPlanInReverse(t *testing.T) {
	coordinator := NewCoordinator(nil, nil)
	exec := coordinator.Begin(context.Background(), "test_workflow", models.GenerateUUID())

	var order []string
	exec.OnRollback("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	exec.OnRollback("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	exec.OnRollback("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	cause := errors.New("forward step blew up")
	err := exec.Fail(context.Background(), cause)

	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Equal(t, StatusCompensated, exec.Status())

	var workflowErr *WorkflowError
	assert.ErrorAs(t, err, &workflowErr)
	assert.Equal(t, "test_workflow", workflowErr.Workflow)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "workflow test_workflow could not complete")
	assert.Empty(t, workflowErr.CompensationErrs)
}

func TestExecution_FailIsBestEffort(t *testing.T) {
	coordinator := NewCoordinator(nil, nil)
	exec := coordinator.Begin(context.Background(), "test_workflow", models.GenerateUUID())

	firstRan := false
	exec.OnRollback("first", func(ctx context.Context) error {
		firstRan = true
		return nil
	})
	exec.OnRollback("second", func(ctx context.Context) error {
		return errors.New("undo blew up too")
	})

	cause := errors.New("forward step blew up")
	err := exec.Fail(context.Background(), cause)

	// a failing step never stops the ones below it
	assert.True(t, firstRan)

	var workflowErr *WorkflowError
	assert.ErrorAs(t, err, &workflowErr)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, workflowErr.CompensationErrs, 1)
	assert.Contains(t, workflowErr.CompensationErrs[0].Error(), "second")
}

func TestExecution_FailWithEmptyPlan(t *testing.T) {
	coordinator := NewCoordinator(nil, nil)
	exec := coordinator.Begin(context.Background(), "test_workflow", models.GenerateUUID())

	err := exec.Fail(context.Background(), errors.New("validation stage after begin"))

	assert.Error(t, err)
	// nothing was undone, so the execution failed but was never compensated
	assert.Equal(t, StatusFailed, exec.Status())
}

func TestExecution_FailRunsUnderDetachedContext(t *testing.T) {
	coordinator := NewCoordinator(nil, nil)
	exec := coordinator.Begin(context.Background(), "test_workflow", models.GenerateUUID())

	var undoCtxErr error
	exec.OnRollback("observe context", func(ctx context.Context) error {
		undoCtxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Fail(ctx, errors.New("caller gave up"))

	assert.Error(t, err)
	assert.NoError(t, undoCtxErr)
}

func TestCoordinator_RecordsLifecycle(t *testing.T) {
	aggregateID := models.GenerateUUID()

	t.Run("completed workflow", func(t *testing.T) {
		store := &eventStoreMock{}
		store.On("SaveEvents", mock.Anything, aggregateID, mock.Anything).Return(nil)

		coordinator := NewCoordinator(nil, store)
		exec := coordinator.Begin(context.Background(), "test_workflow", aggregateID)
		exec.Complete(context.Background())

		store.AssertNumberOfCalls(t, "SaveEvents", 2)
	})

	t.Run("compensated workflow emits failed and compensated", func(t *testing.T) {
		store := &eventStoreMock{}
		store.On("SaveEvents", mock.Anything, aggregateID, mock.Anything).Return(nil)

		coordinator := NewCoordinator(nil, store)
		exec := coordinator.Begin(context.Background(), "test_workflow", aggregateID)
		exec.OnRollback("noop", func(ctx context.Context) error { return nil })
		_ = exec.Fail(context.Background(), errors.New("boom"))

		// started, failed, compensated
		store.AssertNumberOfCalls(t, "SaveEvents", 3)
	})

	t.Run("store failure never blocks the workflow", func(t *testing.T) {
		store := &eventStoreMock{}
		store.On("SaveEvents", mock.Anything, aggregateID, mock.Anything).
			Return(errors.New("audit store down"))

		coordinator := NewCoordinator(nil, store)
		exec := coordinator.Begin(context.Background(), "test_workflow", aggregateID)
		exec.Complete(context.Background())

		assert.Equal(t, StatusCompleted, exec.Status())
	})
}
