package application

import (
	"context"
	"time"

	"github.com/ecocycle/waste-tracking/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

func recordWorkflowMetrics(ctx context.Context, workflow, status string, duration time.Duration) {
	telemetry.RecordCounter(ctx, "tracking_workflows_total", "Total workflow invocations", 1,
		attribute.String("workflow", workflow),
		attribute.String("status", status),
	)
	telemetry.RecordHistogram(ctx, "tracking_workflow_duration_seconds", "Workflow duration", duration.Seconds(),
		attribute.String("workflow", workflow),
		attribute.String("status", status),
	)
}
