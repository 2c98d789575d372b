package orchestrator

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ashita-ai/fieldmark/internal/telemetry"
)

type engineMetrics struct {
	tasks     metric.Int64Counter
	duration  metric.Float64Histogram
	workflows metric.Int64Counter
}

// newEngineMetrics creates instruments on the global meter provider. With
// telemetry disabled these are no-ops.
func newEngineMetrics() engineMetrics {
	meter := telemetry.Meter("orchestrator")
	var fallback noop.Meter

	tasks, err := meter.Int64Counter("fieldmark.orchestrator.tasks",
		metric.WithDescription("Capability executions by outcome"))
	if err != nil {
		tasks, _ = fallback.Int64Counter("")
	}
	duration, err := meter.Float64Histogram("fieldmark.orchestrator.task.duration",
		metric.WithDescription("Capability execution latency"),
		metric.WithUnit("s"))
	if err != nil {
		duration, _ = fallback.Float64Histogram("")
	}
	workflows, err := meter.Int64Counter("fieldmark.orchestrator.workflows",
		metric.WithDescription("Completed workflows by terminal status"))
	if err != nil {
		workflows, _ = fallback.Int64Counter("")
	}
	return engineMetrics{tasks: tasks, duration: duration, workflows: workflows}
}
