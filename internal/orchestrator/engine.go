// Package orchestrator sequences registered capabilities through workflows.
//
// A workflow is an ordered list of steps; each step is a set of tasks that
// run concurrently. Steps never overlap: step i+1 starts only after every
// task in step i has returned. The merged output data of step i becomes the
// inherited params of every task in step i+1. Any failed task fails the
// whole workflow; siblings are still allowed to finish so the step's full
// diagnostic output is recorded.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/ctxutil"
	"github.com/ashita-ai/fieldmark/internal/telemetry"
)

// ErrWorkflowRunning is returned by StartWorkflow while another workflow
// is executing. At most one workflow runs per engine.
var ErrWorkflowRunning = errors.New("orchestrator: a workflow is already running")

// Option configures an Engine.
type Option func(*Engine)

// WithTaskTimeout bounds each task's Execute call. Zero (the default)
// means no deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Engine) { e.taskTimeout = d }
}

// WithMaxParallel caps how many tasks of one step run at once.
// Zero (the default) runs every task of a step concurrently.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// Engine executes workflows and ad-hoc capability calls against a registry.
// Construct one per independent batch; engines share nothing.
type Engine struct {
	registry    *capability.Registry
	logger      *slog.Logger
	taskTimeout time.Duration
	maxParallel int

	tracer  trace.Tracer
	metrics engineMetrics

	mu          sync.Mutex // guards state, stepActive, adhocActive
	state       State
	stepActive  []string
	adhocActive []string

	notifyMu sync.Mutex // serializes subscriber delivery

	subMu       sync.RWMutex
	subscribers map[uint64]Subscriber
	nextSubID   uint64
}

// New creates an idle engine bound to registry.
func New(registry *capability.Registry, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		registry:    registry,
		logger:      logger.With("component", "orchestrator"),
		state:       State{Status: StatusIdle},
		subscribers: make(map[uint64]Subscriber),
		tracer:      telemetry.Tracer("orchestrator"),
		metrics:     newEngineMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine resolves capabilities from.
func (e *Engine) Registry() *capability.Registry {
	return e.registry
}

// State returns a snapshot of the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// StartWorkflow runs wf to completion and returns the terminal state
// (SUCCESS or FAILED). A workflow failure is reported through the state,
// not the error; the error is non-nil only when the workflow was rejected
// (invalid, or another workflow is running), in which case the engine
// state is left unchanged.
//
// StartWorkflow blocks. Callers that want to observe progress run it in a
// goroutine and Subscribe.
func (e *Engine) StartWorkflow(ctx context.Context, wf Workflow) (State, error) {
	if err := wf.Validate(); err != nil {
		return e.State(), err
	}

	e.mu.Lock()
	if !e.state.Status.Terminal() {
		runID := e.state.RunID
		e.mu.Unlock()
		e.logger.Warn("workflow rejected: engine busy", "running_run_id", runID, "workflow", wf.Name)
		return e.State(), ErrWorkflowRunning
	}
	// Claim the engine before releasing the lock so a concurrent caller
	// cannot slip in between the check and the first notification.
	e.state.Status = StatusRunning
	e.mu.Unlock()

	runID := uuid.New()
	wf = wf.clone()
	e.update(func(s *State) {
		*s = State{
			RunID:       runID,
			Status:      StatusRunning,
			Workflow:    wf,
			StepResults: make([][]capability.Result, 0, len(wf.Steps)),
			StartedAt:   time.Now().UTC(),
		}
	})

	ctx = ctxutil.WithRunID(ctx, runID)
	ctx, span := e.tracer.Start(ctx, "workflow", trace.WithAttributes(
		attribute.String("fieldmark.run_id", runID.String()),
		attribute.String("fieldmark.workflow", wf.Name),
		attribute.Int("fieldmark.steps", len(wf.Steps)),
	))
	defer span.End()

	e.logger.Info("workflow started", "run_id", runID, "workflow", wf.Name, "steps", len(wf.Steps))

	var inherited map[string]any
	for i, step := range wf.Steps {
		names := taskNames(step)
		e.update(func(s *State) {
			s.CurrentStep = i
			e.stepActive = names
		})

		results := e.runStep(ctx, i, step, inherited)

		if failed := failedTasks(step, results); len(failed) > 0 {
			cause := failureSummary(i, failed)
			results = append(results, capability.Result{
				Success: false,
				Summary: cause,
				Data: map[string]any{
					"error":               cause,
					"step":                i,
					"failed_capabilities": failedNames(failed),
				},
			})
			final := e.update(func(s *State) {
				s.StepResults = append(s.StepResults, results)
				s.Status = StatusFailed
				s.FinishedAt = time.Now().UTC()
				e.stepActive = nil
			})
			span.SetStatus(codes.Error, cause)
			e.metrics.workflows.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusFailed))))
			e.logger.Error("workflow failed", "run_id", runID, "step", i, "cause", cause)
			return final, nil
		}

		e.update(func(s *State) {
			s.StepResults = append(s.StepResults, results)
			s.CurrentStep = i + 1
			e.stepActive = nil
		})
		inherited = mergeStepData(results)
	}

	final := e.update(func(s *State) {
		s.Status = StatusSuccess
		s.FinishedAt = time.Now().UTC()
	})
	e.metrics.workflows.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusSuccess))))
	e.logger.Info("workflow succeeded", "run_id", runID, "duration", final.FinishedAt.Sub(final.StartedAt))
	return final, nil
}

// RunSingleAgent executes one capability outside the workflow state
// machine and returns its result directly. The capability name appears in
// the state's active list for the duration of the call.
func (e *Engine) RunSingleAgent(ctx context.Context, name string, params capability.Params) capability.Result {
	c, err := e.registry.Lookup(name)
	if err != nil {
		return capability.Failure(fmt.Sprintf("capability %q is not registered", name), err)
	}

	e.update(func(*State) { e.adhocActive = append(e.adhocActive, name) })
	defer e.update(func(*State) {
		if i := slices.Index(e.adhocActive, name); i >= 0 {
			e.adhocActive = slices.Delete(e.adhocActive, i, i+1)
		}
	})

	return e.execute(ctx, c, params)
}

// runStep fans out every task of the step and joins on all of them.
// Results are stored by task index so step order is preserved.
func (e *Engine) runStep(ctx context.Context, index int, step Step, inherited map[string]any) []capability.Result {
	ctx = ctxutil.WithStepIndex(ctx, index)
	ctx, span := e.tracer.Start(ctx, "step", trace.WithAttributes(attribute.Int("fieldmark.step", index)))
	defer span.End()

	results := make([]capability.Result, len(step))
	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for j, task := range step {
		g.Go(func() error {
			results[j] = e.runTask(ctx, task, inherited)
			return nil // failures live in the Result; siblings keep running
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) runTask(ctx context.Context, task Task, inherited map[string]any) capability.Result {
	params := make(capability.Params, len(inherited)+len(task.Params))
	capability.Merge(params, inherited)
	capability.Merge(params, task.Params)

	c, err := e.registry.Lookup(task.Capability)
	if err != nil {
		return capability.Failure(fmt.Sprintf("capability %q is not registered", task.Capability), err)
	}
	return e.execute(ctx, c, params)
}

// execute calls c.Execute under the configured deadline, converting
// panics and deadline expiry into failed results. A capability that ignores
// ctx keeps running in its goroutine after a timeout; its late result is
// discarded.
func (e *Engine) execute(ctx context.Context, c capability.Capability, params capability.Params) capability.Result {
	name := c.Name()
	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "task", trace.WithAttributes(attribute.String("fieldmark.capability", name)))
	defer span.End()

	start := time.Now()
	done := make(chan capability.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- capability.Failure(fmt.Sprintf("%s panicked", name), fmt.Errorf("panic: %v", r))
			}
		}()
		done <- c.Execute(ctx, params)
	}()

	var res capability.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		err := ctx.Err()
		summary := fmt.Sprintf("%s cancelled", name)
		if errors.Is(err, context.DeadlineExceeded) {
			summary = fmt.Sprintf("%s timed out after %s", name, e.taskTimeout)
		}
		res = capability.Failure(summary, err)
	}

	elapsed := time.Since(start)
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, res.Summary)
	}
	attrs := metric.WithAttributes(attribute.String("capability", name), attribute.String("outcome", outcome))
	e.metrics.tasks.Add(ctx, 1, attrs)
	e.metrics.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("capability", name)))

	e.logger.Debug("task finished",
		"run_id", ctxutil.RunIDFromContext(ctx),
		"step", ctxutil.StepIndexFromContext(ctx),
		"capability", name,
		"success", res.Success,
		"duration", elapsed,
	)
	return res
}

// mergeStepData shallow-merges every task's Data in task order; a later
// task's key overwrites an earlier task's key.
func mergeStepData(results []capability.Result) map[string]any {
	out := make(map[string]any)
	for _, r := range results {
		capability.Merge(out, r.Data)
	}
	return out
}

type failedTask struct {
	name   string
	result capability.Result
}

func failedTasks(step Step, results []capability.Result) []failedTask {
	var failed []failedTask
	for i, r := range results {
		if !r.Success {
			failed = append(failed, failedTask{name: step[i].Capability, result: r})
		}
	}
	return failed
}

func failedNames(failed []failedTask) []string {
	names := make([]string, len(failed))
	for i, f := range failed {
		names[i] = f.name
	}
	return names
}

func failureSummary(step int, failed []failedTask) string {
	parts := make([]string, len(failed))
	for i, f := range failed {
		parts[i] = f.name + ": " + f.result.Summary
	}
	return fmt.Sprintf("step %d failed: %s", step, strings.Join(parts, "; "))
}

func taskNames(step Step) []string {
	names := make([]string, len(step))
	for i, t := range step {
		names[i] = t.Capability
	}
	return names
}
