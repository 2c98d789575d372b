// Package ctxutil provides shared context key accessors.
//
// The orchestrator stamps each task's context with the workflow run ID and
// step index; capabilities read them back for log correlation without
// importing the orchestrator package.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	keyRunID     contextKey = "run_id"
	keyStepIndex contextKey = "step_index"
)

// WithRunID returns a new context carrying the workflow run ID.
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunIDFromContext extracts the workflow run ID, or uuid.Nil for ad-hoc
// single-capability invocations.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyRunID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithStepIndex returns a new context carrying the step index.
func WithStepIndex(ctx context.Context, step int) context.Context {
	return context.WithValue(ctx, keyStepIndex, step)
}

// StepIndexFromContext extracts the step index, or -1 when absent.
func StepIndexFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(keyStepIndex).(int); ok {
		return v
	}
	return -1
}
