// Package capability defines the contract between the orchestrator and the
// named units of work it sequences ("agents"), plus the registry that maps
// names to implementations.
//
// Params and Result.Data are the only untyped surfaces in fieldmark: the
// orchestrator needs a uniform envelope to thread outputs of heterogeneous
// capabilities into the next step. Each capability converts the envelope to
// its own typed params struct at the boundary via Decode.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// Params is the generic envelope passed to Execute.
type Params map[string]any

// Capability is a named, stateless unit of work.
// Implementations must be safe for concurrent use and should honor ctx
// cancellation where they block.
type Capability interface {
	Name() string
	Purpose() string
	Execute(ctx context.Context, params Params) Result
}

// Result is the outcome of one Execute call. Data carries outputs threaded
// into the next workflow step.
type Result struct {
	Success bool           `json:"success"`
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK builds a successful Result.
func OK(summary string, data map[string]any) Result {
	return Result{Success: true, Summary: summary, Data: data}
}

// Failure builds a failed Result carrying err in Data["error"].
func Failure(summary string, err error) Result {
	data := map[string]any{}
	if err != nil {
		data["error"] = err.Error()
	}
	return Result{Success: false, Summary: summary, Data: data}
}

// Merge shallow-merges src into dst in place. Keys in src overwrite keys
// already in dst.
func Merge(dst, src map[string]any) {
	maps.Copy(dst, src)
}

// Validator is implemented by typed params structs that check their own
// invariants after decoding.
type Validator interface {
	Validate() error
}

// Decode converts a Params envelope into dst (a pointer to a struct with JSON
// tags). Keys without a matching field are ignored, so params inherited from
// earlier steps never cause a decode failure. If dst implements Validator,
// Validate is called after decoding.
func Decode(params Params, dst any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("capability: encode params: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("capability: decode params: %w", err)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("capability: invalid params: %w", err)
		}
	}
	return nil
}

// Func adapts a plain function into a Capability.
type Func struct {
	CapName    string
	CapPurpose string
	Fn         func(ctx context.Context, params Params) Result
}

func (f Func) Name() string    { return f.CapName }
func (f Func) Purpose() string { return f.CapPurpose }

func (f Func) Execute(ctx context.Context, params Params) Result {
	return f.Fn(ctx, params)
}
