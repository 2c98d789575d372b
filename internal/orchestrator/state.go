package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/capability"
)

// Status is the engine's workflow lifecycle state.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether s accepts a new workflow.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// State is a snapshot of the engine. The engine is its only writer;
// subscribers and State() callers receive deep copies they may keep.
type State struct {
	RunID       uuid.UUID             `json:"run_id"`
	Status      Status                `json:"status"`
	Workflow    Workflow              `json:"workflow"`
	CurrentStep int                   `json:"current_step"`
	Active      []string              `json:"active_capabilities"`
	StepResults [][]capability.Result `json:"step_results"`
	StartedAt   time.Time             `json:"started_at,omitzero"`
	FinishedAt  time.Time             `json:"finished_at,omitzero"`
}

func (s State) clone() State {
	out := s
	out.Workflow = s.Workflow.clone()
	out.Active = append([]string(nil), s.Active...)
	out.StepResults = make([][]capability.Result, len(s.StepResults))
	for i, step := range s.StepResults {
		rs := make([]capability.Result, len(step))
		for j, r := range step {
			r.Data = cloneData(r.Data)
			rs[j] = r
		}
		out.StepResults[i] = rs
	}
	return out
}

// LastResult returns the final result of the last recorded step, which for
// a failed workflow is the synthetic failure summary.
func (s State) LastResult() (capability.Result, bool) {
	if len(s.StepResults) == 0 {
		return capability.Result{}, false
	}
	last := s.StepResults[len(s.StepResults)-1]
	if len(last) == 0 {
		return capability.Result{}, false
	}
	return last[len(last)-1], true
}
