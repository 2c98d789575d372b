package fieldmark

import (
	"github.com/ashita-ai/fieldmark/internal/agents"
	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
)

// Orchestration types.
type (
	Params   = capability.Params
	Result   = capability.Result
	Workflow = orchestrator.Workflow
	Step     = orchestrator.Step
	Task     = orchestrator.Task
	State    = orchestrator.State
	Status   = orchestrator.Status
)

// Workflow statuses.
const (
	StatusIdle    = orchestrator.StatusIdle
	StatusRunning = orchestrator.StatusRunning
	StatusSuccess = orchestrator.StatusSuccess
	StatusFailed  = orchestrator.StatusFailed
)

// Domain types.
type (
	Coordinates       = model.Coordinates
	ImageAsset        = model.ImageAsset
	ExtractedMetadata = model.ExtractedMetadata
	ProcessedAsset    = model.ProcessedAsset
	FileError         = model.FileError
	Placemark         = model.Placemark
	Cluster           = model.Cluster
	ContextLayer      = model.ContextLayer
	ContextFeature    = model.ContextFeature
	ExportBundle      = model.ExportBundle
	EvidenceRecord    = model.EvidenceRecord
	ProvenanceEntry   = model.ProvenanceEntry
	InferenceSummary  = model.InferenceSummary
)

// OK builds a successful Result.
func OK(summary string, data map[string]any) Result { return capability.OK(summary, data) }

// Failure builds a failed Result carrying err in Data["error"].
func Failure(summary string, err error) Result { return capability.Failure(summary, err) }

// WorkflowOptions parameterizes DefaultWorkflow.
type WorkflowOptions = agents.WorkflowOptions

// DefaultWorkflow returns the survey workflow:
// [metadata_extractor] -> [geo_clusterer, evidence_recorder] -> [geo_exporter].
func DefaultWorkflow(o WorkflowOptions) Workflow { return agents.DefaultWorkflow(o) }
