// Package agents implements fieldmark's built-in capabilities and the
// default survey workflow that chains them:
//
//	[metadata_extractor] -> [geo_clusterer, evidence_recorder] -> [geo_exporter]
//
// Each capability decodes the generic params envelope into its own typed
// struct, so keys inherited from earlier steps are ignored unless a field
// claims them.
package agents

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
	"github.com/ashita-ai/fieldmark/internal/service/metadata"
	"github.com/ashita-ai/fieldmark/internal/storage"
)

// Registered capability names.
const (
	NameMetadataExtractor = "metadata_extractor"
	NameGeoClusterer      = "geo_clusterer"
	NameEvidenceRecorder  = "evidence_recorder"
	NameGeoExporter       = "geo_exporter"
)

// DefaultClusterRadiusMeters is used when neither params nor Deps set a radius.
const DefaultClusterRadiusMeters = 100

// Deps are the collaborators shared by the built-in capabilities.
type Deps struct {
	Processor           *metadata.Processor
	Limits              metadata.Limits
	Ledger              storage.Ledger
	ClusterRadiusMeters float64
	Analyst             string
	Logger              *slog.Logger
	// Now stamps evidence entries. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Limits == (metadata.Limits{}) {
		d.Limits = metadata.DefaultLimits()
	}
	if d.Processor == nil {
		d.Processor = metadata.NewProcessor(metadata.Options{Limits: d.Limits}, d.Logger)
	}
	if d.Ledger == nil {
		d.Ledger = storage.NewMemory()
	}
	if d.ClusterRadiusMeters <= 0 {
		d.ClusterRadiusMeters = DefaultClusterRadiusMeters
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// RegisterDefaults registers the four built-in capabilities.
func RegisterDefaults(reg *capability.Registry, deps Deps) error {
	deps = deps.withDefaults()
	for _, c := range []capability.Capability{
		&MetadataExtractor{deps: deps, logger: deps.Logger.With("component", NameMetadataExtractor)},
		&GeoClusterer{deps: deps, logger: deps.Logger.With("component", NameGeoClusterer)},
		&EvidenceRecorder{deps: deps, logger: deps.Logger.With("component", NameEvidenceRecorder)},
		&GeoExporter{deps: deps, logger: deps.Logger.With("component", NameGeoExporter)},
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("agents: %w", err)
		}
	}
	return nil
}

// WorkflowOptions parameterize DefaultWorkflow.
type WorkflowOptions struct {
	Dir           string
	Paths         []string
	GPSOverrides  map[string]model.Coordinates
	Thumbnails    *bool
	RadiusMeters  float64
	Analyst       string
	Inference     map[string]model.InferenceSummary
	Title         string
	OutputPath    string
	ContextLayers []model.ContextLayer
}

// DefaultWorkflow builds the three-step survey workflow.
func DefaultWorkflow(o WorkflowOptions) orchestrator.Workflow {
	extract := capability.Params{}
	if o.Dir != "" {
		extract["dir"] = o.Dir
	}
	if len(o.Paths) > 0 {
		extract["paths"] = o.Paths
	}
	if len(o.GPSOverrides) > 0 {
		extract["gps_overrides"] = o.GPSOverrides
	}
	if o.Thumbnails != nil {
		extract["thumbnails"] = *o.Thumbnails
	}

	cluster := capability.Params{}
	if o.RadiusMeters > 0 {
		cluster["radius_meters"] = o.RadiusMeters
	}

	record := capability.Params{}
	if o.Analyst != "" {
		record["analyst"] = o.Analyst
	}
	if len(o.Inference) > 0 {
		record["inference"] = o.Inference
	}

	exportParams := capability.Params{}
	if o.Title != "" {
		exportParams["title"] = o.Title
	}
	if o.OutputPath != "" {
		exportParams["output_path"] = o.OutputPath
	}
	if len(o.ContextLayers) > 0 {
		exportParams["context_layers"] = o.ContextLayers
	}
	if o.Analyst != "" {
		exportParams["analyst"] = o.Analyst
	}

	return orchestrator.Workflow{
		Name: "survey",
		Steps: []orchestrator.Step{
			{{Capability: NameMetadataExtractor, Params: extract}},
			{
				{Capability: NameGeoClusterer, Params: cluster},
				{Capability: NameEvidenceRecorder, Params: record},
			},
			{{Capability: NameGeoExporter, Params: exportParams}},
		},
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
