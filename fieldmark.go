// Package fieldmark is the public API for embedding the fieldmark survey
// pipeline.
//
//	app, err := fieldmark.New(
//	    fieldmark.WithVersion(version),
//	    fieldmark.WithLogger(logger),
//	    fieldmark.WithCapability(myDetector{}),
//	)
//	if err != nil { ... }
//	defer app.Close(ctx)
//	report, err := app.ProcessBatch(ctx, fieldmark.SurveyRequest{Dir: "./photos", OutputPath: "survey.kmz"})
//
// The import graph is one-way: fieldmark (root) imports internal/*, never the
// reverse. Public types are aliases of the internal domain types.
package fieldmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/fieldmark/internal/agents"
	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/config"
	"github.com/ashita-ai/fieldmark/internal/mcp"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
	"github.com/ashita-ai/fieldmark/internal/service/metadata"
	"github.com/ashita-ai/fieldmark/internal/storage"
	"github.com/ashita-ai/fieldmark/internal/telemetry"
)

// ErrSurveyFailed is returned by ProcessBatch when the workflow ends FAILED.
// The report is still returned and carries the failing step's results.
var ErrSurveyFailed = errors.New("fieldmark: survey workflow failed")

// App wires the registry, engine and evidence ledger. Construct with New.
type App struct {
	cfg          config.Config
	registry     *capability.Registry
	engine       *orchestrator.Engine
	ledger       storage.Ledger
	otelShutdown func(context.Context) error
	unsubscribe  []func()
	logger       *slog.Logger
	version      string
}

// New loads configuration, opens the ledger, registers the built-in
// capabilities plus any passed via WithCapability, and returns a ready App.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// .env is optional.
	_ = godotenv.Load()

	cfg := o.config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = &loaded
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	switch {
	case logger != nil:
	case o.logOutput != nil:
		logger = newLogger(o.logOutput, *cfg)
	default:
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("fieldmark starting", "version", version, "ledger", cfg.LedgerDriver)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	ledger := o.ledger
	if ledger == nil {
		ledger, err = storage.Open(ctx, *cfg, logger)
		if err != nil {
			_ = otelShutdown(ctx)
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}

	limits := metadata.Limits{MaxFileBytes: cfg.MaxFileBytes, MinFileBytes: cfg.MinFileBytes}
	registry := capability.NewRegistry()
	if err := agents.RegisterDefaults(registry, agents.Deps{
		Processor: metadata.NewProcessor(metadata.Options{
			Limits:          limits,
			Workers:         cfg.ExtractWorkers,
			ThumbnailMaxDim: cfg.ThumbnailMaxDim,
		}, logger),
		Limits:              limits,
		Ledger:              ledger,
		ClusterRadiusMeters: cfg.ClusterRadiusMeters,
		Analyst:             cfg.Analyst,
		Logger:              logger,
	}); err != nil {
		_ = ledger.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}
	for _, c := range o.capabilities {
		if err := registry.Register(c); err != nil {
			_ = ledger.Close()
			_ = otelShutdown(ctx)
			return nil, fmt.Errorf("register capability: %w", err)
		}
	}

	engine := orchestrator.New(registry, logger,
		orchestrator.WithTaskTimeout(cfg.TaskTimeout),
		orchestrator.WithMaxParallel(cfg.MaxStepParallel),
	)

	app := &App{
		cfg:          *cfg,
		registry:     registry,
		engine:       engine,
		ledger:       ledger,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}
	for _, obs := range o.observers {
		app.unsubscribe = append(app.unsubscribe, engine.Subscribe(obs))
	}
	return app, nil
}

// Engine returns the workflow engine.
func (a *App) Engine() *orchestrator.Engine { return a.engine }

// Registry returns the capability registry.
func (a *App) Registry() *capability.Registry { return a.registry }

// Ledger returns the evidence ledger.
func (a *App) Ledger() storage.Ledger { return a.ledger }

// Config returns the resolved configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the App's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// MCPServer builds an MCP server over this App's engine and ledger.
func (a *App) MCPServer() *mcp.Server {
	return mcp.New(a.engine, a.ledger, a.logger, a.version)
}

// SurveyRequest parameterizes ProcessBatch.
type SurveyRequest struct {
	Dir           string
	Paths         []string
	GPSOverrides  map[string]Coordinates
	Inference     map[string]InferenceSummary
	ContextLayers []ContextLayer
	Analyst       string
	Title         string
	OutputPath    string
	RadiusMeters  float64
	// Thumbnails defaults to on when the configured max dimension is positive.
	Thumbnails *bool
}

// SurveyReport is what ProcessBatch extracts from the final engine state.
type SurveyReport struct {
	State        State
	Errors       []FileError
	Warnings     []string
	Bundle       *ExportBundle
	ArchivePath  string
	Evidence     []EvidenceRecord
	EvidenceRoot string
}

// ProcessBatch runs the default survey workflow and collects its outputs.
// Per-file problems are reported in the SurveyReport, not as an error.
func (a *App) ProcessBatch(ctx context.Context, req SurveyRequest) (SurveyReport, error) {
	analyst := req.Analyst
	if analyst == "" {
		analyst = a.cfg.Analyst
	}
	wf := agents.DefaultWorkflow(agents.WorkflowOptions{
		Dir:           req.Dir,
		Paths:         req.Paths,
		GPSOverrides:  req.GPSOverrides,
		Thumbnails:    req.Thumbnails,
		RadiusMeters:  req.RadiusMeters,
		Analyst:       analyst,
		Inference:     req.Inference,
		Title:         req.Title,
		OutputPath:    req.OutputPath,
		ContextLayers: req.ContextLayers,
	})

	st, err := a.engine.StartWorkflow(ctx, wf)
	if err != nil {
		return SurveyReport{}, err
	}
	report := surveyReport(st)
	if st.Status != orchestrator.StatusSuccess {
		summary := "unknown failure"
		if last, ok := st.LastResult(); ok {
			summary = last.Summary
		}
		return report, fmt.Errorf("%w: %s", ErrSurveyFailed, summary)
	}
	return report, nil
}

// Close releases the ledger and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	var errs []error
	if err := a.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ledger: %w", err))
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// surveyReport reads the default workflow's step results. Missing steps
// (a failed run) leave the corresponding fields empty.
func surveyReport(st orchestrator.State) SurveyReport {
	r := SurveyReport{State: st}
	for _, step := range st.StepResults {
		for _, res := range step {
			if v, ok := res.Data["errors"].([]model.FileError); ok {
				r.Errors = v
			}
			if v, ok := res.Data["warnings"].([]string); ok {
				r.Warnings = v
			}
			if v, ok := res.Data["bundle"].(model.ExportBundle); ok {
				r.Bundle = &v
			}
			if v, ok := res.Data["archive_path"].(string); ok {
				r.ArchivePath = v
			}
			if v, ok := res.Data["evidence"].([]model.EvidenceRecord); ok {
				r.Evidence = v
			}
			if v, ok := res.Data["evidence_root"].(string); ok {
				r.EvidenceRoot = v
			}
		}
	}
	return r
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
