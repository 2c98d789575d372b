package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/ctxutil"
	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/export"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// ExportParams are the geo_exporter inputs.
type ExportParams struct {
	Placemarks    []model.Placemark      `json:"placemarks"`
	Clusters      []model.Cluster        `json:"clusters"`
	ContextLayers []model.ContextLayer   `json:"context_layers"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	OutputPath    string                 `json:"output_path"`
	Evidence      []model.EvidenceRecord `json:"evidence"`
	Analyst       string                 `json:"analyst"`
}

// GeoExporter renders the export bundle and, given an output path, packages
// it as a KMZ. Evidence records of exported assets get an "exported" entry
// once the archive is in place.
type GeoExporter struct {
	deps   Deps
	logger *slog.Logger
}

func (*GeoExporter) Name() string { return NameGeoExporter }

func (*GeoExporter) Purpose() string {
	return "Render KML, CSV and GeoJSON exports and package them as a KMZ"
}

func (g *GeoExporter) Execute(ctx context.Context, params capability.Params) capability.Result {
	var p ExportParams
	if err := capability.Decode(params, &p); err != nil {
		return capability.Failure("invalid geo_exporter params", err)
	}
	placemarks := p.Placemarks
	if placemarks == nil {
		placemarks = []model.Placemark{}
	}

	bundle, err := export.Build(placemarks, p.Clusters, export.Options{
		Title:         p.Title,
		Description:   p.Description,
		ContextLayers: p.ContextLayers,
	})
	if err != nil {
		return capability.Failure("export rendering failed", err)
	}

	data := map[string]any{"bundle": bundle}
	if p.OutputPath == "" {
		return capability.OK(fmt.Sprintf("rendered %s", plural(len(placemarks), "placemark")), data)
	}

	manifest := export.Manifest{Title: p.Title, EvidenceRoot: evidence.Root(p.Evidence)}
	if err := export.WriteKMZ(p.OutputPath, bundle, placemarks, manifest); err != nil {
		return capability.Failure("export packaging failed", err)
	}
	data["archive_path"] = p.OutputPath

	if len(p.Evidence) > 0 {
		updated, err := g.markExported(ctx, p, placemarks)
		if err != nil {
			return capability.Failure("archive written but evidence update failed", err)
		}
		data["evidence"] = updated
	}

	g.logger.Info("export packaged",
		"run_id", ctxutil.RunIDFromContext(ctx),
		"path", p.OutputPath,
		"placemarks", len(placemarks))
	return capability.OK(
		fmt.Sprintf("packaged %s into %s", plural(len(placemarks), "placemark"), p.OutputPath),
		data)
}

// markExported appends an "exported" entry to each record whose asset made
// it into the archive.
func (g *GeoExporter) markExported(ctx context.Context, p ExportParams, placemarks []model.Placemark) ([]model.EvidenceRecord, error) {
	exported := make(map[string]bool, len(placemarks))
	for _, pm := range placemarks {
		exported[pm.ContentHash] = true
	}

	out := make([]model.EvidenceRecord, 0, len(p.Evidence))
	for _, rec := range p.Evidence {
		if !exported[rec.ContentHash] {
			out = append(out, rec)
			continue
		}
		actor := p.Analyst
		if actor == "" {
			actor = g.deps.Analyst
		}
		if actor == "" {
			actor = rec.Analyst
		}
		next, err := evidence.Append(rec, evidence.ActionExported, actor, g.deps.Now())
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if err := g.deps.Ledger.Append(ctx, next); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		out = append(out, next)
	}
	return out, nil
}
