package agents

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/ctxutil"
	"github.com/ashita-ai/fieldmark/internal/geo"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/service/metadata"
)

// ExtractParams are the metadata_extractor inputs.
type ExtractParams struct {
	Paths        []string                     `json:"paths"`
	Dir          string                       `json:"dir"`
	GPSOverrides map[string]model.Coordinates `json:"gps_overrides"`
	// Thumbnails defaults to true.
	Thumbnails *bool `json:"thumbnails"`
}

func (p ExtractParams) Validate() error {
	if len(p.Paths) == 0 && p.Dir == "" {
		return fmt.Errorf("paths or dir is required")
	}
	return nil
}

// MetadataExtractor reads image files, validates, extracts and grades them,
// and builds placemarks for the geotagged ones.
type MetadataExtractor struct {
	deps   Deps
	logger *slog.Logger
}

func (*MetadataExtractor) Name() string { return NameMetadataExtractor }

func (*MetadataExtractor) Purpose() string {
	return "Validate image files, extract EXIF and technical metadata, grade quality and build placemarks"
}

func (m *MetadataExtractor) Execute(ctx context.Context, params capability.Params) capability.Result {
	var p ExtractParams
	if err := capability.Decode(params, &p); err != nil {
		return capability.Failure("invalid metadata_extractor params", err)
	}

	paths := slices.Clone(p.Paths)
	if p.Dir != "" {
		listed, err := metadata.ListDir(p.Dir)
		if err != nil {
			return capability.Failure("cannot read input directory", err)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return capability.Failure("no input files", fmt.Errorf("%s contains no files", p.Dir))
	}

	files, readErrs := metadata.LoadFiles(paths, m.deps.Limits.MaxFileBytes)
	res, err := m.deps.Processor.Process(ctx, metadata.Request{
		Files:        files,
		GPSOverrides: p.GPSOverrides,
		Thumbnails:   p.Thumbnails == nil || *p.Thumbnails,
	})
	if err != nil {
		return capability.Failure("metadata extraction interrupted", err)
	}

	errs := append(readErrs, res.Errors...)
	if errs == nil {
		errs = []model.FileError{}
	}
	placemarks := geo.BuildPlacemarks(res.Processed)

	m.logger.Info("metadata extracted",
		"run_id", ctxutil.RunIDFromContext(ctx),
		"files", len(paths),
		"processed", len(res.Processed),
		"placemarks", len(placemarks),
		"errors", len(errs))

	return capability.OK(
		fmt.Sprintf("processed %d of %s, %s, %s",
			len(res.Processed), plural(len(paths), "file"), plural(len(placemarks), "placemark"), plural(len(errs), "error")),
		map[string]any{
			"processed":  res.Processed,
			"placemarks": placemarks,
			"errors":     errs,
			"warnings":   res.Warnings,
		})
}
