package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/fieldmark/internal/integrity"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/telemetry"
)

// Options configures a Processor.
type Options struct {
	Limits          Limits
	Workers         int // concurrent extractions; <= 0 means 1
	ThumbnailMaxDim int // 0 disables thumbnails
}

// Request is one batch.
type Request struct {
	Files []model.ImageFile
	// GPSOverrides supplies coordinates by file name. An override replaces
	// any EXIF position and marks the source as manual.
	GPSOverrides map[string]model.Coordinates
	Thumbnails   bool
}

// BatchResult collects per-asset outcomes in input order.
type BatchResult struct {
	Processed []model.ProcessedAsset `json:"processed"`
	Errors    []model.FileError      `json:"errors"`
	Warnings  []string               `json:"warnings"`
}

// Processor runs batches through validation, deduplication, extraction,
// grading and thumbnailing.
type Processor struct {
	opts      Options
	logger    *slog.Logger
	processed metric.Int64Counter
}

// NewProcessor creates a Processor.
func NewProcessor(opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	counter, err := telemetry.Meter("metadata").Int64Counter("fieldmark.assets.processed",
		metric.WithDescription("Assets handled by the metadata stage, by outcome"))
	if err != nil {
		logger.Warn("metadata: asset counter unavailable", "error", err)
	}
	return &Processor{opts: opts, logger: logger.With("component", "metadata"), processed: counter}
}

type candidate struct {
	file model.ImageFile
	hash string
}

type slot struct {
	asset *model.ProcessedAsset
	errs  []model.FileError
}

// Process handles a batch. Per-file problems land in BatchResult.Errors and
// never abort the batch; the returned error is non-nil only if ctx ends
// before extraction completes.
func (p *Processor) Process(ctx context.Context, req Request) (BatchResult, error) {
	res := BatchResult{
		Processed: []model.ProcessedAsset{},
		Errors:    []model.FileError{},
		Warnings:  []string{},
	}

	// Validation and deduplication run in input order so the first copy of
	// duplicated content is always the one kept.
	seen := make(map[string]string)
	var candidates []candidate
	for _, f := range req.Files {
		if f.Asset.ID == uuid.Nil {
			f.Asset.ID = uuid.New()
		}
		if f.Asset.MIMEType == "" && len(f.Data) > 0 {
			f.Asset.MIMEType = DetectType(f.Data)
		}
		if err := Validate(f.Asset, f.Data, p.opts.Limits); err != nil {
			res.Errors = append(res.Errors, fileError(f.Asset.FileName, model.ErrorKindValidation, err))
			p.count(ctx, "rejected")
			continue
		}
		hash := integrity.ContentHash(f.Data)
		if first, dup := seen[hash]; dup {
			err := fmt.Errorf("%w: same bytes as %s", ErrDuplicate, first)
			res.Errors = append(res.Errors, fileError(f.Asset.FileName, model.ErrorKindDuplicate, err))
			p.count(ctx, "duplicate")
			continue
		}
		seen[hash] = f.Asset.FileName
		candidates = append(candidates, candidate{file: f, hash: hash})
	}

	slots := make([]slot, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = p.processOne(c, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("metadata: process batch: %w", err)
	}

	for _, s := range slots {
		res.Errors = append(res.Errors, s.errs...)
		if s.asset == nil {
			p.count(ctx, "failed")
			continue
		}
		res.Processed = append(res.Processed, *s.asset)
		p.count(ctx, "processed")
		if !s.asset.Metadata.GPS.Present {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no GPS data; asset will not be placed on the map", s.asset.Asset.FileName))
		}
	}

	p.logger.Info("batch processed",
		"files", len(req.Files),
		"processed", len(res.Processed),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings))
	return res, nil
}

func (p *Processor) processOne(c candidate, req Request) slot {
	name := c.file.Asset.FileName
	md, err := Extract(c.file.Data)
	if err != nil {
		return slot{errs: []model.FileError{fileError(name, model.ErrorKindExtraction, err)}}
	}

	if o, ok := req.GPSOverrides[name]; ok {
		md.GPS = model.GPSInfo{
			Present:   true,
			Latitude:  o.Lat,
			Longitude: o.Lon,
			Altitude:  o.Alt,
			Source:    model.GPSSourceManual,
		}
	}
	md = Grade(md, assetSize(c.file))

	out := &model.ProcessedAsset{Asset: c.file.Asset, Metadata: md, ContentHash: c.hash}
	var errs []model.FileError
	if req.Thumbnails && p.opts.ThumbnailMaxDim > 0 {
		thumb, err := Thumbnail(c.file.Data, p.opts.ThumbnailMaxDim)
		if err != nil {
			// The asset is still usable without a preview.
			errs = append(errs, fileError(name, model.ErrorKindThumbnail, err))
		} else {
			out.Thumbnail = thumb
		}
	}
	return slot{asset: out, errs: errs}
}

func (p *Processor) count(ctx context.Context, outcome string) {
	if p.processed == nil {
		return
	}
	p.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func assetSize(f model.ImageFile) int64 {
	if f.Asset.FileSizeBytes > 0 {
		return f.Asset.FileSizeBytes
	}
	return int64(len(f.Data))
}

func fileError(name string, kind model.ErrorKind, err error) model.FileError {
	return model.FileError{FileName: name, Kind: kind, Message: err.Error()}
}
