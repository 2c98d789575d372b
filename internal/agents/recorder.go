package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/ctxutil"
	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// RecordParams are the evidence_recorder inputs.
type RecordParams struct {
	Processed []model.ProcessedAsset `json:"processed"`
	Analyst   string                 `json:"analyst"`
	// Inference maps file name to the upstream detection summary.
	Inference map[string]model.InferenceSummary `json:"inference"`
}

// EvidenceRecorder creates a chain-of-custody record per processed asset
// and persists it to the ledger. Assets with an inference summary get an
// "analyzed" entry on top of "created".
type EvidenceRecorder struct {
	deps   Deps
	logger *slog.Logger
}

func (*EvidenceRecorder) Name() string { return NameEvidenceRecorder }

func (*EvidenceRecorder) Purpose() string {
	return "Create hash-chained evidence records for processed assets"
}

func (e *EvidenceRecorder) Execute(ctx context.Context, params capability.Params) capability.Result {
	var p RecordParams
	if err := capability.Decode(params, &p); err != nil {
		return capability.Failure("invalid evidence_recorder params", err)
	}
	analyst := p.Analyst
	if analyst == "" {
		analyst = e.deps.Analyst
	}
	if analyst == "" {
		return capability.Failure("invalid evidence_recorder params", fmt.Errorf("analyst is required"))
	}

	records := make([]model.EvidenceRecord, 0, len(p.Processed))
	for _, a := range p.Processed {
		if err := ctx.Err(); err != nil {
			return capability.Failure("evidence recording interrupted", err)
		}
		inference, analyzed := p.Inference[a.Asset.FileName]
		rec := evidence.New(a.ContentHash, a.Asset.FileName, analyst, inference, e.deps.Now())
		if err := e.deps.Ledger.Create(ctx, rec); err != nil {
			return capability.Failure(fmt.Sprintf("evidence ledger write failed for %s", a.Asset.FileName), err)
		}
		if analyzed {
			next, err := evidence.Append(rec, evidence.ActionAnalyzed, analyst, e.deps.Now())
			if err != nil {
				return capability.Failure(fmt.Sprintf("evidence chain for %s is broken", a.Asset.FileName), err)
			}
			if err := e.deps.Ledger.Append(ctx, next); err != nil {
				return capability.Failure(fmt.Sprintf("evidence ledger write failed for %s", a.Asset.FileName), err)
			}
			rec = next
		}
		records = append(records, rec)
	}

	root := evidence.Root(records)
	e.logger.Info("evidence recorded",
		"run_id", ctxutil.RunIDFromContext(ctx),
		"records", len(records),
		"root", root)

	return capability.OK(
		fmt.Sprintf("recorded %s", plural(len(records), "evidence record")),
		map[string]any{
			"evidence":      records,
			"evidence_root": root,
		})
}
