// Package evidence maintains append-only, hash-linked chain-of-custody
// records.
//
// A record starts with one provenance entry whose HashAfter is the SHA-256
// of the asset bytes. Each later entry links HashBefore to the previous
// HashAfter and carries a new head hash computed over the whole record as
// it stood plus the change being recorded. Records are values: Append
// returns a new record and never edits the history of the one it was given.
package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/integrity"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// ErrChainBroken reports a provenance chain that fails verification. It is
// never repaired automatically.
var ErrChainBroken = errors.New("evidence: provenance chain broken")

// Provenance actions recorded by fieldmark itself.
const (
	ActionCreated  = "created"
	ActionAnalyzed = "analyzed"
	ActionExported = "exported"
)

// normalizeTime drops precision Postgres cannot store so hashes survive a
// round trip through timestamptz.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// New creates a record for an asset with a single "created" entry.
func New(contentHash, fileName, analyst string, inference model.InferenceSummary, at time.Time) model.EvidenceRecord {
	at = normalizeTime(at)
	if inference.Labels == nil {
		inference.Labels = []string{}
	}
	return model.EvidenceRecord{
		ID:          uuid.New(),
		ContentHash: contentHash,
		AssetHash:   contentHash,
		FileName:    fileName,
		Analyst:     analyst,
		Inference:   inference,
		Signature:   integrity.Sign(contentHash, analyst, at),
		Timestamp:   at,
		Provenance: []model.ProvenanceEntry{{
			Action:     ActionCreated,
			Actor:      analyst,
			Timestamp:  at,
			HashBefore: "",
			HashAfter:  contentHash,
		}},
	}
}

// Append verifies rec and returns a copy with one more provenance entry, a
// new head hash and a fresh signature.
func Append(rec model.EvidenceRecord, action, actor string, at time.Time) (model.EvidenceRecord, error) {
	if err := Verify(rec); err != nil {
		return model.EvidenceRecord{}, err
	}
	if action == "" {
		return model.EvidenceRecord{}, fmt.Errorf("evidence: append: action is required")
	}
	at = normalizeTime(at)

	next := rec
	next.Inference.Labels = slices.Clone(rec.Inference.Labels)
	hash := linkHash(rec, rec.Provenance, action, actor, at)
	next.Provenance = append(slices.Clone(rec.Provenance), model.ProvenanceEntry{
		Action:     action,
		Actor:      actor,
		Timestamp:  at,
		HashBefore: rec.AssetHash,
		HashAfter:  hash,
	})
	next.AssetHash = hash
	next.Timestamp = at
	next.Signature = integrity.Sign(hash, rec.Analyst, at)
	return next, nil
}

// Verify recomputes every link of the chain and the signature.
func Verify(rec model.EvidenceRecord) error {
	p := rec.Provenance
	if len(p) == 0 {
		return fmt.Errorf("%w: record %s has no provenance", ErrChainBroken, rec.ID)
	}
	if p[0].HashBefore != "" || p[0].HashAfter != rec.ContentHash {
		return fmt.Errorf("%w: record %s: first entry does not start from the asset hash", ErrChainBroken, rec.ID)
	}
	for i := 1; i < len(p); i++ {
		if p[i].HashBefore != p[i-1].HashAfter {
			return fmt.Errorf("%w: record %s: entry %d hash_before %q does not match previous hash_after %q",
				ErrChainBroken, rec.ID, i, p[i].HashBefore, p[i-1].HashAfter)
		}
		if want := linkHash(rec, p[:i], p[i].Action, p[i].Actor, p[i].Timestamp); p[i].HashAfter != want {
			return fmt.Errorf("%w: record %s: entry %d hash_after does not match its content", ErrChainBroken, rec.ID, i)
		}
	}
	if head := p[len(p)-1].HashAfter; rec.AssetHash != head {
		return fmt.Errorf("%w: record %s: asset hash is not the chain head", ErrChainBroken, rec.ID)
	}
	if rec.Signature != integrity.Sign(rec.AssetHash, rec.Analyst, rec.Timestamp) {
		return fmt.Errorf("%w: record %s: signature mismatch", ErrChainBroken, rec.ID)
	}
	return nil
}

// Root returns the Merkle root over the records' head hashes, sorted.
// It commits a whole batch of records to one value.
func Root(records []model.EvidenceRecord) string {
	heads := make([]string, len(records))
	for i, r := range records {
		heads[i] = r.AssetHash
	}
	slices.Sort(heads)
	return integrity.BuildMerkleRoot(heads)
}

// linkHash hashes the record's fixed fields, the history before the new
// entry, and the new entry's action, actor and time.
func linkHash(rec model.EvidenceRecord, history []model.ProvenanceEntry, action, actor string, at time.Time) string {
	inference, _ := json.Marshal(rec.Inference) // plain struct; cannot fail
	fields := []string{rec.ID.String(), rec.ContentHash, rec.FileName, rec.Analyst, string(inference)}
	for _, e := range history {
		fields = append(fields, e.Action, e.Actor, stamp(e.Timestamp), e.HashBefore, e.HashAfter)
	}
	fields = append(fields, action, actor, stamp(at))
	return integrity.HashFields(fields...)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
