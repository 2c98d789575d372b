// Package storage persists evidence records.
//
// Records are append-only: Create stores a new record with its first
// provenance entry, Append stores exactly one further entry and moves the
// head hash forward. Nothing ever updates or deletes a stored provenance
// entry. Every record read back is verified, so a tampered or truncated
// chain surfaces as evidence.ErrChainBroken instead of being returned.
//
// Three backends implement Ledger: DB (Postgres via pgx), SQLite
// (modernc.org/sqlite, no cgo) and Memory.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// Ledger is an append-only evidence store.
type Ledger interface {
	// Create stores a freshly created record.
	Create(ctx context.Context, rec model.EvidenceRecord) error
	// Append stores the last provenance entry of rec, which must extend the
	// stored head.
	Append(ctx context.Context, rec model.EvidenceRecord) error
	// Get loads and verifies one record.
	Get(ctx context.Context, id uuid.UUID) (model.EvidenceRecord, error)
	// List loads and verifies every record, oldest first.
	List(ctx context.Context) ([]model.EvidenceRecord, error)
	Close() error
}

// checkCreate validates a record before it is first stored.
func checkCreate(rec model.EvidenceRecord) error {
	if rec.ID == uuid.Nil {
		return fmt.Errorf("storage: create: record has no id")
	}
	if len(rec.Provenance) != 1 {
		return fmt.Errorf("storage: create: new record must have exactly one provenance entry, has %d", len(rec.Provenance))
	}
	if err := evidence.Verify(rec); err != nil {
		return fmt.Errorf("storage: create: %w", err)
	}
	return nil
}

// extend applies the last provenance entry of rec to the stored record and
// returns the result after verifying it. The entry must directly follow the
// stored head; anything else is ErrConflict.
func extend(stored, rec model.EvidenceRecord) (model.EvidenceRecord, error) {
	if len(rec.Provenance) < 2 {
		return model.EvidenceRecord{}, fmt.Errorf("storage: append: record %s has nothing to append", rec.ID)
	}
	seq := len(rec.Provenance) - 1
	entry := rec.Provenance[seq]
	if len(stored.Provenance) != seq || stored.AssetHash != entry.HashBefore {
		return model.EvidenceRecord{}, fmt.Errorf("%w: record %s", ErrConflict, rec.ID)
	}

	next := cloneRecord(stored)
	next.Provenance = append(next.Provenance, entry)
	next.AssetHash = rec.AssetHash
	next.Signature = rec.Signature
	next.Timestamp = rec.Timestamp
	if err := evidence.Verify(next); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: append record %s: %w", rec.ID, err)
	}
	return next, nil
}

// verifyLoaded wraps evidence.Verify for records read back from a backend.
func verifyLoaded(rec model.EvidenceRecord) (model.EvidenceRecord, error) {
	if err := evidence.Verify(rec); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: load record %s: %w", rec.ID, err)
	}
	return rec, nil
}
