package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// Memory is an in-process Ledger. Records are lost when the process exits.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]model.EvidenceRecord
	order   []uuid.UUID
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[uuid.UUID]model.EvidenceRecord)}
}

func (m *Memory) Create(_ context.Context, rec model.EvidenceRecord) error {
	if err := checkCreate(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}
	m.records[rec.ID] = cloneRecord(rec)
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *Memory) Append(_ context.Context, rec model.EvidenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	next, err := extend(stored, rec)
	if err != nil {
		return err
	}
	m.records[rec.ID] = next
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (model.EvidenceRecord, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return model.EvidenceRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return verifyLoaded(cloneRecord(rec))
}

func (m *Memory) List(ctx context.Context) ([]model.EvidenceRecord, error) {
	m.mu.RLock()
	ids := slices.Clone(m.order)
	m.mu.RUnlock()

	out := make([]model.EvidenceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func cloneRecord(r model.EvidenceRecord) model.EvidenceRecord {
	r.Provenance = slices.Clone(r.Provenance)
	r.Inference.Labels = slices.Clone(r.Inference.Labels)
	return r
}
