package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/integrity"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/storage"
	"github.com/ashita-ai/fieldmark/internal/testutil"
)

var t0 = time.Date(2026, 5, 3, 9, 30, 0, 123456789, time.UTC)

func newRecord(name string) model.EvidenceRecord {
	hash := integrity.ContentHash([]byte("asset bytes for " + name))
	return evidence.New(hash, name, "analyst-1", model.InferenceSummary{
		Labels:     []string{"crack", "spalling"},
		RiskLevel:  "medium",
		Confidence: 0.82,
	}, t0)
}

// ledgerContract runs the behaviour every Ledger backend must share.
func ledgerContract(t *testing.T, open func(t *testing.T) storage.Ledger) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		l := open(t)
		rec := newRecord("a.jpg")
		require.NoError(t, l.Create(ctx, rec))

		got, err := l.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.AssetHash, got.AssetHash)
		assert.Equal(t, rec.Inference, got.Inference)
		assert.True(t, rec.Timestamp.Equal(got.Timestamp))
		require.Len(t, got.Provenance, 1)
		assert.NoError(t, evidence.Verify(got))
	})

	t.Run("duplicate create", func(t *testing.T) {
		l := open(t)
		rec := newRecord("dup.jpg")
		require.NoError(t, l.Create(ctx, rec))
		assert.ErrorIs(t, l.Create(ctx, rec), storage.ErrExists)
	})

	t.Run("create rejects unverifiable record", func(t *testing.T) {
		l := open(t)
		rec := newRecord("bad.jpg")
		rec.Signature = "forged"
		assert.ErrorIs(t, l.Create(ctx, rec), evidence.ErrChainBroken)
	})

	t.Run("append extends head", func(t *testing.T) {
		l := open(t)
		rec := newRecord("b.jpg")
		require.NoError(t, l.Create(ctx, rec))

		next, err := evidence.Append(rec, evidence.ActionAnalyzed, "qa", t0.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, l.Append(ctx, next))
		next, err = evidence.Append(next, evidence.ActionExported, "qa", t0.Add(2*time.Minute))
		require.NoError(t, err)
		require.NoError(t, l.Append(ctx, next))

		got, err := l.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.Len(t, got.Provenance, 3)
		assert.Equal(t, next.AssetHash, got.AssetHash)
		assert.Equal(t, evidence.ActionExported, got.Provenance[2].Action)
	})

	t.Run("stale append conflicts", func(t *testing.T) {
		l := open(t)
		rec := newRecord("c.jpg")
		require.NoError(t, l.Create(ctx, rec))

		first, err := evidence.Append(rec, evidence.ActionAnalyzed, "qa", t0.Add(time.Minute))
		require.NoError(t, err)
		second, err := evidence.Append(rec, evidence.ActionExported, "other", t0.Add(time.Minute))
		require.NoError(t, err)

		require.NoError(t, l.Append(ctx, first))
		assert.ErrorIs(t, l.Append(ctx, second), storage.ErrConflict)
	})

	t.Run("append unknown record", func(t *testing.T) {
		l := open(t)
		rec := newRecord("d.jpg")
		next, err := evidence.Append(rec, evidence.ActionAnalyzed, "qa", t0)
		require.NoError(t, err)
		assert.ErrorIs(t, l.Append(ctx, next), storage.ErrNotFound)
	})

	t.Run("get unknown record", func(t *testing.T) {
		l := open(t)
		_, err := l.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list in insertion order", func(t *testing.T) {
		l := open(t)
		var ids []uuid.UUID
		for _, name := range []string{"1.jpg", "2.jpg", "3.jpg"} {
			rec := newRecord(name)
			require.NoError(t, l.Create(ctx, rec))
			ids = append(ids, rec.ID)
		}
		got, err := l.List(ctx)
		require.NoError(t, err)
		var gotIDs []uuid.UUID
		for _, r := range got {
			gotIDs = append(gotIDs, r.ID)
		}
		assert.Equal(t, ids, gotIDs)
	})
}

func TestMemoryLedger(t *testing.T) {
	ledgerContract(t, func(t *testing.T) storage.Ledger {
		return storage.NewMemory()
	})
}

func TestSQLiteLedger(t *testing.T) {
	ledgerContract(t, func(t *testing.T) storage.Ledger {
		l, err := storage.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), testutil.TestLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = l.Close() })
		return l
	})
}

func TestSQLiteLedgerPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := storage.NewSQLite(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	rec := newRecord("persist.jpg")
	require.NoError(t, l.Create(ctx, rec))
	require.NoError(t, l.Close())

	l, err = storage.NewSQLite(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	got, err := l.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.AssetHash, got.AssetHash)
}

func TestMemoryLedgerReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l := storage.NewMemory()
	rec := newRecord("copy.jpg")
	require.NoError(t, l.Create(ctx, rec))

	got, err := l.Get(ctx, rec.ID)
	require.NoError(t, err)
	got.Provenance[0].Actor = "mallory"
	got.Inference.Labels[0] = "nothing"

	again, err := l.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "analyst-1", again.Provenance[0].Actor)
	assert.Equal(t, "crack", again.Inference.Labels[0])
}
