package storage_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/storage"
	"github.com/ashita-ai/fieldmark/internal/testutil"
	"github.com/ashita-ai/fieldmark/migrations"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	tc, err := testutil.StartPostgres()
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres ledger tests skipped: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	db, err := tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres ledger tests skipped: %v\n", err)
		tc.Terminate()
		os.Exit(m.Run())
	}
	testDB = db

	code := m.Run()
	_ = db.Close()
	tc.Terminate()
	os.Exit(code)
}

func requirePostgres(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
}

// pgLedger shares one database across subtests; Close is left to TestMain.
type pgLedger struct{ *storage.DB }

func (pgLedger) Close() error { return nil }

func TestPostgresLedger(t *testing.T) {
	requirePostgres(t)
	ledgerContract(t, func(t *testing.T) storage.Ledger {
		_, err := testDB.Pool().Exec(context.Background(),
			`TRUNCATE evidence_provenance, evidence_records`)
		require.NoError(t, err)
		return pgLedger{testDB}
	})
}

func TestPostgresMigrationsIdempotent(t *testing.T) {
	requirePostgres(t)
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}

func TestPostgresProvenanceIsAppendOnly(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	rec := newRecord("immutable.jpg")
	require.NoError(t, testDB.Create(ctx, rec))

	_, err := testDB.Pool().Exec(ctx,
		`UPDATE evidence_provenance SET actor = 'mallory' WHERE record_id = $1`, rec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = testDB.Pool().Exec(ctx,
		`DELETE FROM evidence_provenance WHERE record_id = $1`, rec.ID)
	require.Error(t, err)
}

func TestPostgresDetectsTamperedHead(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	rec := newRecord("tampered.jpg")
	require.NoError(t, testDB.Create(ctx, rec))
	next, err := evidence.Append(rec, evidence.ActionAnalyzed, "qa", time.Now())
	require.NoError(t, err)
	require.NoError(t, testDB.Append(ctx, next))

	_, err = testDB.Pool().Exec(ctx,
		`UPDATE evidence_records SET file_name = 'other.jpg' WHERE id = $1`, rec.ID)
	require.NoError(t, err)

	_, err = testDB.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, evidence.ErrChainBroken)

	ids, err := testDB.RecordIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, rec.ID)
}
