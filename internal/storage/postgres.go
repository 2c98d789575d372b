package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) Create(ctx context.Context, rec model.EvidenceRecord) error {
	if err := checkCreate(rec); err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO evidence_records
		 (id, content_hash, asset_hash, file_name, analyst, inference, signature, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ContentHash, rec.AssetHash, rec.FileName, rec.Analyst,
		rec.Inference, rec.Signature, rec.Timestamp,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrExists, rec.ID)
		}
		return fmt.Errorf("storage: insert record: %w", err)
	}
	if err := insertEntry(ctx, tx, rec.ID, 0, rec.Provenance[0]); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit create: %w", err)
	}
	return nil
}

// Append locks the stored record, checks that rec extends it, then writes the
// new provenance entry and head in one transaction. Serialization failures
// and lost sequence races are replayed from a fresh read of the head.
func (db *DB) Append(ctx context.Context, rec model.EvidenceRecord) error {
	return defaultAppendPolicy.run(ctx, db.logger, rec.ID, func() error {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin append: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		stored, err := loadRecord(ctx, tx, rec.ID, true)
		if err != nil {
			return err
		}
		next, err := extend(stored, rec)
		if err != nil {
			return err
		}

		seq := len(next.Provenance) - 1
		if err := insertEntry(ctx, tx, rec.ID, seq, next.Provenance[seq]); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE evidence_records SET asset_hash = $2, signature = $3, recorded_at = $4 WHERE id = $1`,
			rec.ID, next.AssetHash, next.Signature, next.Timestamp,
		); err != nil {
			return fmt.Errorf("storage: update head: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("storage: commit append: %w", err)
		}
		return nil
	})
}

func (db *DB) Get(ctx context.Context, id uuid.UUID) (model.EvidenceRecord, error) {
	rec, err := loadRecord(ctx, db.pool, id, false)
	if err != nil {
		return model.EvidenceRecord{}, err
	}
	return verifyLoaded(rec)
}

func (db *DB) List(ctx context.Context) ([]model.EvidenceRecord, error) {
	ids, err := db.RecordIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.EvidenceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := db.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecordIDs returns every record id in insertion order.
func (db *DB) RecordIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx, `SELECT id FROM evidence_records ORDER BY ledger_seq`)
	if err != nil {
		return nil, fmt.Errorf("storage: list records: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("storage: scan record ids: %w", err)
	}
	return ids, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, id uuid.UUID, seq int, e model.ProvenanceEntry) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO evidence_provenance (record_id, seq, action, actor, at, hash_before, hash_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, seq, e.Action, e.Actor, e.Timestamp, e.HashBefore, e.HashAfter,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: record %s seq %d: %w", ErrConflict, id, seq, errSeqTaken)
		}
		return fmt.Errorf("storage: insert provenance: %w", err)
	}
	return nil
}

func loadRecord(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (model.EvidenceRecord, error) {
	query := `SELECT id, content_hash, asset_hash, file_name, analyst, inference, signature, recorded_at
		FROM evidence_records WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var rec model.EvidenceRecord
	err := q.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.ContentHash, &rec.AssetHash, &rec.FileName, &rec.Analyst,
		&rec.Inference, &rec.Signature, &rec.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.EvidenceRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: load record %s: %w", id, err)
	}
	rec.Timestamp = rec.Timestamp.UTC()

	rows, err := q.Query(ctx,
		`SELECT action, actor, at, hash_before, hash_after
		 FROM evidence_provenance WHERE record_id = $1 ORDER BY seq`, id)
	if err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: load provenance %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.ProvenanceEntry
		if err := rows.Scan(&e.Action, &e.Actor, &e.Timestamp, &e.HashBefore, &e.HashAfter); err != nil {
			return model.EvidenceRecord{}, fmt.Errorf("storage: scan provenance: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		rec.Provenance = append(rec.Provenance, e)
	}
	if err := rows.Err(); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: iterate provenance: %w", err)
	}
	return rec, nil
}
