package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ashita-ai/fieldmark/internal/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS evidence_records (
		id           TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		asset_hash   TEXT NOT NULL,
		file_name    TEXT NOT NULL DEFAULT '',
		analyst      TEXT NOT NULL,
		inference    TEXT NOT NULL,
		signature    TEXT NOT NULL,
		recorded_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS evidence_provenance (
		record_id   TEXT NOT NULL REFERENCES evidence_records (id),
		seq         INTEGER NOT NULL,
		action      TEXT NOT NULL,
		actor       TEXT NOT NULL,
		at          TEXT NOT NULL,
		hash_before TEXT NOT NULL,
		hash_after  TEXT NOT NULL,
		PRIMARY KEY (record_id, seq)
	)`,
	`CREATE TRIGGER IF NOT EXISTS evidence_provenance_no_update
		BEFORE UPDATE ON evidence_provenance
		BEGIN SELECT RAISE(ABORT, 'evidence_provenance is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS evidence_provenance_no_delete
		BEFORE DELETE ON evidence_provenance
		BEGIN SELECT RAISE(ABORT, 'evidence_provenance is append-only'); END`,
}

// SQLite is a single-file Ledger for offline field laptops.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (creating if needed) the ledger database at path.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %s: %w", path, err)
	}
	// One writer keeps the FOR UPDATE-free append path serialized.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: sqlite schema: %w", err)
		}
	}
	logger.Debug("sqlite ledger ready", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Create(ctx context.Context, rec model.EvidenceRecord) error {
	if err := checkCreate(rec); err != nil {
		return err
	}
	inference, err := json.Marshal(rec.Inference)
	if err != nil {
		return fmt.Errorf("storage: encode inference: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM evidence_records WHERE id = ?`, rec.ID.String()).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrExists, rec.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("storage: check record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO evidence_records
		 (id, content_hash, asset_hash, file_name, analyst, inference, signature, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.ContentHash, rec.AssetHash, rec.FileName, rec.Analyst,
		string(inference), rec.Signature, formatTime(rec.Timestamp),
	); err != nil {
		return fmt.Errorf("storage: insert record: %w", err)
	}
	if err := s.insertEntry(ctx, tx, rec.ID, 0, rec.Provenance[0]); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit create: %w", err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, rec model.EvidenceRecord) error {
	return defaultAppendPolicy.run(ctx, s.logger, rec.ID, func() error {
		return s.appendOnce(ctx, rec)
	})
}

func (s *SQLite) appendOnce(ctx context.Context, rec model.EvidenceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := s.load(ctx, tx, rec.ID)
	if err != nil {
		return err
	}
	next, err := extend(stored, rec)
	if err != nil {
		return err
	}

	seq := len(next.Provenance) - 1
	if err := s.insertEntry(ctx, tx, rec.ID, seq, next.Provenance[seq]); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE evidence_records SET asset_hash = ?, signature = ?, recorded_at = ? WHERE id = ?`,
		next.AssetHash, next.Signature, formatTime(next.Timestamp), rec.ID.String(),
	); err != nil {
		return fmt.Errorf("storage: update head: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit append: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (model.EvidenceRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.load(ctx, tx, id)
	if err != nil {
		return model.EvidenceRecord{}, err
	}
	return verifyLoaded(rec)
}

func (s *SQLite) List(ctx context.Context) ([]model.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM evidence_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage: list records: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("storage: scan record id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("storage: parse record id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("storage: iterate records: %w", err)
	}
	_ = rows.Close()

	out := make([]model.EvidenceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) insertEntry(ctx context.Context, tx *sql.Tx, id uuid.UUID, seq int, e model.ProvenanceEntry) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO evidence_provenance (record_id, seq, action, actor, at, hash_before, hash_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), seq, e.Action, e.Actor, formatTime(e.Timestamp), e.HashBefore, e.HashAfter,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: record %s seq %d: %w", ErrConflict, id, seq, errSeqTaken)
		}
		return fmt.Errorf("storage: insert provenance: %w", err)
	}
	return nil
}

func (s *SQLite) load(ctx context.Context, tx *sql.Tx, id uuid.UUID) (model.EvidenceRecord, error) {
	var (
		rawID, inference, recordedAt string
		rec                          model.EvidenceRecord
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, content_hash, asset_hash, file_name, analyst, inference, signature, recorded_at
		 FROM evidence_records WHERE id = ?`, id.String(),
	).Scan(&rawID, &rec.ContentHash, &rec.AssetHash, &rec.FileName, &rec.Analyst,
		&inference, &rec.Signature, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvidenceRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: load record %s: %w", id, err)
	}

	if rec.ID, err = uuid.Parse(rawID); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: parse record id %q: %w", rawID, err)
	}
	if err := json.Unmarshal([]byte(inference), &rec.Inference); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: decode inference for %s: %w", id, err)
	}
	if rec.Timestamp, err = parseTime(recordedAt); err != nil {
		return model.EvidenceRecord{}, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT action, actor, at, hash_before, hash_after
		 FROM evidence_provenance WHERE record_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: load provenance %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			e  model.ProvenanceEntry
			at string
		)
		if err := rows.Scan(&e.Action, &e.Actor, &at, &e.HashBefore, &e.HashAfter); err != nil {
			return model.EvidenceRecord{}, fmt.Errorf("storage: scan provenance: %w", err)
		}
		if e.Timestamp, err = parseTime(at); err != nil {
			return model.EvidenceRecord{}, err
		}
		rec.Provenance = append(rec.Provenance, e)
	}
	if err := rows.Err(); err != nil {
		return model.EvidenceRecord{}, fmt.Errorf("storage: iterate provenance: %w", err)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
