// Command verify-ledger walks every evidence record in a Postgres ledger,
// re-verifies its provenance chain and signature, and reports the records
// that fail.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./scripts/verify-ledger
//
// It prints one line per broken record, then the Merkle root over the
// records that verified. Exits non-zero when any record is broken.
// Read-only; safe to run against production.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/fieldmark/internal/evidence"
	"github.com/ashita-ai/fieldmark/internal/model"
	"github.com/ashita-ai/fieldmark/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := storage.New(ctx, dbURL, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = db.Close() }()

	ids, err := db.RecordIDs(ctx)
	if err != nil {
		return err
	}

	var good []model.EvidenceRecord
	broken := 0
	for _, id := range ids {
		rec, err := db.Get(ctx, id)
		switch {
		case err == nil:
			good = append(good, rec)
		case errors.Is(err, evidence.ErrChainBroken):
			broken++
			fmt.Printf("BROKEN %s: %v\n", id, err)
		default:
			return fmt.Errorf("load %s: %w", id, err)
		}
	}

	fmt.Printf("scanned %d records, %d verified, %d broken\n", len(ids), len(good), broken)
	fmt.Printf("root of verified records: %s\n", evidence.Root(good))
	if broken > 0 {
		return fmt.Errorf("%d evidence records failed verification", broken)
	}
	return nil
}
