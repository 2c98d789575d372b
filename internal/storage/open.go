package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashita-ai/fieldmark/internal/config"
	"github.com/ashita-ai/fieldmark/migrations"
)

// Open returns the Ledger selected by cfg.LedgerDriver. The Postgres backend
// runs pending migrations before it is returned.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Ledger, error) {
	logger = logger.With("component", "ledger", "driver", cfg.LedgerDriver)
	switch cfg.LedgerDriver {
	case config.LedgerMemory:
		return NewMemory(), nil
	case config.LedgerSQLite:
		return NewSQLite(ctx, cfg.LedgerPath, logger)
	case config.LedgerPostgres:
		db, err := New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage: unknown ledger driver %q", cfg.LedgerDriver)
	}
}
