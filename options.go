package fieldmark

import (
	"io"
	"log/slog"

	"github.com/ashita-ai/fieldmark/internal/config"
	"github.com/ashita-ai/fieldmark/internal/storage"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	config       *config.Config
	logger       *slog.Logger
	logOutput    io.Writer
	version      string
	ledger       storage.Ledger
	capabilities []Capability
	observers    []StateObserver

	ledgerDriver string
	ledgerPath   string
	databaseURL  string
	analyst      string
	radius       float64
}

// apply writes the field overrides onto cfg.
func (o resolvedOptions) apply(cfg *config.Config) {
	if o.ledgerDriver != "" {
		cfg.LedgerDriver = o.ledgerDriver
	}
	if o.ledgerPath != "" {
		cfg.LedgerPath = o.ledgerPath
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.analyst != "" {
		cfg.Analyst = o.analyst
	}
	if o.radius > 0 {
		cfg.ClusterRadiusMeters = o.radius
	}
}

// WithConfig replaces environment loading with cfg. Field overrides from
// other options still apply on top.
func WithConfig(cfg config.Config) Option {
	return func(o *resolvedOptions) { o.config = &cfg }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithLogOutput builds the App's logger from the loaded config's log level
// and format, writing to w. Ignored when WithLogger is also given.
func WithLogOutput(w io.Writer) Option {
	return func(o *resolvedOptions) { o.logOutput = w }
}

// WithVersion sets the version string reported in logs, telemetry and MCP.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithLedgerDriver overrides FIELDMARK_LEDGER_DRIVER (sqlite, postgres or memory).
func WithLedgerDriver(driver string) Option {
	return func(o *resolvedOptions) { o.ledgerDriver = driver }
}

// WithLedgerPath overrides FIELDMARK_LEDGER_PATH for the sqlite ledger.
func WithLedgerPath(path string) Option {
	return func(o *resolvedOptions) { o.ledgerPath = path }
}

// WithDatabaseURL overrides DATABASE_URL for the postgres ledger.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithAnalyst sets the default analyst recorded on evidence entries.
func WithAnalyst(analyst string) Option {
	return func(o *resolvedOptions) { o.analyst = analyst }
}

// WithClusterRadius overrides the default clustering radius in meters.
func WithClusterRadius(meters float64) Option {
	return func(o *resolvedOptions) { o.radius = meters }
}

// WithCapability registers an extra capability next to the built-in ones.
// Registering a name twice makes New fail.
func WithCapability(c Capability) Option {
	return func(o *resolvedOptions) { o.capabilities = append(o.capabilities, c) }
}

// WithStateObserver subscribes fn to every engine state change.
// Observers run synchronously on the engine's goroutine; keep them fast.
func WithStateObserver(fn StateObserver) Option {
	return func(o *resolvedOptions) { o.observers = append(o.observers, fn) }
}

// withLedger injects a ready ledger, bypassing the configured driver.
func withLedger(l storage.Ledger) Option {
	return func(o *resolvedOptions) { o.ledger = l }
}
