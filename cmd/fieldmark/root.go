package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/fieldmark"
)

var rootFlags struct {
	ledger     string
	ledgerPath string
	analyst    string
}

var rootCmd = &cobra.Command{
	Use:   "fieldmark",
	Short: "Geo-tagged field image pipeline",
	Long: "fieldmark ingests geo-tagged field photos, grades them, clusters them by\n" +
		"location, records hash-chained evidence and exports KML/KMZ bundles.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.ledger, "ledger", "", "Evidence ledger driver: sqlite, postgres or memory (overrides FIELDMARK_LEDGER_DRIVER)")
	f.StringVar(&rootFlags.ledgerPath, "ledger-path", "", "SQLite ledger file (overrides FIELDMARK_LEDGER_PATH)")
	f.StringVar(&rootFlags.analyst, "analyst", "", "Analyst recorded on evidence (overrides FIELDMARK_ANALYST)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

// newApp builds the App. fieldmark.New loads .env and the environment
// config; logs go to stderr so stdout stays clean for command output and
// the MCP stdio transport.
func newApp(extra ...fieldmark.Option) (*fieldmark.App, error) {
	opts := []fieldmark.Option{
		fieldmark.WithLogOutput(os.Stderr),
		fieldmark.WithVersion(version),
		fieldmark.WithLedgerDriver(rootFlags.ledger),
		fieldmark.WithLedgerPath(rootFlags.ledgerPath),
		fieldmark.WithAnalyst(rootFlags.analyst),
	}
	app, err := fieldmark.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(app.Logger())
	return app, nil
}
