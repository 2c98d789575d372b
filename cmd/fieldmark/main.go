// fieldmark runs the geo-tagged field image pipeline: ingest, cluster,
// record evidence and export KML/KMZ.
//
// Usage:
//
//	fieldmark process <dir> [-o survey.kmz] [--radius 100] [--context roads=roads.geojson]
//	fieldmark run <capability> --params '{"dir":"photos"}'
//	fieldmark workflow <file.yaml>
//	fieldmark agents
//	fieldmark verify [record-id]
//	fieldmark mcp
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
