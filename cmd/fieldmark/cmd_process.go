package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/fieldmark"
	"github.com/ashita-ai/fieldmark/internal/export"
)

var processFlags struct {
	output       string
	title        string
	radius       float64
	noThumbnails bool
	contexts     []string
	gps          []string
	inference    string
}

var processCmd = &cobra.Command{
	Use:   "process <dir>",
	Short: "Run the survey workflow over a directory of images",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&processFlags.output, "output", "o", "", "Write a KMZ archive to this path")
	f.StringVar(&processFlags.title, "title", "", "Document title")
	f.Float64Var(&processFlags.radius, "radius", 0, "Cluster radius in meters (default from config)")
	f.BoolVar(&processFlags.noThumbnails, "no-thumbnails", false, "Skip thumbnail generation")
	f.StringArrayVar(&processFlags.contexts, "context", nil, "Context layer as type=path.geojson (repeatable)")
	f.StringArrayVar(&processFlags.gps, "gps", nil, "Manual position as file=lat,lon[,alt] (repeatable)")
	f.StringVar(&processFlags.inference, "inference", "", "JSON file mapping file names to inference summaries")
}

func runProcess(cmd *cobra.Command, args []string) error {
	req := fieldmark.SurveyRequest{
		Dir:          args[0],
		Title:        processFlags.title,
		OutputPath:   processFlags.output,
		RadiusMeters: processFlags.radius,
	}
	if processFlags.noThumbnails {
		off := false
		req.Thumbnails = &off
	}

	var err error
	if req.GPSOverrides, err = parseGPSOverrides(processFlags.gps); err != nil {
		return err
	}
	if req.ContextLayers, err = loadContextLayers(processFlags.contexts); err != nil {
		return err
	}
	if req.Inference, err = loadInference(processFlags.inference); err != nil {
		return err
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(cmd.Context()) }()

	report, err := app.ProcessBatch(cmd.Context(), req)
	printSurveyReport(cmd.OutOrStdout(), report)
	return err
}

// parseGPSOverrides reads name=lat,lon[,alt] pairs.
func parseGPSOverrides(specs []string) (map[string]fieldmark.Coordinates, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]fieldmark.Coordinates, len(specs))
	for _, s := range specs {
		name, coords, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--gps %q: want file=lat,lon[,alt]", s)
		}
		parts := strings.Split(coords, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("--gps %q: want file=lat,lon[,alt]", s)
		}
		var vals [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("--gps %q: %w", s, err)
			}
			vals[i] = v
		}
		c := fieldmark.Coordinates{Lat: vals[0], Lon: vals[1], Alt: vals[2]}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, fmt.Errorf("--gps %q: coordinates out of range", s)
		}
		out[name] = c
	}
	return out, nil
}

// loadContextLayers reads type=path.geojson pairs into context layers.
func loadContextLayers(specs []string) ([]fieldmark.ContextLayer, error) {
	layers := make([]fieldmark.ContextLayer, 0, len(specs))
	for _, s := range specs {
		layerType, path, ok := strings.Cut(s, "=")
		if !ok || layerType == "" || path == "" {
			return nil, fmt.Errorf("--context %q: want type=path.geojson", s)
		}
		layer, err := loadContextLayer(layerType, path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

func loadContextLayer(layerType, path string) (fieldmark.ContextLayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return fieldmark.ContextLayer{}, fmt.Errorf("open context layer: %w", err)
	}
	defer func() { _ = f.Close() }()
	layer, err := export.LoadContextLayers(f, layerType)
	if err != nil {
		return fieldmark.ContextLayer{}, fmt.Errorf("context layer %s: %w", path, err)
	}
	return layer, nil
}

func loadInference(path string) (map[string]fieldmark.InferenceSummary, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inference: %w", err)
	}
	var out map[string]fieldmark.InferenceSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse inference: %w", err)
	}
	return out, nil
}
