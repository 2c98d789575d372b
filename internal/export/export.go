// Package export serializes placemarks and clusters into the primary KML
// document, the CSV and GeoJSON auxiliary exports, a web-map viewport and
// summary statistics, and packages everything into a KMZ archive.
//
// Everything except WriteKMZ is a pure function of its inputs.
package export

import (
	"errors"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// ErrPackaging wraps every archive failure. A failed package never leaves a
// partial archive at the destination.
var ErrPackaging = errors.New("export: packaging failed")

// DefaultTitle names documents when no title is given.
const DefaultTitle = "Field Survey"

// Options controls document content.
type Options struct {
	Title         string
	Description   string
	ContextLayers []model.ContextLayer
}

// Build produces the export bundle. When clusters is non-empty the field
// documentation folder holds one sub-folder per cluster; otherwise it holds
// one placemark per asset.
func Build(placemarks []model.Placemark, clusters []model.Cluster, opts Options) (model.ExportBundle, error) {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	doc, err := KML(placemarks, clusters, opts)
	if err != nil {
		return model.ExportBundle{}, err
	}
	csv, err := CSV(placemarks)
	if err != nil {
		return model.ExportBundle{}, err
	}
	gj, err := GeoJSON(placemarks)
	if err != nil {
		return model.ExportBundle{}, err
	}
	return model.ExportBundle{
		PrimaryDocument: doc,
		AuxiliaryExports: model.AuxiliaryExports{
			CSV:          csv,
			GeoJSON:      gj,
			WebMapConfig: MapConfigFor(placemarks),
		},
		Statistics: Statistics(placemarks, clusters),
	}, nil
}
