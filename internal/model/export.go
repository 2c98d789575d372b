package model

import "time"

// ContextFeature is a named point or polygon supplied by an external
// collaborator (site boundaries, sampling zones, and so on).
type ContextFeature struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Point       *Coordinates    `json:"point,omitempty" yaml:"point,omitempty"`
	Polygon     [][]Coordinates `json:"polygon,omitempty" yaml:"polygon,omitempty"`
}

// ContextLayer is a typed group of context features. Each distinct Type
// becomes one folder in the primary document.
type ContextLayer struct {
	Type     string           `json:"type" yaml:"type"`
	Name     string           `json:"name" yaml:"name"`
	Features []ContextFeature `json:"features" yaml:"features"`
}

// MapConfig is the web-map viewport derived from the placemark bounds.
type MapConfig struct {
	Center Coordinates `json:"center"`
	Zoom   int         `json:"zoom"`
	Bounds *Bounds     `json:"bounds,omitempty"`
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// DateRange spans the capture timestamps of a set of placemarks.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ExportStatistics summarizes an export.
type ExportStatistics struct {
	PlacemarkCount  int       `json:"placemark_count"`
	ClusterCount    int       `json:"cluster_count"`
	CoverageAreaKm2 float64   `json:"coverage_area_km2"`
	DateRange       DateRange `json:"date_range"`
}

// AuxiliaryExports holds the secondary serializations of an export.
type AuxiliaryExports struct {
	CSV          string    `json:"csv"`
	GeoJSON      string    `json:"geojson"`
	WebMapConfig MapConfig `json:"web_map_config"`
}

// ExportBundle is the full output of the export stage.
type ExportBundle struct {
	PrimaryDocument  string           `json:"primary_document"`
	AuxiliaryExports AuxiliaryExports `json:"auxiliary_exports"`
	Statistics       ExportStatistics `json:"statistics"`
}
