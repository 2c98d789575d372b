package model

import (
	"time"

	"github.com/google/uuid"
)

// Coordinates is a WGS84 position. Altitude is meters above sea level.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Placemark is a geolocated point representing one geotagged image asset.
// The summary fields are denormalized from the asset's metadata so that
// clustering and export do not need the full metadata record.
type Placemark struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Coordinates Coordinates  `json:"coordinates"`
	MetadataRef uuid.UUID    `json:"metadata_ref"`
	StyleKey    string       `json:"style_key"`
	Quality     QualityGrade `json:"quality"`
	FileSize    int64        `json:"file_size"`
	CameraModel string       `json:"camera_model,omitempty"`
	CapturedAt  *time.Time   `json:"captured_at,omitempty"`
	GPSAccuracy float64      `json:"gps_accuracy"`
	GPSSource   GPSSource    `json:"gps_source,omitempty"`
	ContentHash string       `json:"content_hash,omitempty"`
	SourcePath  string       `json:"source_path,omitempty"`
	Thumbnail   []byte       `json:"thumbnail,omitempty"`
}

// Cluster groups placemarks within RadiusMeters of a seed point.
// RadiusMeters is the configured radius, not the members' actual extent.
type Cluster struct {
	ID             uuid.UUID   `json:"id"`
	Center         Coordinates `json:"center"`
	RadiusMeters   float64     `json:"radius_meters"`
	Members        []Placemark `json:"members"`
	Representative Placemark   `json:"representative"`
}
