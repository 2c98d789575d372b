package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ashita-ai/fieldmark/internal/geo"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// CSVHeader is the fixed column order of the tabular export.
var CSVHeader = []string{"Name", "Latitude", "Longitude", "Altitude", "Quality", "FileSize", "Camera", "Date", "GPS_Source"}

// CSV renders one row per placemark under CSVHeader.
func CSV(placemarks []model.Placemark) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return "", fmt.Errorf("export: write csv header: %w", err)
	}
	for _, p := range placemarks {
		row := []string{
			p.Name,
			formatFloat(p.Coordinates.Lat),
			formatFloat(p.Coordinates.Lon),
			formatFloat(p.Coordinates.Alt),
			string(p.Quality),
			strconv.FormatInt(p.FileSize, 10),
			p.CameraModel,
			captureDate(p),
			string(p.GPSSource),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("export: write csv row %q: %w", p.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export: flush csv: %w", err)
	}
	return buf.String(), nil
}

type featureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   pointGeometry   `json:"geometry"`
	Properties pointProperties `json:"properties"`
}

type pointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [3]float64 `json:"coordinates"` // lon, lat, alt
}

type pointProperties struct {
	Name      string `json:"name"`
	Quality   string `json:"quality"`
	FileSize  int64  `json:"fileSize"`
	Camera    string `json:"camera"`
	Date      string `json:"date"`
	GPSSource string `json:"gpsSource"`
}

// GeoJSON renders a FeatureCollection with one 3-D Point feature per
// placemark. Properties mirror the CSV columns.
func GeoJSON(placemarks []model.Placemark) (string, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(placemarks))}
	if b, ok := geo.Bounds(placemarks); ok {
		fc.BBox = []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	}
	for _, p := range placemarks {
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			ID:   p.ID.String(),
			Geometry: pointGeometry{
				Type:        "Point",
				Coordinates: [3]float64{p.Coordinates.Lon, p.Coordinates.Lat, p.Coordinates.Alt},
			},
			Properties: pointProperties{
				Name:      p.Name,
				Quality:   string(p.Quality),
				FileSize:  p.FileSize,
				Camera:    p.CameraModel,
				Date:      captureDate(p),
				GPSSource: string(p.GPSSource),
			},
		})
	}
	out, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode geojson: %w", err)
	}
	return string(out), nil
}

func captureDate(p model.Placemark) string {
	if p.CapturedAt == nil {
		return ""
	}
	return p.CapturedAt.UTC().Format(time.RFC3339)
}
