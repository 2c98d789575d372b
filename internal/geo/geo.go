// Package geo turns processed assets into placemarks and groups them into
// fixed-radius clusters.
package geo

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance between a and b in meters.
// Altitude is ignored.
func Haversine(a, b model.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(1, h)))
}

// StyleKey is the placemark style for a quality grade.
func StyleKey(g model.QualityGrade) string {
	return "quality-" + strings.ToLower(string(g))
}

// BuildPlacemarks creates one placemark per geotagged asset, in input order.
// Assets without GPS are skipped.
func BuildPlacemarks(assets []model.ProcessedAsset) []model.Placemark {
	out := make([]model.Placemark, 0, len(assets))
	for _, a := range assets {
		gps := a.Metadata.GPS
		if !gps.Present {
			continue
		}
		out = append(out, model.Placemark{
			ID:          uuid.New(),
			Name:        a.Asset.FileName,
			Coordinates: model.Coordinates{Lat: gps.Latitude, Lon: gps.Longitude, Alt: gps.Altitude},
			MetadataRef: a.Asset.ID,
			StyleKey:    StyleKey(a.Metadata.Quality.Grade),
			Quality:     a.Metadata.Quality.Grade,
			FileSize:    a.Asset.FileSizeBytes,
			CameraModel: a.Metadata.Camera.Model,
			CapturedAt:  a.Metadata.Camera.CapturedAt,
			GPSAccuracy: gps.Accuracy,
			GPSSource:   gps.Source,
			ContentHash: a.ContentHash,
			SourcePath:  a.Asset.Path,
			Thumbnail:   a.Thumbnail,
		})
	}
	return out
}

// Bounds returns the bounding box of the placemarks, or false when there
// are none.
func Bounds(placemarks []model.Placemark) (model.Bounds, bool) {
	if len(placemarks) == 0 {
		return model.Bounds{}, false
	}
	mp := make(orb.MultiPoint, len(placemarks))
	for i, p := range placemarks {
		mp[i] = orb.Point{p.Coordinates.Lon, p.Coordinates.Lat}
	}
	b := mp.Bound()
	return model.Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}, true
}
