package export

import (
	"math"

	"github.com/ashita-ai/fieldmark/internal/geo"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// kmPerDegree approximates one degree of latitude (and of longitude at the
// equator) in kilometers.
const kmPerDegree = 111.0

// emptyZoom is the world view used when there is nothing to frame.
const emptyZoom = 2

// MapConfigFor centers the viewport on the bounding-box midpoint and picks a
// zoom from the larger of the lat/lon spans.
func MapConfigFor(placemarks []model.Placemark) model.MapConfig {
	b, ok := geo.Bounds(placemarks)
	if !ok {
		return model.MapConfig{Zoom: emptyZoom}
	}
	return model.MapConfig{
		Center: model.Coordinates{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2},
		Zoom:   ZoomForSpan(math.Max(b.MaxLat-b.MinLat, b.MaxLon-b.MinLon)),
		Bounds: &b,
	}
}

// ZoomForSpan maps a span in degrees to a web-map zoom level.
func ZoomForSpan(span float64) int {
	switch {
	case span > 10:
		return 5
	case span > 1:
		return 10
	case span > 0.1:
		return 13
	default:
		return 16
	}
}

// Statistics summarizes an export. Coverage is the bounding box area,
// latSpan × lonSpan × 111² × cos(meanLat), with meanLat the arithmetic mean
// of placemark latitudes.
func Statistics(placemarks []model.Placemark, clusters []model.Cluster) model.ExportStatistics {
	st := model.ExportStatistics{PlacemarkCount: len(placemarks), ClusterCount: len(clusters)}
	b, ok := geo.Bounds(placemarks)
	if !ok {
		return st
	}

	var sumLat float64
	for _, p := range placemarks {
		sumLat += p.Coordinates.Lat
		if p.CapturedAt == nil {
			continue
		}
		t := *p.CapturedAt
		if st.DateRange.Start == nil || t.Before(*st.DateRange.Start) {
			st.DateRange.Start = &t
		}
		if st.DateRange.End == nil || t.After(*st.DateRange.End) {
			st.DateRange.End = &t
		}
	}
	meanLat := sumLat / float64(len(placemarks))
	st.CoverageAreaKm2 = (b.MaxLat - b.MinLat) * (b.MaxLon - b.MinLon) *
		kmPerDegree * kmPerDegree * math.Cos(meanLat*math.Pi/180)
	return st
}
