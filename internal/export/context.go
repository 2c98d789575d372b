package export

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// LoadContextLayers reads a GeoJSON FeatureCollection of Point, Polygon and
// MultiPolygon features into a context layer of the given type. Feature
// names and descriptions come from the "name" and "description"
// properties. Other geometry types are skipped.
func LoadContextLayers(r io.Reader, layerType string) (model.ContextLayer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.ContextLayer{}, fmt.Errorf("export: read context layer: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return model.ContextLayer{}, fmt.Errorf("export: decode context layer: %w", err)
	}

	layer := model.ContextLayer{Type: layerType, Name: layerType}
	for i, f := range fc.Features {
		name := f.Properties.MustString("name", fmt.Sprintf("%s %d", layerType, i+1))
		desc := f.Properties.MustString("description", "")
		switch g := f.Geometry.(type) {
		case orb.Point:
			pt := pointCoordinates(g)
			layer.Features = append(layer.Features, model.ContextFeature{Name: name, Description: desc, Point: &pt})
		case orb.Polygon:
			layer.Features = append(layer.Features, model.ContextFeature{Name: name, Description: desc, Polygon: polygonCoordinates(g)})
		case orb.MultiPolygon:
			for _, poly := range g {
				layer.Features = append(layer.Features, model.ContextFeature{Name: name, Description: desc, Polygon: polygonCoordinates(poly)})
			}
		}
	}
	return layer, nil
}

func pointCoordinates(p orb.Point) model.Coordinates {
	return model.Coordinates{Lat: p.Lat(), Lon: p.Lon()}
}

func polygonCoordinates(poly orb.Polygon) [][]model.Coordinates {
	out := make([][]model.Coordinates, len(poly))
	for i, ring := range poly {
		cs := make([]model.Coordinates, len(ring))
		for j, p := range ring {
			cs[j] = pointCoordinates(p)
		}
		out[i] = cs
	}
	return out
}
