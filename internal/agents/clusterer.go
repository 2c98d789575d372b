package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/geo"
	"github.com/ashita-ai/fieldmark/internal/model"
)

// ClusterParams are the geo_clusterer inputs.
type ClusterParams struct {
	Placemarks []model.Placemark `json:"placemarks"`
	// RadiusMeters of 0 means the configured default.
	RadiusMeters float64 `json:"radius_meters"`
}

func (p ClusterParams) Validate() error {
	if p.RadiusMeters < 0 {
		return fmt.Errorf("radius_meters must not be negative")
	}
	return nil
}

// GeoClusterer groups placemarks by greedy haversine clustering. It passes
// the placemarks through so a sibling task's output cannot drop them.
type GeoClusterer struct {
	deps   Deps
	logger *slog.Logger
}

func (*GeoClusterer) Name() string { return NameGeoClusterer }

func (*GeoClusterer) Purpose() string {
	return "Group nearby placemarks into clusters within a radius"
}

func (g *GeoClusterer) Execute(_ context.Context, params capability.Params) capability.Result {
	var p ClusterParams
	if err := capability.Decode(params, &p); err != nil {
		return capability.Failure("invalid geo_clusterer params", err)
	}
	radius := p.RadiusMeters
	if radius == 0 {
		radius = g.deps.ClusterRadiusMeters
	}
	placemarks := p.Placemarks
	if placemarks == nil {
		placemarks = []model.Placemark{}
	}

	clusters, err := geo.Cluster(placemarks, radius)
	if err != nil {
		return capability.Failure("clustering failed", err)
	}
	g.logger.Debug("placemarks clustered", "placemarks", len(placemarks), "clusters", len(clusters), "radius_m", radius)

	return capability.OK(
		fmt.Sprintf("grouped %s into %s (radius %g m)",
			plural(len(placemarks), "placemark"), plural(len(clusters), "cluster"), radius),
		map[string]any{
			"clusters":   clusters,
			"placemarks": placemarks,
		})
}
