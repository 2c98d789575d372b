package geo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/fieldmark/internal/model"
)

// ErrInvalidRadius is returned for a radius that is not positive.
var ErrInvalidRadius = errors.New("geo: cluster radius must be positive")

// Cluster groups placemarks with a greedy single pass. It is not a globally
// optimal clustering.
//
// Placemarks are visited in input order. Each unassigned placemark seeds a
// cluster centered on itself and absorbs every other unassigned placemark
// within radiusMeters of the seed. The representative is the first High
// quality member, or the seed if there is none. The result partitions the
// input and is stable for a fixed input order; every cluster reports
// radiusMeters, not its members' actual extent.
//
// Cost is O(n²) in len(placemarks).
func Cluster(placemarks []model.Placemark, radiusMeters float64) ([]model.Cluster, error) {
	if !(radiusMeters > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, radiusMeters)
	}

	assigned := make([]bool, len(placemarks))
	clusters := []model.Cluster{}
	for i, seed := range placemarks {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		c := model.Cluster{
			ID:             uuid.New(),
			Center:         model.Coordinates{Lat: seed.Coordinates.Lat, Lon: seed.Coordinates.Lon},
			RadiusMeters:   radiusMeters,
			Members:        []model.Placemark{seed},
			Representative: seed,
		}
		for j := range placemarks {
			if assigned[j] {
				continue
			}
			if Haversine(seed.Coordinates, placemarks[j].Coordinates) <= radiusMeters {
				assigned[j] = true
				c.Members = append(c.Members, placemarks[j])
			}
		}
		for _, m := range c.Members {
			if m.Quality == model.QualityHigh && c.Representative.Quality != model.QualityHigh {
				c.Representative = m
			}
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}
