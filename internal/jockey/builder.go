package jockey

import (
	"errors"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/crossing"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// BuildParams are the detector tolerances taken from configuration.
type BuildParams = crossing.Options

// CrossingDetector computes a place profile and a crossing from a grid.
// Implementations must be deterministic.
type CrossingDetector interface {
	Detect(g *costmap.Grid, opts crossing.Options) (place.Profile, place.Crossing, error)
}

// DescriptorBuilder wraps a CrossingDetector and classifies its failures.
type DescriptorBuilder struct {
	detector CrossingDetector
}

// NewDescriptorBuilder returns a builder using d, or the default costmap
// detector when d is nil.
func NewDescriptorBuilder(d CrossingDetector) *DescriptorBuilder {
	if d == nil {
		d = crossing.NewCostmapDetector()
	}
	return &DescriptorBuilder{detector: d}
}

// Build computes both descriptors of g. Any failure is reported as a
// DescriptorBuildError.
func (b *DescriptorBuilder) Build(g *costmap.Grid, params BuildParams) (place.Profile, place.Crossing, error) {
	if g == nil {
		return place.Profile{}, place.Crossing{}, newError(DescriptorBuildError, errors.New("nil grid"), "no grid to build from")
	}
	profile, cr, err := b.detector.Detect(g, params)
	if err != nil {
		return place.Profile{}, place.Crossing{}, newError(DescriptorBuildError, err, "building descriptors")
	}
	if profile.Empty() {
		return place.Profile{}, place.Crossing{}, newError(DescriptorBuildError, nil, "detector returned an empty profile")
	}
	return profile, cr, nil
}
