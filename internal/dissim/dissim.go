// Package dissim is the reference place-profile dissimilarity service.
package dissim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lj-costmap/internal/mapstore"
	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// DefaultBins is the angular resolution profiles are compared at.
const DefaultBins = 180

var (
	// ErrNoTarget is returned by Localize for a request without a target.
	ErrNoTarget = errors.New("localize request has no target profile")
	// ErrNoInterface is returned by CompareAll without an interface name.
	ErrNoInterface = errors.New("compare request has no interface name")
)

var logf = monitoring.Tagged("dissim")

// Metric scores two profiles. 0 means identical; larger is less similar.
type Metric interface {
	Dissimilarity(a, b place.Profile) float64
}

// RangeRMS compares profiles as range functions of angle: both are
// resampled to Bins bins and scored by the RMS of the range differences.
type RangeRMS struct {
	Bins int
}

func (m RangeRMS) bins() int {
	if m.Bins <= 0 {
		return DefaultBins
	}
	return m.Bins
}

// Dissimilarity implements Metric. An empty profile scores MaxFloat64
// against a non-empty one so the result stays encodable.
func (m RangeRMS) Dissimilarity(a, b place.Profile) float64 {
	switch {
	case a.Empty() && b.Empty():
		return 0
	case a.Empty() || b.Empty():
		return math.MaxFloat64
	}
	n := m.bins()
	return floats.Distance(a.Resample(n), b.Resample(n), 2) / math.Sqrt(float64(n))
}

// Lister is the storage the service reads stored profiles from.
type Lister interface {
	ListDescriptors(ctx context.Context, iface string) ([]mapstore.Descriptor, error)
}

// Service answers the localize and compare-all requests.
type Service struct {
	store  Lister
	metric Metric
}

// NewService creates a service over store. A nil metric uses RangeRMS with
// DefaultBins.
func NewService(store Lister, metric Metric) *Service {
	if metric == nil {
		metric = RangeRMS{Bins: DefaultBins}
	}
	return &Service{store: store, metric: metric}
}

// Localize scores the current profile against the request's target.
func (s *Service) Localize(_ context.Context, req place.CompareRequest) (place.CompareResponse, error) {
	if req.Target == nil {
		return place.CompareResponse{}, ErrNoTarget
	}
	d := s.metric.Dissimilarity(req.Current, req.Target.Profile)
	return place.CompareResponse{Scores: []place.Score{{Vertex: req.Target.Vertex, Dissimilarity: d}}}, nil
}

// CompareAll scores the current profile against every profile stored under
// the request's interface. Stored payloads that do not decode or hold no
// samples are skipped.
func (s *Service) CompareAll(ctx context.Context, req place.CompareRequest) (place.CompareResponse, error) {
	if req.InterfaceName == "" {
		return place.CompareResponse{}, ErrNoInterface
	}
	descs, err := s.store.ListDescriptors(ctx, req.InterfaceName)
	if err != nil {
		return place.CompareResponse{}, fmt.Errorf("list %s: %w", req.InterfaceName, err)
	}
	resp := place.CompareResponse{Scores: make([]place.Score, 0, len(descs))}
	for _, d := range descs {
		var p place.Profile
		if err := json.Unmarshal(d.Payload, &p); err != nil {
			logf("skipping %s[%d]: %v", d.Interface, d.Vertex, err)
			continue
		}
		if p.Empty() {
			logf("skipping %s[%d]: empty place profile", d.Interface, d.Vertex)
			continue
		}
		resp.Scores = append(resp.Scores, place.Score{
			Vertex:        d.Vertex,
			Dissimilarity: s.metric.Dissimilarity(req.Current, p),
		})
	}
	place.SortScores(resp.Scores)
	return resp, nil
}
