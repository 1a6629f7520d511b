// Package crossing turns a local occupancy grid into a place profile and the
// set of open passages (frontiers) leaving the place.
//
// The detector is a pure function of its inputs: the same grid and options
// always produce bit-identical descriptors.
package crossing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// Defaults for CostmapDetector.
const (
	DefaultBeams             = 360
	DefaultOccupiedThreshold = int8(50)
)

var (
	// ErrSensorOutside is returned when the sensor origin is not on the grid.
	ErrSensorOutside = errors.New("sensor is outside the grid")
	// ErrNoKnownCells is returned for a grid where every cell is unknown.
	ErrNoKnownCells = errors.New("grid has no known cells")
	// ErrDegenerate is returned when every beam has zero range.
	ErrDegenerate = errors.New("degenerate place profile")
)

// Options are the shape tolerances of one detection.
type Options struct {
	// RangeCutoff turns everything farther than this many metres into
	// free, frontier-eligible space. 0 disables the override.
	RangeCutoff float64 `json:"range_cutoff"`
	// MaxFrontierAngle bounds, in radians, both the bend allowed inside one
	// frontier and its deviation from facing the sensor.
	MaxFrontierAngle float64 `json:"max_frontier_angle"`
	// FrontierWidth is the minimum passage width in metres.
	FrontierWidth float64 `json:"frontier_width"`
}

// CostmapDetector casts beams from the sensor through the grid.
type CostmapDetector struct {
	Beams             int
	OccupiedThreshold int8
}

// NewCostmapDetector returns a detector with default beam count and
// occupancy threshold.
func NewCostmapDetector() *CostmapDetector {
	return &CostmapDetector{
		Beams:             DefaultBeams,
		OccupiedThreshold: DefaultOccupiedThreshold,
	}
}

// Detect builds the place profile and crossing of g.
func (d *CostmapDetector) Detect(g *costmap.Grid, opts Options) (place.Profile, place.Crossing, error) {
	if err := g.Validate(); err != nil {
		return place.Profile{}, place.Crossing{}, err
	}
	if !g.Contains(0, 0) {
		return place.Profile{}, place.Crossing{}, ErrSensorOutside
	}
	if g.KnownCells() == 0 {
		return place.Profile{}, place.Crossing{}, ErrNoKnownCells
	}

	profile := d.profile(g, opts.RangeCutoff)
	degenerate := true
	for _, s := range profile.Samples {
		if s.Range > 0 {
			degenerate = false
			break
		}
	}
	if degenerate {
		return place.Profile{}, place.Crossing{}, ErrDegenerate
	}

	return profile, frontiers(profile, opts), nil
}

func (d *CostmapDetector) beams() int {
	if d.Beams <= 0 {
		return DefaultBeams
	}
	return d.Beams
}

func (d *CostmapDetector) threshold() int8 {
	if d.OccupiedThreshold <= 0 {
		return DefaultOccupiedThreshold
	}
	return d.OccupiedThreshold
}

// profile casts one beam per angular step, starting at -π.
func (d *CostmapDetector) profile(g *costmap.Grid, cutoff float64) place.Profile {
	n := d.beams()
	samples := make([]place.Sample, n)
	for i := range samples {
		angle := -math.Pi + float64(i)*2*math.Pi/float64(n)
		samples[i] = d.castBeam(g, angle, cutoff)
	}
	return place.Profile{Samples: samples}
}

func (d *CostmapDetector) castBeam(g *costmap.Grid, angle, cutoff float64) place.Sample {
	limit := g.ExitDistance(0, 0, angle)
	if cutoff > 0 && cutoff < limit {
		limit = cutoff
	}

	sin, cos := math.Sincos(angle)
	step := g.Resolution / 2
	threshold := d.threshold()
	for i := 0; ; i++ {
		r := float64(i) * step
		if r >= limit {
			break
		}
		col, row, ok := g.CellAt(r*cos, r*sin)
		if !ok {
			break
		}
		switch v := g.At(col, row); {
		case v == costmap.Unknown:
			return place.Sample{Angle: angle, Range: r, Frontier: true}
		case v >= threshold:
			return place.Sample{Angle: angle, Range: r}
		}
	}
	// Grid edge or range cutoff: free space continues past the sensed range.
	return place.Sample{Angle: angle, Range: limit, Frontier: true}
}

// frontiers groups consecutive frontier samples into straight-ish segments
// and keeps the ones wide enough and facing the sensor.
func frontiers(p place.Profile, opts Options) place.Crossing {
	n := len(p.Samples)
	pts := p.Points()
	crossing := place.Crossing{Center: r2.Vec{}, Radius: radius(p)}

	start, all := firstSolid(p)
	if all {
		start = sharpestTurn(pts)
	}

	var (
		seg     []int
		refDir  float64
		haveRef bool
	)
	flush := func() {
		if f, ok := toFrontier(pts, seg, opts); ok {
			crossing.Frontiers = append(crossing.Frontiers, f)
		}
		seg = seg[:0]
		haveRef = false
	}

	for j := 0; j < n; j++ {
		idx := (start + j) % n
		if !p.Samples[idx].Frontier {
			flush()
			continue
		}
		if len(seg) == 0 {
			seg = append(seg, idx)
			continue
		}
		dir := edgeDir(pts[seg[len(seg)-1]], pts[idx])
		if !haveRef {
			refDir, haveRef = dir, true
		} else if place.AngleDiff(dir, refDir) > opts.MaxFrontierAngle {
			flush()
		}
		seg = append(seg, idx)
	}
	flush()
	return crossing
}

func toFrontier(pts []r2.Vec, seg []int, opts Options) (place.Frontier, bool) {
	if len(seg) < 2 {
		return place.Frontier{}, false
	}
	p1, p2 := pts[seg[0]], pts[seg[len(seg)-1]]
	width := r2.Norm(r2.Sub(p2, p1))
	if width <= 0 || width < opts.FrontierWidth {
		return place.Frontier{}, false
	}
	mid := place.MidAngle(p1, p2)
	facing := math.Abs(place.AngleDiff(edgeDir(p1, p2), mid) - math.Pi/2)
	if facing > opts.MaxFrontierAngle {
		return place.Frontier{}, false
	}
	return place.Frontier{P1: p1, P2: p2, Width: width, Angle: mid}, true
}

func edgeDir(a, b r2.Vec) float64 {
	d := r2.Sub(b, a)
	return math.Atan2(d.Y, d.X)
}

// firstSolid returns the index of the first non-frontier sample, or
// all=true when every sample is a frontier.
func firstSolid(p place.Profile) (int, bool) {
	for i, s := range p.Samples {
		if !s.Frontier {
			return i, false
		}
	}
	return 0, true
}

// sharpestTurn returns the polygon vertex where the boundary bends most, so
// a fully open profile is cut at a corner rather than mid-edge.
func sharpestTurn(pts []r2.Vec) int {
	n := len(pts)
	best, bestTurn := 0, -1.0
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		next := pts[(i+1)%n]
		turn := place.AngleDiff(edgeDir(prev, pts[i]), edgeDir(pts[i], next))
		if turn > bestTurn {
			best, bestTurn = i, turn
		}
	}
	return best
}

// radius is the shortest obstacle range, or the shortest range overall when
// nothing was hit.
func radius(p place.Profile) float64 {
	minSolid, minAll := math.Inf(1), math.Inf(1)
	for _, s := range p.Samples {
		minAll = math.Min(minAll, s.Range)
		if !s.Frontier {
			minSolid = math.Min(minSolid, s.Range)
		}
	}
	if !math.IsInf(minSolid, 1) {
		return minSolid
	}
	if math.IsInf(minAll, 1) {
		return 0
	}
	return minAll
}

// String describes the detector configuration for logs.
func (d *CostmapDetector) String() string {
	return fmt.Sprintf("CostmapDetector(beams=%d, occupied>=%d)", d.beams(), d.threshold())
}
