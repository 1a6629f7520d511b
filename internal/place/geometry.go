package place

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// NormalizeAngle wraps a into [-π, π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff returns the smallest absolute difference between two angles.
func AngleDiff(a, b float64) float64 {
	return math.Abs(NormalizeAngle(a - b))
}

// Point returns the sample's end point relative to the sensor.
func (s Sample) Point() r2.Vec {
	sin, cos := math.Sincos(s.Angle)
	return r2.Vec{X: s.Range * cos, Y: s.Range * sin}
}

// Empty reports whether the profile has no samples.
func (p Profile) Empty() bool { return len(p.Samples) == 0 }

// Points returns the profile as a polygon. The polygon is implicitly closed:
// the last point connects back to the first.
func (p Profile) Points() []r2.Vec {
	pts := make([]r2.Vec, len(p.Samples))
	for i, s := range p.Samples {
		pts[i] = s.Point()
	}
	return pts
}

// Area returns the area enclosed by the profile polygon (shoelace formula).
func (p Profile) Area() float64 {
	pts := p.Points()
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += r2.Cross(pts[i], pts[j])
	}
	return math.Abs(sum) / 2
}

// FrontierCount counts frontier samples.
func (p Profile) FrontierCount() int {
	n := 0
	for _, s := range p.Samples {
		if s.Frontier {
			n++
		}
	}
	return n
}

// RangeAt returns the range of the sample whose angle is closest to angle.
// Samples must be sorted by angle. It returns 0 for an empty profile.
func (p Profile) RangeAt(angle float64) float64 {
	n := len(p.Samples)
	if n == 0 {
		return 0
	}
	angle = NormalizeAngle(angle)
	i := sort.Search(n, func(k int) bool { return p.Samples[k].Angle >= angle })

	// Candidates are the neighbours around the insertion point, with wrap.
	lo := p.Samples[(i-1+n)%n]
	hi := p.Samples[i%n]
	if AngleDiff(lo.Angle, angle) <= AngleDiff(hi.Angle, angle) {
		return lo.Range
	}
	return hi.Range
}

// Resample returns the profile's range in bins equal angular sectors
// starting at -π, taking the nearest sample for each sector centre.
func (p Profile) Resample(bins int) []float64 {
	out := make([]float64, bins)
	if bins <= 0 {
		return out
	}
	step := 2 * math.Pi / float64(bins)
	for i := range out {
		out[i] = p.RangeAt(-math.Pi + (float64(i)+0.5)*step)
	}
	return out
}

// MidAngle returns the direction from the sensor to the midpoint of the
// frontier segment.
func MidAngle(p1, p2 r2.Vec) float64 {
	mid := r2.Scale(0.5, r2.Add(p1, p2))
	return math.Atan2(mid.Y, mid.X)
}
