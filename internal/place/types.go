// Package place defines the descriptors a localizing jockey attaches to map
// vertices: the place profile (free-space boundary around the robot) and the
// crossing (open directions leaving the place).
//
// Descriptors are values. Once built they are never mutated; copies handed
// to storage or transport share nothing with the builder.
package place

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// VertexID identifies a vertex of the topological map.
type VertexID int64

// Sample is one beam of a place profile: the free range in a given global
// direction. Frontier marks beams where free space continues past what was
// sensed (unknown cell, grid edge, or range cutoff).
type Sample struct {
	Angle    float64 `json:"angle"` // radians, [-π, π)
	Range    float64 `json:"range"` // metres
	Frontier bool    `json:"frontier,omitempty"`
}

// Profile is the place-profile descriptor: samples ordered by increasing
// angle, read as a closed polygon around the sensor.
type Profile struct {
	Samples []Sample `json:"samples"`
}

// Frontier is one open passage leaving a place.
type Frontier struct {
	P1    r2.Vec  `json:"p1"`
	P2    r2.Vec  `json:"p2"`
	Width float64 `json:"width"` // |P2-P1|, metres
	Angle float64 `json:"angle"` // direction of the passage midpoint, radians
}

// Crossing is the crossing descriptor of a place.
type Crossing struct {
	Center    r2.Vec     `json:"center"`
	Radius    float64    `json:"radius"`
	Frontiers []Frontier `json:"frontiers"`
}

// DescriptorLink records which descriptor was attached to which vertex
// under which map interface.
type DescriptorLink struct {
	Vertex        VertexID `json:"vertex"`
	InterfaceName string   `json:"interface_name"`
	DescriptorID  int64    `json:"descriptor_id"`
}

func (l DescriptorLink) String() string {
	return fmt.Sprintf("%s[%d]#%d", l.InterfaceName, l.Vertex, l.DescriptorID)
}

// Score is the dissimilarity between the current place and one vertex.
// Lower is more similar.
type Score struct {
	Vertex        VertexID `json:"vertex"`
	Dissimilarity float64  `json:"dissimilarity"`
}

// VertexProfile pairs a stored profile with the vertex it belongs to.
type VertexProfile struct {
	Vertex  VertexID `json:"vertex"`
	Profile Profile  `json:"profile"`
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	return Profile{Samples: append([]Sample(nil), p.Samples...)}
}

// Clone returns a deep copy of the crossing.
func (c Crossing) Clone() Crossing {
	out := c
	out.Frontiers = append([]Frontier(nil), c.Frontiers...)
	return out
}
