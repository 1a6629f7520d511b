package place

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// circle builds a profile of n samples at constant range r.
func circle(n int, r float64) Profile {
	p := Profile{Samples: make([]Sample, n)}
	for i := range p.Samples {
		p.Samples[i] = Sample{Angle: -math.Pi + float64(i)*2*math.Pi/float64(n), Range: r}
	}
	return p
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, -math.Pi},
		{-math.Pi, -math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeAngle(tt.in), 1e-12, "NormalizeAngle(%v)", tt.in)
	}
	assert.InDelta(t, 0.2, AngleDiff(math.Pi-0.1, -math.Pi+0.1), 1e-12)
}

func TestProfile_AreaApproachesCircle(t *testing.T) {
	p := circle(720, 2)
	assert.InDelta(t, math.Pi*4, p.Area(), 0.01)
	assert.Zero(t, Profile{}.Area())
}

func TestProfile_RangeAtWraps(t *testing.T) {
	p := Profile{Samples: []Sample{
		{Angle: -math.Pi, Range: 1},
		{Angle: -math.Pi / 2, Range: 2},
		{Angle: 0, Range: 3},
		{Angle: math.Pi / 2, Range: 4},
	}}
	assert.Equal(t, 3.0, p.RangeAt(0.1))
	assert.Equal(t, 4.0, p.RangeAt(math.Pi/2+0.3))
	// Just below +π is closest to the -π sample.
	assert.Equal(t, 1.0, p.RangeAt(math.Pi-0.01))
	assert.Equal(t, 0.0, Profile{}.RangeAt(1))
}

func TestProfile_Resample(t *testing.T) {
	p := circle(360, 1.5)
	bins := p.Resample(12)
	require.Len(t, bins, 12)
	for i, r := range bins {
		assert.Equal(t, 1.5, r, "bin %d", i)
	}
	assert.Empty(t, p.Resample(0))
}

func TestProfile_CloneIsIndependent(t *testing.T) {
	p := circle(4, 1)
	c := p.Clone()
	c.Samples[0].Range = 99
	assert.Equal(t, 1.0, p.Samples[0].Range)

	x := Crossing{Frontiers: []Frontier{{Width: 1}}}
	y := x.Clone()
	y.Frontiers[0].Width = 5
	assert.Equal(t, 1.0, x.Frontiers[0].Width)
}

func TestMidAngle(t *testing.T) {
	assert.InDelta(t, math.Pi/2, MidAngle(r2.Vec{X: -1, Y: 2}, r2.Vec{X: 1, Y: 2}), 1e-12)
}

func TestDescriptorJSON(t *testing.T) {
	c := Crossing{
		Center:    r2.Vec{},
		Radius:    1.2,
		Frontiers: []Frontier{{P1: r2.Vec{X: 1, Y: -1}, P2: r2.Vec{X: 1, Y: 1}, Width: 2, Angle: 0}},
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var got Crossing
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, c, got)

	link := DescriptorLink{Vertex: 4, InterfaceName: "lj_costmap_crossing", DescriptorID: 9}
	assert.Equal(t, "lj_costmap_crossing[4]#9", link.String())
}
