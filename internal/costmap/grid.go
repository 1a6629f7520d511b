// Package costmap owns the local occupancy grid delivered by the sensor feed.
//
// A Grid is positioned relative to the sensor but oriented in the global
// frame: the sensor always sits at (0,0) in grid-frame coordinates and Origin
// locates the corner of cell (0,0) in that frame.
package costmap

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Cell values follow the usual occupancy-grid convention.
const (
	// Unknown marks a cell that has never been observed.
	Unknown int8 = -1
	// Free is a cell observed to be empty.
	Free int8 = 0
	// Lethal is a cell observed to be fully occupied.
	Lethal int8 = 100
)

// Pose is a planar pose. Theta is in radians.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Grid is one occupancy-grid snapshot. Data is row-major with row 0 at the
// origin; each value is Unknown or an occupancy percentage in [0, 100].
//
// A Grid handed to a SnapshotStore is treated as immutable.
type Grid struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Resolution float64   `json:"resolution"` // metres per cell
	Origin     Pose      `json:"origin"`
	Data       []int8    `json:"data"`
	Stamp      time.Time `json:"stamp"`
	FrameID    string    `json:"frame_id,omitempty"`
}

var (
	// ErrEmptyGrid is returned for a grid with no cells.
	ErrEmptyGrid = errors.New("grid has no cells")
	// ErrBadResolution is returned for a non-positive or non-finite resolution.
	ErrBadResolution = errors.New("grid resolution must be positive")
	// ErrSizeMismatch is returned when len(Data) != Width*Height.
	ErrSizeMismatch = errors.New("grid data length does not match dimensions")
	// ErrBadOrigin is returned when an origin component is NaN or infinite.
	ErrBadOrigin = errors.New("grid origin must be finite")
)

// NewGrid allocates a width×height grid filled with fill.
func NewGrid(width, height int, resolution float64, origin Pose, fill int8) *Grid {
	data := make([]int8, width*height)
	for i := range data {
		data[i] = fill
	}
	return &Grid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Origin:     origin,
		Data:       data,
	}
}

// Centered allocates a grid whose centre coincides with the sensor.
func Centered(width, height int, resolution float64, fill int8) *Grid {
	origin := Pose{
		X: -float64(width) * resolution / 2,
		Y: -float64(height) * resolution / 2,
	}
	return NewGrid(width, height, resolution, origin, fill)
}

// Validate checks the structural consistency of the grid.
func (g *Grid) Validate() error {
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return ErrEmptyGrid
	}
	if g.Resolution <= 0 || math.IsNaN(g.Resolution) || math.IsInf(g.Resolution, 0) {
		return ErrBadResolution
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrSizeMismatch, len(g.Data), g.Width, g.Height)
	}
	if !finite(g.Origin.X) || !finite(g.Origin.Y) || !finite(g.Origin.Theta) {
		return fmt.Errorf("%w: %+v", ErrBadOrigin, g.Origin)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Index returns the flat index of cell (col,row).
func (g *Grid) Index(col, row int) int {
	return row*g.Width + col
}

// At returns the value of cell (col,row). The caller checks bounds.
func (g *Grid) At(col, row int) int8 {
	return g.Data[g.Index(col, row)]
}

// Set writes the value of cell (col,row). Only for building grids before
// they are submitted.
func (g *Grid) Set(col, row int, v int8) {
	g.Data[g.Index(col, row)] = v
}

// toLocal rotates a grid-frame point into the grid's own axes, relative to
// its origin corner.
func (g *Grid) toLocal(x, y float64) (float64, float64) {
	dx, dy := x-g.Origin.X, y-g.Origin.Y
	if g.Origin.Theta == 0 {
		return dx, dy
	}
	s, c := math.Sincos(-g.Origin.Theta)
	return c*dx - s*dy, s*dx + c*dy
}

// CellAt maps a grid-frame point to cell coordinates. ok is false when the
// point lies outside the grid.
func (g *Grid) CellAt(x, y float64) (col, row int, ok bool) {
	lx, ly := g.toLocal(x, y)
	fc := math.Floor(lx / g.Resolution)
	fr := math.Floor(ly / g.Resolution)
	// Written so that NaN coordinates fall outside.
	if !(fc >= 0 && fr >= 0 && fc < float64(g.Width) && fr < float64(g.Height)) {
		return 0, 0, false
	}
	return int(fc), int(fr), true
}

// Contains reports whether the grid-frame point lies inside the grid.
func (g *Grid) Contains(x, y float64) bool {
	_, _, ok := g.CellAt(x, y)
	return ok
}

// ExitDistance returns the distance along the ray from (x,y) with heading
// angle at which the ray leaves the grid rectangle. The start point must be
// inside the grid.
func (g *Grid) ExitDistance(x, y, angle float64) float64 {
	lx, ly := g.toLocal(x, y)
	a := angle - g.Origin.Theta
	dx, dy := math.Cos(a), math.Sin(a)
	w := float64(g.Width) * g.Resolution
	h := float64(g.Height) * g.Resolution

	t := math.Inf(1)
	if dx > 0 {
		t = math.Min(t, (w-lx)/dx)
	} else if dx < 0 {
		t = math.Min(t, -lx/dx)
	}
	if dy > 0 {
		t = math.Min(t, (h-ly)/dy)
	} else if dy < 0 {
		t = math.Min(t, -ly/dy)
	}
	return t
}

// KnownCells counts cells that are not Unknown.
func (g *Grid) KnownCells() int {
	n := 0
	for _, v := range g.Data {
		if v != Unknown {
			n++
		}
	}
	return n
}
