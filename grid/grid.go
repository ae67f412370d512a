package grid

import (
	"fmt"
	"math"

	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is the result of a distance query at one lattice point.
type Sample struct {
	Dist    float64
	Closest r3.Vec
	// Feature is the id of the nearest input triangle, or -1.
	Feature int32
}

// Options controls which buffers a Grid carries.
type Options struct {
	// ClosestPoint allocates a closest point buffer alongside the distances.
	ClosestPoint bool
	// Feature allocates a nearest triangle id buffer (Voronoi variant).
	Feature bool
	// MaxPoints limits the lattice size. Zero selects DefaultMaxPoints.
	MaxPoints int
}

// Grid is a dense distance field sampled at every lattice point. Samples not
// yet written hold +Inf.
type Grid struct {
	lat     Lattice
	dist    []float64
	closest []r3.Vec
	feature []int32
}

// New allocates a grid over l. The lattice is validated and its size checked
// against opts.MaxPoints before any allocation.
func New(l Lattice, opts Options) (*Grid, error) {
	if err := l.checkSize(opts.MaxPoints); err != nil {
		return nil, err
	}
	n := l.Len()
	g := &Grid{lat: l, dist: make([]float64, n)}
	for i := range g.dist {
		g.dist[i] = math.Inf(1)
	}
	if opts.ClosestPoint {
		g.closest = make([]r3.Vec, n)
	}
	if opts.Feature {
		g.feature = make([]int32, n)
		for i := range g.feature {
			g.feature[i] = -1
		}
	}
	return g, nil
}

// Lattice returns the lattice the grid is sampled on.
func (g *Grid) Lattice() Lattice { return g.lat }

// Resolution returns the number of cells along each axis.
func (g *Grid) Resolution() [3]int { return g.lat.Res }

// Position returns the world position of point (i,j,k).
func (g *Grid) Position(i, j, k int) r3.Vec { return g.lat.Position(i, j, k) }

// Bounds returns the grid box.
func (g *Grid) Bounds() r3.Box { return g.lat.Box }

// Diameter returns the length of the grid box diagonal.
func (g *Grid) Diameter() float64 { return g.lat.Diameter() }

// VoxelSize returns the cell size along each axis.
func (g *Grid) VoxelSize() r3.Vec { return g.lat.VoxelSize() }

// Data returns the distance buffer in flat index order. It is not a copy.
func (g *Grid) Data() []float64 { return g.dist }

// At returns the sample at point (i,j,k).
func (g *Grid) At(i, j, k int) float64 { return g.dist[g.lat.Index(i, j, k)] }

// Value is an alias of At so a Grid can be used as a render.Field.
func (g *Grid) Value(i, j, k int) float64 { return g.At(i, j, k) }

// Set writes the sample at point (i,j,k).
func (g *Grid) Set(i, j, k int, v float64) { g.dist[g.lat.Index(i, j, k)] = v }

// HasClosestPoint reports whether the grid carries closest points.
func (g *Grid) HasClosestPoint() bool { return g.closest != nil }

// HasFeature reports whether the grid carries nearest triangle ids.
func (g *Grid) HasFeature() bool { return g.feature != nil }

// ClosestPoint returns the closest surface point recorded for (i,j,k).
// ok is false if the grid carries no closest points.
func (g *Grid) ClosestPoint(i, j, k int) (p r3.Vec, ok bool) {
	if g.closest == nil {
		return r3.Vec{}, false
	}
	return g.closest[g.lat.Index(i, j, k)], true
}

// FeatureID returns the nearest triangle id recorded for (i,j,k), or -1.
func (g *Grid) FeatureID(i, j, k int) int32 {
	if g.feature == nil {
		return -1
	}
	return g.feature[g.lat.Index(i, j, k)]
}

// Store writes a full sample at flat index idx. Buffers the grid does not
// carry are ignored.
func (g *Grid) Store(idx int, s Sample) {
	g.dist[idx] = s.Dist
	if g.closest != nil {
		g.closest[idx] = s.Closest
	}
	if g.feature != nil {
		g.feature[idx] = s.Feature
	}
}

// Offset adds delta to every finite sample.
func (g *Grid) Offset(delta float64) {
	for i, v := range g.dist {
		if !math.IsInf(v, 0) {
			g.dist[i] = v + delta
		}
	}
}

// NearestSample returns the sample at the lattice point closest to p.
func (g *Grid) NearestSample(p r3.Vec) float64 {
	return g.At(g.lat.Nearest(p))
}

// Distance returns the trilinear interpolation of the samples around p.
// Points outside the grid are clamped onto its box. If a corner with non-zero
// weight is infinite that value is returned.
func (g *Grid) Distance(p r3.Vec) float64 {
	c, f := g.lat.cell(p)
	var d float64
	for corner := 0; corner < 8; corner++ {
		w := cornerWeight(corner, f)
		if w == 0 {
			continue
		}
		v := g.At(c[0]+corner&1, c[1]+corner>>1&1, c[2]+corner>>2&1)
		if math.IsInf(v, 0) {
			return v
		}
		d += w * v
	}
	return d
}

// Gradient returns the gradient of the trilinear interpolant in the cell
// containing p. Cells with infinite corners have zero gradient.
func (g *Grid) Gradient(p r3.Vec) r3.Vec {
	c, f := g.lat.cell(p)
	var v [8]float64
	for corner := range v {
		v[corner] = g.At(c[0]+corner&1, c[1]+corner>>1&1, c[2]+corner>>2&1)
		if math.IsInf(v[corner], 0) {
			return r3.Vec{}
		}
	}
	var grad [3]float64
	for axis := 0; axis < 3; axis++ {
		bit := 1 << axis
		for corner := 0; corner < 8; corner++ {
			if corner&bit != 0 {
				continue
			}
			// Weight of the edge along axis in the other two directions.
			w := 1.0
			for other := 0; other < 3; other++ {
				if other == axis {
					continue
				}
				if corner&(1<<other) != 0 {
					w *= f[other]
				} else {
					w *= 1 - f[other]
				}
			}
			grad[axis] += w * (v[corner|bit] - v[corner])
		}
	}
	h := g.lat.VoxelSize()
	return r3.Vec{X: grad[0] / h.X, Y: grad[1] / h.Y, Z: grad[2] / h.Z}
}

// ClosestPointAt interpolates the closest point buffer at p. ok is false if
// the grid carries no closest points.
func (g *Grid) ClosestPointAt(p r3.Vec) (cp r3.Vec, ok bool) {
	if g.closest == nil {
		return r3.Vec{}, false
	}
	c, f := g.lat.cell(p)
	for corner := 0; corner < 8; corner++ {
		w := cornerWeight(corner, f)
		if w == 0 {
			continue
		}
		q := g.closest[g.lat.Index(c[0]+corner&1, c[1]+corner>>1&1, c[2]+corner>>2&1)]
		cp = r3.Add(cp, r3.Scale(w, q))
	}
	return cp, true
}

// SanityCheck reports NaN samples and buffers whose length does not match
// the lattice.
func (g *Grid) SanityCheck() error {
	n := g.lat.Len()
	if len(g.dist) != n {
		return fmt.Errorf("distance buffer length %d, want %d", len(g.dist), n)
	}
	if g.closest != nil && len(g.closest) != n {
		return fmt.Errorf("closest point buffer length %d, want %d", len(g.closest), n)
	}
	if g.feature != nil && len(g.feature) != n {
		return fmt.Errorf("feature buffer length %d, want %d", len(g.feature), n)
	}
	for idx, v := range g.dist {
		if math.IsNaN(v) {
			i, j, k := g.lat.Coords(idx)
			return fmt.Errorf("NaN sample at (%d,%d,%d)", i, j, k)
		}
	}
	for idx, p := range g.closest {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			i, j, k := g.lat.Coords(idx)
			return fmt.Errorf("NaN closest point at (%d,%d,%d)", i, j, k)
		}
	}
	return nil
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{lat: g.lat, dist: append([]float64(nil), g.dist...)}
	if g.closest != nil {
		c.closest = append([]r3.Vec(nil), g.closest...)
	}
	if g.feature != nil {
		c.feature = append([]int32(nil), g.feature...)
	}
	return c
}

func cornerWeight(corner int, f [3]float64) float64 {
	w := 1.0
	for a := 0; a < 3; a++ {
		if corner&(1<<a) != 0 {
			w *= f[a]
		} else {
			w *= 1 - f[a]
		}
	}
	return w
}

// contains reports whether p lies in the closed grid box.
func (g *Grid) contains(p r3.Vec) bool {
	return d3.Box(g.lat.Box).Contains(p)
}
