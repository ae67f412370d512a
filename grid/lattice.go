package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrResolution is returned for non-positive resolutions or degenerate boxes.
	ErrResolution = errors.New("invalid grid resolution")
	// ErrGridTooLarge is returned when a grid would hold more points than
	// the configured limit. The check happens before any buffer is allocated.
	ErrGridTooLarge = errors.New("grid exceeds point limit")
	// ErrFormat is returned when a field file is malformed.
	ErrFormat = errors.New("bad field file")
)

// DefaultMaxPoints limits the number of lattice points of a grid when no
// other limit is given. At 8 bytes per sample this is 2GiB of distances.
const DefaultMaxPoints = 1 << 28

// Lattice is a regular grid of Res[0]+1 by Res[1]+1 by Res[2]+1 points
// spanning Box. Point (i,j,k) is stored at flat index (k*(Ny+1)+j)*(Nx+1)+i.
type Lattice struct {
	Res [3]int
	Box r3.Box
}

// Validate checks the lattice resolution and box.
func (l Lattice) Validate() error {
	if l.Res[0] <= 0 || l.Res[1] <= 0 || l.Res[2] <= 0 {
		return fmt.Errorf("%w: %v", ErrResolution, l.Res)
	}
	if !d3.IsFinite(l.Box.Min) || !d3.IsFinite(l.Box.Max) ||
		l.Box.Min.X >= l.Box.Max.X || l.Box.Min.Y >= l.Box.Max.Y || l.Box.Min.Z >= l.Box.Max.Z {
		return fmt.Errorf("%w: degenerate box %v", ErrResolution, l.Box)
	}
	return nil
}

// checkSize validates l and checks its point count against maxPoints.
// maxPoints <= 0 selects DefaultMaxPoints.
func (l Lattice) checkSize(maxPoints int) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	n := 1
	for _, r := range l.Res {
		if r >= maxPoints || n > maxPoints/(r+1) {
			return fmt.Errorf("%w: resolution %v over %d points", ErrGridTooLarge, l.Res, maxPoints)
		}
		n *= r + 1
	}
	return nil
}

// Resolution returns the number of cells along each axis.
func (l Lattice) Resolution() [3]int { return l.Res }

// Points returns the number of lattice points along each axis.
func (l Lattice) Points() [3]int {
	return [3]int{l.Res[0] + 1, l.Res[1] + 1, l.Res[2] + 1}
}

// Len returns the total number of lattice points.
func (l Lattice) Len() int {
	return (l.Res[0] + 1) * (l.Res[1] + 1) * (l.Res[2] + 1)
}

// Index returns the flat index of point (i,j,k).
func (l Lattice) Index(i, j, k int) int {
	return (k*(l.Res[1]+1)+j)*(l.Res[0]+1) + i
}

// Coords is the inverse of Index.
func (l Lattice) Coords(idx int) (i, j, k int) {
	nx, ny := l.Res[0]+1, l.Res[1]+1
	return idx % nx, (idx / nx) % ny, idx / (nx * ny)
}

// InBounds reports whether (i,j,k) is a lattice point.
func (l Lattice) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i <= l.Res[0] && j <= l.Res[1] && k <= l.Res[2]
}

// Position returns the world position of point (i,j,k). Points on the upper
// boundary map exactly to Box.Max.
func (l Lattice) Position(i, j, k int) r3.Vec {
	sz := r3.Sub(l.Box.Max, l.Box.Min)
	return r3.Vec{
		X: l.Box.Min.X + sz.X*float64(i)/float64(l.Res[0]),
		Y: l.Box.Min.Y + sz.Y*float64(j)/float64(l.Res[1]),
		Z: l.Box.Min.Z + sz.Z*float64(k)/float64(l.Res[2]),
	}
}

// VoxelSize returns the cell size along each axis.
func (l Lattice) VoxelSize() r3.Vec {
	return d3.DivElem(r3.Sub(l.Box.Max, l.Box.Min), r3.Vec{X: float64(l.Res[0]), Y: float64(l.Res[1]), Z: float64(l.Res[2])})
}

// Bounds returns the lattice box.
func (l Lattice) Bounds() r3.Box { return l.Box }

// Diameter returns the length of the lattice box diagonal.
func (l Lattice) Diameter() float64 {
	return d3.Box(l.Box).Diagonal()
}

// cell locates p in the lattice. It returns the lower corner of the cell
// containing p and the fractional position of p in that cell. Points outside
// the box are clamped onto it.
func (l Lattice) cell(p r3.Vec) (c [3]int, frac [3]float64) {
	p = d3.Clamp(p, l.Box.Min, l.Box.Max)
	rel := d3.DivElem(r3.Sub(p, l.Box.Min), l.VoxelSize())
	for a, x := range [3]float64{rel.X, rel.Y, rel.Z} {
		f := math.Floor(x)
		ci := int(f)
		if ci >= l.Res[a] {
			ci = l.Res[a] - 1
		}
		if ci < 0 {
			ci = 0
		}
		c[a] = ci
		frac[a] = math.Max(0, math.Min(1, x-float64(ci)))
	}
	return c, frac
}

// Nearest returns the lattice point closest to p, clamped to the lattice.
func (l Lattice) Nearest(p r3.Vec) (i, j, k int) {
	c, frac := l.cell(p)
	for a := range c {
		if frac[a] >= 0.5 {
			c[a]++
		}
	}
	return c[0], c[1], c[2]
}
