// Package soupsdf computes signed distance fields from triangle soups.
//
// A soup is an arbitrary set of triangles with no connectivity guarantees:
// holes, self intersections, duplicated and nested shells are all accepted.
// The signed field is obtained by offsetting the soup's unsigned distance by
// a small sigma, keeping only the outer shells of the offset surface and
// signing distances to that surface with angle weighted pseudo-normals.
package soupsdf

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/soupsdf/containment"
	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/octree"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrConfig is returned for invalid configurations.
	ErrConfig = errors.New("invalid configuration")
	// ErrNoGeometry is returned when the soup holds no usable triangle or
	// its offset surface is empty.
	ErrNoGeometry = octree.ErrNoGeometry
	// ErrGridTooLarge is returned when the requested grid exceeds
	// Config.MaxGridPoints.
	ErrGridTooLarge = grid.ErrGridTooLarge
	// ErrInconclusive is aggregated into Result.Warnings for shells whose
	// containment could not be decided.
	ErrInconclusive = containment.ErrInconclusive
)

// Config configures field computation.
type Config struct {
	// Res is the number of cells along each axis.
	Res [3]int
	// Sigma is the offset at which the unsigned field is contoured. It
	// closes holes and gaps of the soup smaller than about 2*Sigma.
	Sigma float64
	// SubtractSigma shifts the signed field by Sigma so its zero level
	// approximates the input geometry instead of the offset surface.
	SubtractSigma bool
	// ClosestPoint records the closest point on the input soup per sample.
	ClosestPoint bool
	// Voronoi records the id of the nearest input triangle per sample.
	Voronoi bool
	// KeepOffset returns the cleaned offset surface along with signed
	// fields. It is dropped otherwise.
	KeepOffset bool
	Octree  octree.Config
	// ExpansionRatio scales the soup bounding box to get the grid box.
	ExpansionRatio float64
	// CubicBox makes the grid box a cube about the soup center. Otherwise
	// the box is grown along the short axes so voxels are cubes.
	CubicBox bool
	// Box overrides the computed grid box when non-nil.
	Box *r3.Box
	// MaxGridPoints limits the number of lattice points. Zero selects
	// grid.DefaultMaxPoints.
	MaxGridPoints int
	// Workers bounds the goroutines of each sweep. Zero uses GOMAXPROCS.
	Workers int
	// Reach and MaxCandidates tune the sweep, see sweep.Options.
	Reach         int
	MaxCandidates int
	// ContainmentTolerance is the resolver cosine tolerance.
	ContainmentTolerance float64
	// Unsigned is a precomputed unsigned field of the soup. Its lattice
	// replaces Res, Box and the bounding box policy. It is not modified.
	Unsigned *grid.Grid
	Logger   *zap.Logger
}

// DefaultConfig returns a configuration for a 64^3 grid.
func DefaultConfig() Config {
	return Config{
		Res:                  [3]int{64, 64, 64},
		SubtractSigma:        true,
		Octree:               octree.DefaultConfig(),
		ExpansionRatio:       1.5,
		CubicBox:             true,
		ContainmentTolerance: containment.DefaultTolerance,
	}
}

// Validate checks the configuration. A zero Sigma is valid and replaced by
// one voxel diagonal when the field is computed.
func (c Config) Validate() error {
	if c.Unsigned == nil && (c.Res[0] <= 0 || c.Res[1] <= 0 || c.Res[2] <= 0) {
		return fmt.Errorf("%w: resolution %v", ErrConfig, c.Res)
	}
	if c.Sigma < 0 || math.IsNaN(c.Sigma) || math.IsInf(c.Sigma, 0) {
		return fmt.Errorf("%w: sigma %g", ErrConfig, c.Sigma)
	}
	if c.Box == nil && c.Unsigned == nil && !(c.ExpansionRatio >= 1) {
		return fmt.Errorf("%w: expansion ratio %g must be at least 1", ErrConfig, c.ExpansionRatio)
	}
	if c.ContainmentTolerance < 0 || c.ContainmentTolerance >= 1 {
		return fmt.Errorf("%w: containment tolerance %g", ErrConfig, c.ContainmentTolerance)
	}
	if c.Workers < 0 || c.Reach < 0 || c.MaxCandidates < 0 || c.MaxGridPoints < 0 {
		return fmt.Errorf("%w: negative sweep option", ErrConfig)
	}
	if c.Box != nil {
		if err := (grid.Lattice{Res: [3]int{1, 1, 1}, Box: *c.Box}).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	return nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// lattice returns the lattice fields are sampled on for a soup bounded by
// soup.
func (c Config) lattice(soup r3.Box) grid.Lattice {
	if c.Unsigned != nil {
		return c.Unsigned.Lattice()
	}
	if c.Box != nil {
		return grid.Lattice{Res: c.Res, Box: *c.Box}
	}
	return grid.Lattice{Res: c.Res, Box: GridBox(soup, c.Res, c.ExpansionRatio, c.CubicBox)}
}

// GridBox applies the bounding box policy to the bounding box of a soup.
// With cubic set the result is a cube of side ratio times the largest
// extent of soup, centered on soup. Otherwise soup is scaled by ratio about
// its center and grown along its short axes until the voxels of a grid of
// resolution res are cubes.
func GridBox(soup r3.Box, res [3]int, ratio float64, cubic bool) r3.Box {
	b := d3.Box(soup)
	center := b.Center()
	maxExtent := d3.Max(b.Size())
	if cubic {
		return r3.Box(d3.NewBox(center, d3.Elem(maxExtent*ratio)))
	}
	size := b.ScaleAboutCenter(ratio).Size()
	h := math.Max(size.X/float64(res[0]), math.Max(size.Y/float64(res[1]), size.Z/float64(res[2])))
	if h == 0 {
		h = maxExtent * ratio
	}
	return r3.Box(d3.NewBox(center, r3.Vec{
		X: h * float64(res[0]),
		Y: h * float64(res[1]),
		Z: h * float64(res[2]),
	}))
}
