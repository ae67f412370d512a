// Package containment removes the connected components of a closed surface
// that lie inside another of its components.
package containment

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/octree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInconclusive marks a component whose inside/outside test fell within
// the resolver tolerance. Such components are kept.
var ErrInconclusive = errors.New("inconclusive containment test")

// DefaultTolerance is the cosine below which a containment test is
// considered inconclusive.
const DefaultTolerance = 1e-3

// Resolver classifies components of a surface as boundary shells or
// interior shells.
type Resolver struct {
	// Tolerance is the absolute cosine between the representative point
	// offset and the pseudo-normal below which a test is inconclusive.
	Tolerance float64
	// Octree configures the per-component nearest point index.
	Octree octree.Config
	Logger *zap.Logger
}

// Result is the outcome of Resolve.
type Result struct {
	// Mesh holds the faces of the kept components.
	Mesh *mesh.Indexed
	// Kept and Removed list component indices in the order returned by
	// mesh.Indexed.Components of the input.
	Kept, Removed []int
	// Warnings aggregates an ErrInconclusive error per kept component whose
	// test was inconclusive. Nil if every test was conclusive.
	Warnings error
}

// component is the lazily built state of one connected component.
type component struct {
	faces []int
	box   d3.Box
	sub   *mesh.Indexed
	tree  *octree.Tree
}

// Resolve partitions m into edge connected components and removes every
// component lying inside another one. Only pairs whose bounding boxes nest
// are tested: a representative point of the inner component, the centroid of
// its first face, is classified against the outer component with the
// pseudo-normal at its nearest point. A negative result removes the inner
// component. Resolving a result again removes nothing.
func (r Resolver) Resolve(m *mesh.Indexed) (Result, error) {
	if m == nil {
		return Result{}, errors.New("nil mesh")
	}
	tol := r.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	faces := m.Components()
	comps := make([]component, len(faces))
	for c := range comps {
		comps[c] = component{faces: faces[c], box: m.FaceBounds(faces[c])}
	}

	var res Result
	tests := 0
	for a := range comps {
		rep, ok := representative(m, comps[a].faces)
		if !ok {
			res.Kept = append(res.Kept, a)
			continue // Only degenerate faces, nothing to classify.
		}
		interior := false
		var inconclusive []float64
		for b := range comps {
			if a == b || !nests(comps[a].box, comps[b].box, a, b) {
				continue
			}
			tests++
			outer := r.prepare(m, &comps[b])
			hit, ok := outer.tree.Nearest(rep)
			if !ok {
				continue
			}
			cos := outer.sub.Classify(rep, hit)
			if math.Abs(cos) < tol {
				inconclusive = append(inconclusive, cos)
				continue
			}
			if cos < 0 {
				interior = true
				break
			}
		}
		if interior {
			res.Removed = append(res.Removed, a)
			continue
		}
		res.Kept = append(res.Kept, a)
		for _, cos := range inconclusive {
			log.Warn("inconclusive containment test, keeping component",
				zap.Int("component", a), zap.Float64("cos", cos))
			res.Warnings = multierr.Append(res.Warnings,
				fmt.Errorf("component %d: %w (cosine %g)", a, ErrInconclusive, cos))
		}
	}

	var kept []int
	for _, c := range res.Kept {
		kept = append(kept, comps[c].faces...)
	}
	slices.Sort(kept)
	res.Mesh = m.Submesh(kept)
	log.Debug("containment resolved",
		zap.Int("components", len(comps)),
		zap.Int("tests", tests),
		zap.Int("removed", len(res.Removed)),
	)
	return res, nil
}

// nests reports whether component a with box ba is a containment candidate
// of component b with box bb. Identical boxes nest only the later component
// inside the earlier one.
func nests(ba, bb d3.Box, a, b int) bool {
	if !bb.ContainsBox(ba) {
		return false
	}
	if ba.Equals(bb, 0) {
		return a > b
	}
	return true
}

// prepare builds the submesh and octree of c on first use.
func (r Resolver) prepare(m *mesh.Indexed, c *component) *component {
	if c.tree == nil {
		c.sub = m.Submesh(c.faces)
		c.tree = c.sub.Index(r.Octree)
	}
	return c
}

// representative returns the centroid of the first non-degenerate face.
func representative(m *mesh.Indexed, faces []int) (p r3.Vec, ok bool) {
	for _, f := range faces {
		tri := m.Triangle(f)
		if tri.Area() > 0 {
			return tri.Centroid(), true
		}
	}
	return p, false
}
