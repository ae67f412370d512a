package grid

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

type sdf3 struct {
	g *Grid
}

// SDF3 exposes a signed grid as an sdfx solid so it can be combined with sdfx
// primitives or meshed by sdfx renderers. Outside the grid box the distance
// to the box is added to the interpolated boundary value.
func SDF3(g *Grid) sdf.SDF3 {
	return sdf3{g: g}
}

func (s sdf3) Evaluate(p v3.Vec) float64 {
	q := r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	d := s.g.Distance(q)
	if s.g.contains(q) {
		return d
	}
	clamped := d3.Clamp(q, s.g.lat.Box.Min, s.g.lat.Box.Max)
	return d + r3.Norm(r3.Sub(q, clamped))
}

func (s sdf3) BoundingBox() sdf.Box3 {
	b := s.g.lat.Box
	return sdf.Box3{
		Min: v3.Vec{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		Max: v3.Vec{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
