package mesh

import (
	"github.com/soypat/soupsdf/octree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Index builds an octree over the faces of m. Hit triangle ids returned by
// the tree are face indices of m.
func (m *Indexed) Index(cfg octree.Config) *octree.Tree {
	return octree.Build(m.Triangles(), cfg)
}

// Classify returns the cosine of the angle between p-hit.Point and the
// pseudo-normal of the feature hit lies on, where hit is the nearest point
// of m to p. Negative values place p inside the surface. Zero is returned
// when p lies on the surface or the pseudo-normal vanishes.
func (m *Indexed) Classify(p r3.Vec, hit octree.Hit) float64 {
	n := m.PseudoNormal(int(hit.Triangle), hit.Feature)
	d := r3.Sub(p, hit.Point)
	ln, ld := r3.Norm(n), r3.Norm(d)
	if ln == 0 || ld == 0 {
		return 0
	}
	return r3.Dot(n, d) / (ln * ld)
}

// Sign returns -1 if p lies inside the surface of m and +1 otherwise, given
// the nearest point hit of m to p. Points on the surface are outside.
func (m *Indexed) Sign(p r3.Vec, hit octree.Hit) float64 {
	if m.Classify(p, hit) < 0 {
		return -1
	}
	return 1
}
