package render

import (
	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams triangles of a surface. ReadTriangles returns io.EOF once
// every triangle has been read.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle defined by its vertices.
type Triangle3 [3]r3.Vec

// Normal returns the unit normal of the triangle following the right hand rule.
func (t Triangle3) Normal() r3.Vec {
	return d3.Triangle(t).Normal()
}

// Degenerate returns true if two of the triangle's vertices are within tol
// of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return d3.EqualWithin(t[0], t[1], tol) ||
		d3.EqualWithin(t[1], t[2], tol) ||
		d3.EqualWithin(t[2], t[0], tol)
}

// Area returns the area of the triangle.
func (t Triangle3) Area() float64 {
	return d3.Triangle(t).Area()
}

// Bounds returns the bounding box of the triangle.
func (t Triangle3) Bounds() r3.Box {
	return r3.Box(d3.Triangle(t).Bounds())
}

// Bounds returns the bounding box of a set of triangles. An empty set returns
// the zero box.
func Bounds(model []Triangle3) r3.Box {
	if len(model) == 0 {
		return r3.Box{}
	}
	bb := d3.EmptyBox()
	for _, t := range model {
		bb = bb.Extend(d3.Triangle(t).Bounds())
	}
	return r3.Box(bb)
}
