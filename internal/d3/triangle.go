package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a triangle defined by its three vertices.
type Triangle [3]r3.Vec

// Feature identifies the part of a triangle a closest point lies on.
type Feature uint8

const (
	FeatureV0 Feature = iota
	FeatureV1
	FeatureV2
	// FeatureE0 is the edge joining vertex 0 and 1. E1 joins 1 and 2 and E2 joins 2 and 0.
	FeatureE0
	FeatureE1
	FeatureE2
	FeatureFace
)

// Vertex returns the triangle vertex index of a vertex feature.
func (f Feature) Vertex() (int, bool) {
	return int(f), f <= FeatureV2
}

// Edge returns the edge index of an edge feature. Edge i joins
// vertex i and vertex (i+1)%3.
func (f Feature) Edge() (int, bool) {
	return int(f - FeatureE0), f >= FeatureE0 && f <= FeatureE2
}

// Normal returns the unit normal of the triangle following the right hand
// rule. Degenerate triangles return the zero vector.
func (t Triangle) Normal() r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Area returns the area of the triangle.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}

// Bounds returns the axis aligned bounding box of the triangle.
func (t Triangle) Bounds() Box {
	return Box{
		Min: MinElem(t[2], MinElem(t[0], t[1])),
		Max: MaxElem(t[2], MaxElem(t[0], t[1])),
	}
}

// Centroid returns the average of the triangle vertices.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1./3., r3.Add(r3.Add(t[0], t[1]), t[2]))
}

// Closest returns the point on the solid triangle closest to p and the
// feature it lies on.
//
// Based on Geometric Tool's algorithm for distance between a point
// and a solid triangle, licensed under the Boost Software License.
func (t Triangle) Closest(p r3.Vec) (r3.Vec, Feature) {
	edge0 := r3.Sub(t[1], t[0])
	edge1 := r3.Sub(t[2], t[0])
	st := closestParams(r3.Sub(p, t[0]), edge0, edge1)
	closest := r3.Add(t[0], r3.Add(r3.Scale(st[0], edge0), r3.Scale(st[1], edge1)))
	return closest, paramFeature(st)
}

func closestParams(diff, edge0, edge1 r3.Vec) (p [2]float64) {
	a00 := r3.Dot(edge0, edge0)
	a01 := r3.Dot(edge0, edge1)
	a11 := r3.Dot(edge1, edge1)
	b0 := -r3.Dot(diff, edge0)
	b1 := -r3.Dot(diff, edge1)

	f00 := b0
	f10 := b0 + a00
	f01 := b0 + a01

	var p0, p1 [2]float64
	var dt1, h0, h1 float64

	if f00 >= 0 {
		if f01 >= 0 {
			return minEdge02(a11, b1)
		}
		p0[0] = 0
		p0[1] = f00 / (f00 - f01)
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			return minEdge02(a11, b1)
		}
		h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1)
		if h1 <= 0 {
			return minEdge12(a01, a11, b1, f10, f01)
		}
		return minInterior(p0, h0, p1, h1)
	} else if f01 <= 0 {
		if f10 <= 0 {
			return minEdge12(a01, a11, b1, f10, f01)
		}
		p0[0] = f00 / (f00 - f10)
		p0[1] = 0
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		h0 = p1[1] * (a01*p0[0] + b1)
		if h0 >= 0 {
			return p0
		}
		h1 = p1[1] * (a01*p1[0] + a11*p1[1] + b1)
		if h1 <= 0 {
			return minEdge12(a01, a11, b1, f10, f01)
		}
		return minInterior(p0, h0, p1, h1)
	} else if f10 <= 0 {
		p0[0] = 0
		p0[1] = f00 / (f00 - f01)
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			return minEdge02(a11, b1)
		}
		h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1)
		if h1 <= 0 {
			return minEdge12(a01, a11, b1, f10, f01)
		}
		return minInterior(p0, h0, p1, h1)
	}
	p0[0] = f00 / (f00 - f10)
	p0[1] = 0
	p1[0] = 0
	p1[1] = f00 / (f00 - f01)
	h0 = p1[1] * (a01*p0[0] + b1)
	if h0 >= 0 {
		return p0
	}
	h1 = p1[1] * (a11*p1[1] + b1)
	if h1 <= 0 {
		return minEdge02(a11, b1)
	}
	return minInterior(p0, h0, p1, h1)
}

func minEdge02(a11, b1 float64) (p [2]float64) {
	p[0] = 0
	if b1 >= 0 {
		p[1] = 0
	} else if a11+b1 <= 0 {
		p[1] = 1
	} else {
		p[1] = -b1 / a11
	}
	return p
}

func minEdge12(a01, a11, b1, f10, f01 float64) (p [2]float64) {
	h0 := a01 + b1 - f10
	if h0 >= 0 {
		p[1] = 0
	} else {
		h1 := a11 + b1 - f01
		if h1 <= 0 {
			p[1] = 1
		} else {
			p[1] = h0 / (h0 - h1)
		}
	}
	p[0] = 1 - p[1]
	return p
}

func minInterior(p0 [2]float64, h0 float64, p1 [2]float64, h1 float64) (p [2]float64) {
	z := h0 / (h0 - h1)
	omz := 1 - z
	p[0] = omz*p0[0] + z*p1[0]
	p[1] = omz*p0[1] + z*p1[1]
	return p
}

// paramFeature classifies the barycentric parameters (s,t) of a closest point.
func paramFeature(p [2]float64) Feature {
	const tol = 1e-12
	s, t := p[0], p[1]
	switch {
	case s <= 0 && t <= 0:
		return FeatureV0
	case s >= 1:
		return FeatureV1
	case t >= 1:
		return FeatureV2
	case t <= 0:
		return FeatureE0
	case s <= 0:
		return FeatureE2
	case math.Abs(s+t-1) <= tol:
		return FeatureE1
	}
	return FeatureFace
}
