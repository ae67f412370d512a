// Package mesh implements indexed triangle meshes with the pseudo-normals
// used to classify points as inside or outside a surface.
package mesh

import (
	"math"

	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// Indexed is a triangle mesh with shared vertices. Faces index Vertices.
type Indexed struct {
	Vertices []r3.Vec
	Faces    [][3]int

	faceN []r3.Vec
	// vertN is the angle weighted vertex pseudo-normal.
	vertN []r3.Vec
	// edgeN is the edge pseudo-normal, keyed by vertex indices with the
	// lower index first.
	edgeN map[[2]int]r3.Vec
}

// NewIndexed builds a mesh from shared vertices and faces and computes its
// pseudo-normals. Neither slice is copied.
func NewIndexed(vertices []r3.Vec, faces [][3]int) *Indexed {
	m := &Indexed{
		Vertices: vertices,
		Faces:    faces,
		faceN:    make([]r3.Vec, len(faces)),
		vertN:    make([]r3.Vec, len(vertices)),
		edgeN:    make(map[[2]int]r3.Vec, 3*len(faces)/2),
	}
	for f := range faces {
		tri := m.Triangle(f)
		norm := tri.Normal()
		m.faceN[f] = norm
		if norm == (r3.Vec{}) {
			continue // Degenerate faces carry no orientation.
		}
		for j, v := range faces[f] {
			// Weight by the opening angle of the face at the vertex.
			s1, s2 := r3.Sub(tri[(j+1)%3], tri[j]), r3.Sub(tri[(j+2)%3], tri[j])
			alpha := math.Acos(math.Max(-1, math.Min(1, r3.Cos(s1, s2))))
			m.vertN[v] = r3.Add(m.vertN[v], r3.Scale(alpha, norm))
			e := edgeKey(v, faces[f][(j+1)%3])
			m.edgeN[e] = r3.Add(m.edgeN[e], norm)
		}
	}
	return m
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Triangle returns the vertex positions of face f.
func (m *Indexed) Triangle(f int) d3.Triangle {
	face := m.Faces[f]
	return d3.Triangle{m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]}
}

// Triangles returns the faces of m as a triangle soup.
func (m *Indexed) Triangles() []render.Triangle3 {
	tris := make([]render.Triangle3, len(m.Faces))
	for f := range m.Faces {
		tris[f] = render.Triangle3(m.Triangle(f))
	}
	return tris
}

// Bounds returns the bounding box of the faces of m.
func (m *Indexed) Bounds() r3.Box {
	return render.Bounds(m.Triangles())
}

// FaceBounds returns the bounding box of the listed faces.
func (m *Indexed) FaceBounds(faces []int) d3.Box {
	bb := d3.EmptyBox()
	for _, f := range faces {
		bb = bb.Extend(m.Triangle(f).Bounds())
	}
	return bb
}

// FaceNormal returns the unit normal of face f.
func (m *Indexed) FaceNormal(f int) r3.Vec { return m.faceN[f] }

// VertexNormal returns the angle weighted pseudo-normal of vertex v. It is
// not normalized.
func (m *Indexed) VertexNormal(v int) r3.Vec { return m.vertN[v] }

// EdgeNormal returns the pseudo-normal of the edge joining vertices a and b,
// the sum of the normals of the faces sharing it.
func (m *Indexed) EdgeNormal(a, b int) r3.Vec { return m.edgeN[edgeKey(a, b)] }

// PseudoNormal returns the pseudo-normal of the feature of face f on which a
// closest point lies: the face normal for interior points, the edge
// pseudo-normal on edges and the vertex pseudo-normal on corners.
func (m *Indexed) PseudoNormal(f int, feat d3.Feature) r3.Vec {
	face := m.Faces[f]
	if v, ok := feat.Vertex(); ok {
		return m.vertN[face[v]]
	}
	if e, ok := feat.Edge(); ok {
		return m.edgeN[edgeKey(face[e], face[(e+1)%3])]
	}
	return m.faceN[f]
}

// Submesh returns a new mesh made of the listed faces of m with unused
// vertices dropped. Vertex order follows first use.
func (m *Indexed) Submesh(faces []int) *Indexed {
	remap := make(map[int]int)
	var verts []r3.Vec
	sub := make([][3]int, len(faces))
	for n, f := range faces {
		for j, v := range m.Faces[f] {
			nv, ok := remap[v]
			if !ok {
				nv = len(verts)
				remap[v] = nv
				verts = append(verts, m.Vertices[v])
			}
			sub[n][j] = nv
		}
	}
	return NewIndexed(verts, sub)
}
