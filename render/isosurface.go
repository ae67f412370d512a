package render

import (
	"io"
	"math"

	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Field is a scalar field sampled on a regular lattice of
// (Resolution()[0]+1) x (Resolution()[1]+1) x (Resolution()[2]+1) points.
type Field interface {
	Resolution() [3]int
	// Position returns the world position of lattice point (i,j,k).
	Position(i, j, k int) r3.Vec
	// Value returns the field sample at lattice point (i,j,k). Unknown
	// samples may be reported as +Inf.
	Value(i, j, k int) float64
}

// kuhnTetrahedra splits a lattice cube into six tetrahedra sharing the main
// diagonal from corner 0 to corner 7. Corner c is offset by (c&1, c>>1&1, c>>2&1).
// Each tetrahedron walks from corner 0 to corner 7 one axis at a time, so
// every cube face is split along the diagonal through its lowest and highest
// corner and neighboring cubes agree on shared faces. This fixed table is
// what resolves the ambiguous marching cubes configurations.
var kuhnTetrahedra = [6][4]int{
	{0, 1, 3, 7}, // x, y, z
	{0, 1, 5, 7}, // x, z, y
	{0, 2, 3, 7}, // y, x, z
	{0, 2, 6, 7}, // y, z, x
	{0, 4, 5, 7}, // z, x, y
	{0, 4, 6, 7}, // z, y, x
}

// tClamp keeps interpolated vertices off lattice points so that distinct
// lattice edges never produce coincident vertices.
const tClamp = 1e-6

// Isosurface extracts the level set of a Field with marching cubes over a
// tetrahedral split of each cube. Output vertices are shared between
// triangles on the same lattice edge and triangles face toward
// increasing field values.
type Isosurface struct {
	field Field
	iso   float64
	res   [3]int

	extracted bool
	verts     []r3.Vec
	faces     [][3]int
	edgeVerts map[[2]int]int
	// next face to be streamed by ReadTriangles.
	next int
}

var _ Renderer = (*Isosurface)(nil)

// NewIsosurface returns an extractor of the level set f == iso.
func NewIsosurface(f Field, iso float64) *Isosurface {
	return &Isosurface{
		field: f,
		iso:   iso,
		res:   f.Resolution(),
	}
}

// Mesh extracts the isosurface on first call and returns its shared vertices
// and triangle vertex indices. The returned slices must not be modified.
func (s *Isosurface) Mesh() (vertices []r3.Vec, faces [][3]int) {
	if !s.extracted {
		s.extract()
	}
	return s.verts, s.faces
}

// ReadTriangles implements Renderer.
func (s *Isosurface) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	verts, faces := s.Mesh()
	for n < len(dst) && s.next < len(faces) {
		f := faces[s.next]
		dst[n] = Triangle3{verts[f[0]], verts[f[1]], verts[f[2]]}
		n++
		s.next++
	}
	if s.next == len(faces) {
		err = io.EOF
	}
	return n, err
}

func (s *Isosurface) extract() {
	s.extracted = true
	s.edgeVerts = make(map[[2]int]int)
	nx, ny, nz := s.res[0], s.res[1], s.res[2]
	var (
		values  [8]float64
		indices [8]int
	)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				below := 0
				for c := 0; c < 8; c++ {
					ci, cj, ck := i+c&1, j+c>>1&1, k+c>>2&1
					values[c] = s.field.Value(ci, cj, ck)
					indices[c] = (ck*(ny+1)+cj)*(nx+1) + ci
					if values[c] < s.iso {
						below++
					}
				}
				if below == 0 || below == 8 {
					continue // Cube does not cross the isosurface.
				}
				for _, tet := range kuhnTetrahedra {
					s.tetrahedron(tet, &values, &indices)
				}
			}
		}
	}
	s.edgeVerts = nil // Only needed during extraction.
}

// tetrahedron emits the isosurface triangles of one tetrahedron of a cube.
func (s *Isosurface) tetrahedron(tet [4]int, values *[8]float64, indices *[8]int) {
	var in, out [4]int
	var nin, nout int
	for _, c := range tet {
		if values[c] < s.iso {
			in[nin] = c
			nin++
		} else {
			out[nout] = c
			nout++
		}
	}
	switch nin {
	case 0, 4:
		return
	case 1:
		a := in[0]
		s.addTriangle(values, indices, in[:1], out[:3],
			s.edgeVertex(a, out[0], values, indices),
			s.edgeVertex(a, out[1], values, indices),
			s.edgeVertex(a, out[2], values, indices))
	case 3:
		a := out[0]
		s.addTriangle(values, indices, in[:3], out[:1],
			s.edgeVertex(in[0], a, values, indices),
			s.edgeVertex(in[1], a, values, indices),
			s.edgeVertex(in[2], a, values, indices))
	case 2:
		// Quad with vertices on edges ac, ad, bd, bc in cyclic order.
		a, b, c, d := in[0], in[1], out[0], out[1]
		ac := s.edgeVertex(a, c, values, indices)
		ad := s.edgeVertex(a, d, values, indices)
		bd := s.edgeVertex(b, d, values, indices)
		bc := s.edgeVertex(b, c, values, indices)
		s.addTriangle(values, indices, in[:2], out[:2], ac, ad, bd)
		s.addTriangle(values, indices, in[:2], out[:2], ac, bd, bc)
	}
}

// addTriangle appends a face oriented so its normal points from the corners
// below the iso value toward the corners above it.
func (s *Isosurface) addTriangle(values *[8]float64, indices *[8]int, in, out []int, v0, v1, v2 int) {
	var cin, cout r3.Vec
	for _, c := range in {
		cin = r3.Add(cin, s.cornerPosition(indices[c]))
	}
	for _, c := range out {
		cout = r3.Add(cout, s.cornerPosition(indices[c]))
	}
	g := r3.Sub(r3.Scale(1/float64(len(out)), cout), r3.Scale(1/float64(len(in)), cin))
	n := r3.Cross(r3.Sub(s.verts[v1], s.verts[v0]), r3.Sub(s.verts[v2], s.verts[v0]))
	if r3.Dot(n, g) < 0 {
		v1, v2 = v2, v1
	}
	s.faces = append(s.faces, [3]int{v0, v1, v2})
}

// edgeVertex returns the index of the vertex on the lattice edge joining
// cube corners a and b, creating it if needed.
func (s *Isosurface) edgeVertex(a, b int, values *[8]float64, indices *[8]int) int {
	ia, ib := indices[a], indices[b]
	va, vb := values[a], values[b]
	if ia > ib {
		// Interpolate from the lower index so every cube sharing
		// the edge computes the same position.
		ia, ib = ib, ia
		va, vb = vb, va
	}
	key := [2]int{ia, ib}
	if v, ok := s.edgeVerts[key]; ok {
		return v
	}
	t := (s.iso - va) / (vb - va)
	if math.IsNaN(t) {
		t = 0.5
	}
	t = math.Max(tClamp, math.Min(1-tClamp, t))
	pos := d3.Lerp(s.cornerPosition(ia), s.cornerPosition(ib), t)
	v := len(s.verts)
	s.verts = append(s.verts, pos)
	s.edgeVerts[key] = v
	return v
}

func (s *Isosurface) cornerPosition(flat int) r3.Vec {
	nx, ny := s.res[0]+1, s.res[1]+1
	i := flat % nx
	j := (flat / nx) % ny
	k := flat / (nx * ny)
	return s.field.Position(i, j, k)
}
