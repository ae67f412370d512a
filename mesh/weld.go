package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface  = kdVertices{}
	_ kdtree.Comparable = kdVertex{}
)

// Weld merges the vertices of a triangle soup lying within tol of each other
// into shared vertices and returns the resulting indexed mesh. Faces that
// collapse after welding are dropped. If tol is zero it is inferred from the
// shortest triangle side.
func Weld(model []render.Triangle3, tol float64) (*Indexed, error) {
	if len(model) == 0 {
		return nil, errors.New("empty triangle soup")
	}
	minSide2 := math.MaxFloat64
	maxSide2 := 0.0
	raw := make(kdVertices, 0, 3*len(model))
	for i, tri := range model {
		for j, v := range tri {
			side2 := r3.Norm2(r3.Sub(tri[(j+1)%3], v))
			if side2 > 0 {
				minSide2 = math.Min(minSide2, side2)
			}
			maxSide2 = math.Max(maxSide2, side2)
			raw = append(raw, kdVertex{V: v, id: 3*i + j})
		}
	}
	if maxSide2 == 0 {
		return nil, errors.New("all triangles are degenerate")
	}
	suggested := math.Sqrt(minSide2) / 256
	if tol > math.Sqrt(maxSide2)/2 {
		return nil, fmt.Errorf("vertex tolerance is too large to generate appropiate mesh, suggested tolerance: %g", suggested)
	}
	if tol == 0 {
		tol = suggested
	}
	// kdtree.New reorders its input so keep positions addressable by id.
	positions := make([]r3.Vec, len(raw))
	for _, v := range raw {
		positions[v.id] = v.V
	}
	tree := kdtree.New(raw, false)

	welded := make([]int, len(positions))
	for i := range welded {
		welded[i] = -1
	}
	var vertices []r3.Vec
	tol2 := tol * tol
	for id, p := range positions {
		if welded[id] >= 0 {
			continue
		}
		nv := len(vertices)
		vertices = append(vertices, p)
		keep := kdtree.NewDistKeeper(tol2)
		tree.NearestSet(keep, kdVertex{V: p, id: -1})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue // Keeper sentinel.
			}
			if other := c.Comparable.(kdVertex); welded[other.id] < 0 {
				welded[other.id] = nv
			}
		}
	}

	faces := make([][3]int, 0, len(model))
	for i := range model {
		f := [3]int{welded[3*i], welded[3*i+1], welded[3*i+2]}
		if f[0] == f[1] || f[1] == f[2] || f[2] == f[0] {
			continue
		}
		faces = append(faces, f)
	}
	return NewIndexed(vertices, faces), nil
}

type kdVertices []kdVertex

type kdVertex struct {
	V  r3.Vec
	id int
}

func (k kdVertices) Index(i int) kdtree.Comparable { return k[i] }

// Len returns the length of the list.
func (k kdVertices) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdVertices) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), vertices: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdVertices) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdVertex) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdVertex), int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdVertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdVertex) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.V, b.(kdVertex).V))
}

// c = a.dim - b.dim
func kdComp(a, b kdVertex, dim int) float64 {
	switch dim {
	case 0:
		return a.V.X - b.V.X
	case 1:
		return a.V.Y - b.V.Y
	}
	return a.V.Z - b.V.Z
}

type kdPlane struct {
	dim      int
	vertices kdVertices
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.vertices[i], p.vertices[j], p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}
func (p kdPlane) Len() int {
	return len(p.vertices)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.vertices = p.vertices[start:end]
	return p
}
