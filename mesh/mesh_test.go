package mesh_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/octree"
	"github.com/soypat/soupsdf/render"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// cubeSoup returns the 12 outward facing triangles of an axis aligned cube.
func cubeSoup(center r3.Vec, side float64) []render.Triangle3 {
	h := side / 2
	corner := func(i int) r3.Vec {
		return r3.Add(center, r3.Vec{
			X: h * float64(2*(i&1)-1),
			Y: h * float64(2*(i>>1&1)-1),
			Z: h * float64(2*(i>>2&1)-1),
		})
	}
	quads := [6][4]int{
		{0, 2, 3, 1}, // -Z
		{4, 5, 7, 6}, // +Z
		{0, 1, 5, 4}, // -Y
		{2, 6, 7, 3}, // +Y
		{0, 4, 6, 2}, // -X
		{1, 3, 7, 5}, // +X
	}
	var soup []render.Triangle3
	for _, q := range quads {
		soup = append(soup,
			render.Triangle3{corner(q[0]), corner(q[1]), corner(q[2])},
			render.Triangle3{corner(q[0]), corner(q[2]), corner(q[3])},
		)
	}
	return soup
}

func TestCubeSoupOutward(t *testing.T) {
	for _, tri := range cubeSoup(r3.Vec{}, 2) {
		c := d3.Triangle(tri).Centroid()
		require.Greater(t, r3.Dot(tri.Normal(), c), 0.0)
	}
}

func TestWeld(t *testing.T) {
	m, err := mesh.Weld(cubeSoup(r3.Vec{}, 2), 0)
	require.NoError(t, err)
	require.Len(t, m.Vertices, 8)
	require.Len(t, m.Faces, 12)
	require.Len(t, m.Components(), 1)
	b := m.Bounds()
	require.Equal(t, d3.Elem(-1), b.Min)
	require.Equal(t, d3.Elem(1), b.Max)

	// Perturbed copies within tolerance still weld.
	soup := cubeSoup(r3.Vec{}, 2)
	rng := rand.New(rand.NewSource(1))
	for i := range soup {
		for j := range soup[i] {
			soup[i][j] = r3.Add(soup[i][j], r3.Scale(1e-4, r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}))
		}
	}
	m, err = mesh.Weld(soup, 1e-3)
	require.NoError(t, err)
	require.Len(t, m.Vertices, 8)

	_, err = mesh.Weld(nil, 0)
	require.Error(t, err)
	_, err = mesh.Weld(cubeSoup(r3.Vec{}, 2), 10)
	require.Error(t, err)
}

func TestPseudoNormals(t *testing.T) {
	m, err := mesh.Weld(cubeSoup(r3.Vec{}, 2), 0)
	require.NoError(t, err)
	for v, p := range m.Vertices {
		// Angle weighting makes corner normals point along the diagonal
		// regardless of how faces are triangulated.
		n := m.VertexNormal(v)
		require.InDelta(t, 1, r3.Cos(n, p), 1e-12)
	}
	for f, face := range m.Faces {
		for j := range face {
			n := m.EdgeNormal(face[j], face[(j+1)%3])
			mid := r3.Scale(0.5, r3.Add(m.Vertices[face[j]], m.Vertices[face[(j+1)%3]]))
			require.Greater(t, r3.Dot(n, mid), 0.0, "face %d edge %d", f, j)
		}
	}
}

func TestSignCube(t *testing.T) {
	m, err := mesh.Weld(cubeSoup(r3.Vec{}, 2), 0)
	require.NoError(t, err)
	tree := m.Index(octree.DefaultConfig())
	rng := rand.New(rand.NewSource(2))
	for n := 0; n < 2000; n++ {
		p := r3.Vec{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2, Z: rng.Float64()*4 - 2}
		if d3.Max(r3.Vec{X: abs(p.X), Y: abs(p.Y), Z: abs(p.Z)}) > 0.999 &&
			d3.Max(r3.Vec{X: abs(p.X), Y: abs(p.Y), Z: abs(p.Z)}) < 1.001 {
			continue // Too close to the surface.
		}
		hit, ok := tree.Nearest(p)
		require.True(t, ok)
		inside := d3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)}.Contains(p)
		want := 1.0
		if inside {
			want = -1
		}
		require.Equal(t, want, m.Sign(p, hit), "point %v", p)
	}
	// Points exactly on the surface are outside.
	hit, _ := tree.Nearest(r3.Vec{X: 1})
	require.Equal(t, 1.0, m.Sign(r3.Vec{X: 1}, hit))
	require.Zero(t, m.Classify(r3.Vec{X: 1}, hit))
}

func TestComponentsAndSubmesh(t *testing.T) {
	soup := append(cubeSoup(r3.Vec{}, 1), cubeSoup(r3.Vec{X: 5}, 1)...)
	m, err := mesh.Weld(soup, 0)
	require.NoError(t, err)
	comps := m.Components()
	require.Len(t, comps, 2)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, comps[0])
	sub := m.Submesh(comps[1])
	require.Len(t, sub.Faces, 12)
	require.Len(t, sub.Vertices, 8)
	require.InDelta(t, 5, d3.Box(sub.Bounds()).Center().X, 1e-12)
	require.Len(t, sub.Components(), 1)

	// Faces sharing a single vertex are not connected.
	bow := mesh.NewIndexed(
		[]r3.Vec{{}, {X: 1}, {Y: 1}, {X: -1}, {Y: -1}},
		[][3]int{{0, 1, 2}, {0, 3, 4}},
	)
	require.Len(t, bow.Components(), 2)
}

func TestLoadSTL(t *testing.T) {
	soup := cubeSoup(r3.Vec{X: 1}, 2)
	path := filepath.Join(t.TempDir(), "cube.stl")
	fp, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, render.WriteSTL(fp, soup))
	require.NoError(t, fp.Close())

	got, err := mesh.Load(path)
	require.NoError(t, err)
	require.Len(t, got, len(soup))
	for i := range soup {
		for j := range soup[i] {
			require.True(t, d3.EqualWithin(soup[i][j], got[i][j], 1e-6))
		}
	}
	_, err = mesh.Load(filepath.Join(t.TempDir(), "missing.stl"))
	require.Error(t, err)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
