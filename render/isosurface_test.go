package render_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/render"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// funcField samples an analytic function on a uniform lattice.
type funcField struct {
	res [3]int
	box d3.Box
	f   func(r3.Vec) float64
}

func (f funcField) Resolution() [3]int { return f.res }

func (f funcField) Position(i, j, k int) r3.Vec {
	sz := f.box.Size()
	return r3.Vec{
		X: f.box.Min.X + sz.X*float64(i)/float64(f.res[0]),
		Y: f.box.Min.Y + sz.Y*float64(j)/float64(f.res[1]),
		Z: f.box.Min.Z + sz.Z*float64(k)/float64(f.res[2]),
	}
}

func (f funcField) Value(i, j, k int) float64 { return f.f(f.Position(i, j, k)) }

func sphereField(res int, radius float64) funcField {
	return funcField{
		res: [3]int{res, res, res},
		box: d3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)},
		f:   func(p r3.Vec) float64 { return r3.Norm(p) - radius },
	}
}

func TestIsosurfaceSphereWatertight(t *testing.T) {
	const radius = 0.6
	for _, res := range []int{5, 8, 17} {
		iso := render.NewIsosurface(sphereField(res, radius), 0)
		verts, faces := iso.Mesh()
		require.NotEmpty(t, faces)
		edges := make(map[[2]int]int)
		for _, f := range faces {
			for e := 0; e < 3; e++ {
				a, b := f[e], f[(e+1)%3]
				edges[[2]int{a, b}]++
			}
		}
		// Closed and consistently oriented: every directed edge is used once
		// and its reverse is used exactly once.
		for e, n := range edges {
			require.Equal(t, 1, n, "res %d directed edge %v", res, e)
			require.Equal(t, 1, edges[[2]int{e[1], e[0]}], "res %d edge %v unmatched", res, e)
		}
		// Vertices lie on lattice edges crossing the sphere.
		h := 2.0 / float64(res)
		for _, v := range verts {
			require.InDelta(t, radius, r3.Norm(v), math.Sqrt(3)*h, "vertex off sphere")
		}
	}
}

func TestIsosurfaceOrientation(t *testing.T) {
	verts, faces := render.NewIsosurface(sphereField(12, 0.5), 0).Mesh()
	for _, f := range faces {
		tri := render.Triangle3{verts[f[0]], verts[f[1]], verts[f[2]]}
		if tri.Area() < 1e-12 {
			continue
		}
		c := r3.Scale(1./3, r3.Add(tri[0], r3.Add(tri[1], tri[2])))
		// Field increases outward, so normals must point away from the center.
		require.Greater(t, r3.Dot(tri.Normal(), c), 0.0)
	}
}

func TestIsosurfaceInfiniteSamples(t *testing.T) {
	field := sphereField(10, 0.5)
	sphere := field.f
	field.f = func(p r3.Vec) float64 {
		d := sphere(p)
		if d > 0.3 {
			return math.Inf(1)
		}
		return d
	}
	verts, faces := render.NewIsosurface(field, 0).Mesh()
	require.NotEmpty(t, faces)
	for _, v := range verts {
		require.True(t, d3.IsFinite(v))
	}
}

func TestIsosurfaceEmpty(t *testing.T) {
	field := sphereField(4, 5) // Whole box inside.
	iso := render.NewIsosurface(field, 0)
	_, faces := iso.Mesh()
	require.Empty(t, faces)
	model, err := render.RenderAll(iso)
	require.NoError(t, err)
	require.Empty(t, model)
}

func TestIsosurfaceDeterministic(t *testing.T) {
	a, err := render.RenderAll(render.NewIsosurface(sphereField(9, 0.7), 0.01))
	require.NoError(t, err)
	b, err := render.RenderAll(render.NewIsosurface(sphereField(9, 0.7), 0.01))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSTLWriteReadback(t *testing.T) {
	model, err := render.RenderAll(render.NewIsosurface(sphereField(8, 0.6), 0))
	require.NoError(t, err)
	var b bytes.Buffer
	require.NoError(t, render.WriteSTL(&b, model))
	require.Equal(t, 84+50*len(model), b.Len())
	got, err := render.ReadSTL(&b)
	require.NoError(t, err)
	require.Len(t, got, len(model))
	for i := range model {
		for v := 0; v < 3; v++ {
			require.True(t, d3.EqualWithin(model[i][v], got[i][v], 1e-6))
		}
	}
}

func TestSTLReadErrors(t *testing.T) {
	_, err := render.ReadSTL(bytes.NewReader(make([]byte, 10)))
	require.Error(t, err)
	// Header claims one triangle but data is truncated.
	var b bytes.Buffer
	require.NoError(t, render.WriteSTL(&b, []render.Triangle3{{{}, {X: 1}, {Y: 1}}}))
	_, err = render.ReadSTL(bytes.NewReader(b.Bytes()[:b.Len()-10]))
	require.Error(t, err)
	require.Error(t, render.WriteSTL(&b, nil))
}
