package containment_test

import (
	"errors"
	"testing"

	"github.com/soypat/soupsdf/containment"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/render"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"
)

func cubeSoup(center r3.Vec, side float64) []render.Triangle3 {
	h := side / 2
	corner := func(i int) r3.Vec {
		return r3.Add(center, r3.Vec{
			X: h * float64(2*(i&1)-1),
			Y: h * float64(2*(i>>1&1)-1),
			Z: h * float64(2*(i>>2&1)-1),
		})
	}
	quads := [6][4]int{{0, 2, 3, 1}, {4, 5, 7, 6}, {0, 1, 5, 4}, {2, 6, 7, 3}, {0, 4, 6, 2}, {1, 3, 7, 5}}
	var soup []render.Triangle3
	for _, q := range quads {
		soup = append(soup,
			render.Triangle3{corner(q[0]), corner(q[1]), corner(q[2])},
			render.Triangle3{corner(q[0]), corner(q[2]), corner(q[3])},
		)
	}
	return soup
}

func weld(t *testing.T, soups ...[]render.Triangle3) *mesh.Indexed {
	t.Helper()
	var all []render.Triangle3
	for _, s := range soups {
		all = append(all, s...)
	}
	m, err := mesh.Weld(all, 0)
	require.NoError(t, err)
	return m
}

func TestResolveNested(t *testing.T) {
	m := weld(t, cubeSoup(r3.Vec{}, 2), cubeSoup(r3.Vec{}, 1))
	r := containment.Resolver{Logger: zaptest.NewLogger(t)}
	res, err := r.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, []int{0}, res.Kept)
	require.Equal(t, []int{1}, res.Removed)
	require.NoError(t, res.Warnings)
	require.Len(t, res.Mesh.Faces, 12)
	require.Len(t, res.Mesh.Vertices, 8)
	require.InDelta(t, 2, res.Mesh.Bounds().Size().X, 1e-12)

	// Resolving again is a no-op.
	again, err := r.Resolve(res.Mesh)
	require.NoError(t, err)
	require.Empty(t, again.Removed)
	require.Equal(t, res.Mesh.Faces, again.Mesh.Faces)
}

func TestResolveInnerListedFirst(t *testing.T) {
	m := weld(t, cubeSoup(r3.Vec{X: 0.2}, 0.5), cubeSoup(r3.Vec{}, 2))
	res, err := containment.Resolver{}.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, []int{1}, res.Kept)
	require.Equal(t, []int{0}, res.Removed)
	require.Len(t, res.Mesh.Faces, 12)
}

func TestResolveDisjoint(t *testing.T) {
	m := weld(t, cubeSoup(r3.Vec{}, 1), cubeSoup(r3.Vec{X: 3}, 1), cubeSoup(r3.Vec{Y: 3}, 2))
	res, err := containment.Resolver{}.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, res.Kept)
	require.Empty(t, res.Removed)
	require.Len(t, res.Mesh.Faces, 36)
}

func TestResolveMultipleLevels(t *testing.T) {
	// A shell nested in a shell nested in a shell: both inner ones go.
	m := weld(t, cubeSoup(r3.Vec{}, 4), cubeSoup(r3.Vec{}, 2), cubeSoup(r3.Vec{}, 1))
	res, err := containment.Resolver{}.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, []int{0}, res.Kept)
	require.Equal(t, []int{1, 2}, res.Removed)
}

func TestResolveCoincidentShells(t *testing.T) {
	// Two coincident cubes that share no vertices. The representative of
	// the second lies on the first so its test is inconclusive and it is
	// kept with a warning.
	a := weld(t, cubeSoup(r3.Vec{}, 2))
	verts := append(append([]r3.Vec{}, a.Vertices...), a.Vertices...)
	faces := append([][3]int{}, a.Faces...)
	for _, f := range a.Faces {
		n := len(a.Vertices)
		faces = append(faces, [3]int{f[0] + n, f[1] + n, f[2] + n})
	}
	m := mesh.NewIndexed(verts, faces)
	res, err := containment.Resolver{Logger: zaptest.NewLogger(t)}.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, res.Kept)
	require.Empty(t, res.Removed)
	require.Error(t, res.Warnings)
	require.True(t, errors.Is(res.Warnings, containment.ErrInconclusive))
}

func TestResolveNil(t *testing.T) {
	_, err := containment.Resolver{}.Resolve(nil)
	require.Error(t, err)
}
