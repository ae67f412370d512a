package sweep_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/octree"
	"github.com/soypat/soupsdf/render"
	"github.com/soypat/soupsdf/sweep"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"
)

func randomSoup(seed int64, n int) []render.Triangle3 {
	rng := rand.New(rand.NewSource(seed))
	soup := make([]render.Triangle3, n)
	for i := range soup {
		c := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		for v := range soup[i] {
			soup[i][v] = r3.Add(c, r3.Scale(0.3, r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}))
		}
	}
	return soup
}

func testLattice(res int) grid.Lattice {
	return grid.Lattice{
		Res: [3]int{res, res + 1, res - 1},
		Box: r3.Box{Min: r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, Max: r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}},
	}
}

func TestSweepMatchesQueries(t *testing.T) {
	soup := randomSoup(1, 60)
	tree := octree.Build(soup, octree.Config{MaxTriangles: 4, MaxDepth: 6})
	lat := testLattice(14)
	for _, opts := range []sweep.Options{
		{},
		{Reach: 1, Workers: 1},
		{Reach: 6, MaxCandidates: 8, Workers: 3},
	} {
		opts.Logger = zaptest.NewLogger(t)
		g, err := grid.New(lat, grid.Options{ClosestPoint: true, Feature: true})
		require.NoError(t, err)
		stats, err := sweep.Run(tree, lat, g, opts)
		require.NoError(t, err)
		require.Equal(t, lat.Len(), stats.Queries+stats.Certified)
		if opts.MaxCandidates == 0 {
			require.Greater(t, stats.Certified, 0)
		}
		require.Zero(t, stats.Far)
		for k := 0; k <= lat.Res[2]; k++ {
			for j := 0; j <= lat.Res[1]; j++ {
				for i := 0; i <= lat.Res[0]; i++ {
					want, ok := tree.Nearest(lat.Position(i, j, k))
					require.True(t, ok)
					require.Equal(t, want.Dist(), g.At(i, j, k))
					require.Equal(t, want.Triangle, g.FeatureID(i, j, k))
					cp, _ := g.ClosestPoint(i, j, k)
					require.Equal(t, want.Point, cp)
				}
			}
		}
	}
}

func TestSweepNarrowBand(t *testing.T) {
	soup := randomSoup(2, 20)
	tree := octree.Build(soup, octree.DefaultConfig())
	lat := testLattice(16)
	const band = 0.2
	nb, err := grid.NewNarrowBand(lat)
	require.NoError(t, err)
	stats, err := sweep.Run(tree, lat, nb, sweep.Options{Band: band})
	require.NoError(t, err)
	require.Greater(t, stats.Far, 0)
	require.Equal(t, lat.Len(), nb.Len()+stats.Far)
	// Some far points were proven far without a query.
	require.Less(t, stats.Queries+stats.Certified, lat.Len())
	for k := 0; k <= lat.Res[2]; k++ {
		for j := 0; j <= lat.Res[1]; j++ {
			for i := 0; i <= lat.Res[0]; i++ {
				want, _ := tree.Nearest(lat.Position(i, j, k))
				got, ok := nb.At(i, j, k)
				if want.Dist() <= band {
					require.True(t, ok, "(%d,%d,%d) in band reported far", i, j, k)
					require.Equal(t, want.Dist(), got)
				} else {
					require.False(t, ok, "(%d,%d,%d) beyond band stored", i, j, k)
				}
			}
		}
	}
}

// offsetMesh contours the unsigned field of the cube soup at sigma on lat,
// giving a dense mesh with many small triangles per voxel.
func offsetMesh(t *testing.T, lat grid.Lattice, sigma float64) *mesh.Indexed {
	t.Helper()
	u, err := grid.New(lat, grid.Options{})
	require.NoError(t, err)
	_, err = sweep.Run(octree.Build(cubeSoup(), octree.DefaultConfig()), lat, u, sweep.Options{})
	require.NoError(t, err)
	verts, faces := render.NewIsosurface(u, sigma).Mesh()
	require.NotEmpty(t, faces)
	return mesh.NewIndexed(verts, faces)
}

func TestSweepContouredMesh(t *testing.T) {
	lat := grid.Lattice{Res: [3]int{20, 20, 20}, Box: r3.Box{Min: r3.Vec{X: -1.6, Y: -1.6, Z: -1.6}, Max: r3.Vec{X: 1.6, Y: 1.6, Z: 1.6}}}
	m := offsetMesh(t, lat, 0.2)
	tree := m.Index(octree.DefaultConfig())
	require.Greater(t, len(m.Faces), 1000)

	var (
		g     *grid.Grid
		stats sweep.Stats
	)
	sweepTime := bestOf(3, func() {
		var err error
		g, err = grid.New(lat, grid.Options{Feature: true})
		require.NoError(t, err)
		stats, err = sweep.Run(tree, lat, g, sweep.Options{Workers: 1})
		require.NoError(t, err)
	})
	require.Equal(t, lat.Len(), stats.Queries+stats.Certified)
	require.Greater(t, stats.Certified, 0)

	want := make([]octree.Hit, lat.Len())
	queryTime := bestOf(3, func() {
		for idx := range want {
			want[idx], _ = tree.Nearest(lat.Position(lat.Coords(idx)))
		}
	})
	for idx, h := range want {
		require.Equal(t, h.Dist(), g.Data()[idx])
		i, j, k := lat.Coords(idx)
		require.Equal(t, h.Triangle, g.FeatureID(i, j, k))
	}
	t.Logf("faces=%d stats=%+v sweep=%v per-point=%v", len(m.Faces), stats, sweepTime, queryTime)
	if !testing.Short() {
		require.Less(t, sweepTime, 2*queryTime+50*time.Millisecond,
			"sweep slower than querying every point")
	}
}

func bestOf(n int, fn func()) time.Duration {
	best := time.Duration(math.MaxInt64)
	for ; n > 0; n-- {
		start := time.Now()
		fn()
		best = min(best, time.Since(start))
	}
	return best
}

type cubeClassifier struct{ m *mesh.Indexed }

func (c cubeClassifier) Sign(p r3.Vec, hit octree.Hit) float64 { return c.m.Sign(p, hit) }

func TestSweepSigned(t *testing.T) {
	m, err := mesh.Weld(cubeSoup(), 0)
	require.NoError(t, err)
	tree := m.Index(octree.DefaultConfig())
	lat := grid.Lattice{Res: [3]int{10, 10, 10}, Box: r3.Box{Min: r3.Vec{X: -1.3, Y: -1.3, Z: -1.3}, Max: r3.Vec{X: 1.7, Y: 1.7, Z: 1.7}}}
	g, err := grid.New(lat, grid.Options{})
	require.NoError(t, err)
	_, err = sweep.Run(tree, lat, g, sweep.Options{Classifier: cubeClassifier{m}})
	require.NoError(t, err)
	for k := 0; k <= 10; k++ {
		for j := 0; j <= 10; j++ {
			for i := 0; i <= 10; i++ {
				p := lat.Position(i, j, k)
				want := cubeSDF(p)
				require.InDelta(t, want, g.At(i, j, k), 1e-9, "at %v", p)
			}
		}
	}
}

func TestSweepNoGeometry(t *testing.T) {
	tree := octree.Build(nil, octree.DefaultConfig())
	lat := testLattice(4)
	g, err := grid.New(lat, grid.Options{Feature: true})
	require.NoError(t, err)
	_, err = sweep.Run(tree, lat, g, sweep.Options{})
	require.NoError(t, err)
	for _, v := range g.Data() {
		require.True(t, math.IsInf(v, 1))
	}
	require.EqualValues(t, -1, g.FeatureID(0, 0, 0))

	_, err = sweep.Run(tree, lat, g, sweep.Options{Band: -1})
	require.Error(t, err)
	_, err = sweep.Run(nil, lat, g, sweep.Options{})
	require.Error(t, err)
}

// cubeSoup returns an outward oriented cube of side 2 centered at the origin.
func cubeSoup() []render.Triangle3 {
	c := func(i int) r3.Vec {
		return r3.Vec{X: float64(2*(i&1) - 1), Y: float64(2*(i>>1&1) - 1), Z: float64(2*(i>>2&1) - 1)}
	}
	quads := [6][4]int{{0, 2, 3, 1}, {4, 5, 7, 6}, {0, 1, 5, 4}, {2, 6, 7, 3}, {0, 4, 6, 2}, {1, 3, 7, 5}}
	var soup []render.Triangle3
	for _, q := range quads {
		soup = append(soup, render.Triangle3{c(q[0]), c(q[1]), c(q[2])}, render.Triangle3{c(q[0]), c(q[2]), c(q[3])})
	}
	return soup
}

func cubeSDF(p r3.Vec) float64 {
	q := r3.Vec{X: math.Abs(p.X) - 1, Y: math.Abs(p.Y) - 1, Z: math.Abs(p.Z) - 1}
	outside := r3.Norm(r3.Vec{X: math.Max(q.X, 0), Y: math.Max(q.Y, 0), Z: math.Max(q.Z, 0)})
	return outside + math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
}
