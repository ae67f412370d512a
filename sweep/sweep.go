// Package sweep fills a distance field one z slice at a time, resolving
// lattice points from a small per-column list of candidate triangles instead
// of a full octree query wherever such a list stays short.
package sweep

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/octree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sink receives the samples of a sweep. Samples are stored in ascending flat
// index order and far points are never stored.
type Sink interface {
	Store(idx int, s grid.Sample)
}

// Classifier signs distances. Sign returns -1 for points inside the surface
// and +1 otherwise given the nearest point hit to p.
type Classifier interface {
	Sign(p r3.Vec, hit octree.Hit) float64
}

// Options configures a sweep.
type Options struct {
	// Reach is the largest number of slices above a full query for which a
	// column's candidate list resolves points exactly.
	Reach int
	// MaxCandidates bounds the candidate list of a column. Collection stops
	// past this many triangles and the column falls back to full queries.
	MaxCandidates int
	// Workers bounds the goroutines computing a slice. Zero uses GOMAXPROCS.
	Workers int
	// Band enables narrow band mode when positive: points farther than Band
	// from the surface are marked far and never stored.
	Band float64
	// Classifier signs the stored distances. Nil stores unsigned distances.
	Classifier Classifier
	Logger     *zap.Logger
}

// DefaultOptions returns the options of a dense unsigned sweep.
func DefaultOptions() Options {
	return Options{Reach: 3, MaxCandidates: 64}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Reach <= 0 {
		o.Reach = def.Reach
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = def.MaxCandidates
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats counts how lattice points were resolved.
type Stats struct {
	// Queries is the number of full octree queries.
	Queries int
	// Certified is the number of points resolved from a column candidate list.
	Certified int
	// Far is the number of points outside the narrow band.
	Far int
}

func (s *Stats) add(o Stats) {
	s.Queries += o.Queries
	s.Certified += o.Certified
	s.Far += o.Far
}

// point is the state of one lattice point of a slice.
type point struct {
	// bound is the exact unsigned distance, or a lower bound of it for
	// far points.
	bound float64
	// dist is the signed distance when a Classifier is set.
	dist float64
	far  bool
	hit  octree.Hit
}

// column is the candidate list of one (i,j) column. cands holds every
// triangle that can be nearest to the column's points in slices up to until.
type column struct {
	until int
	cands []int32
	valid bool
	// retry is the first slice at which a new list may be collected after
	// a list overflowed.
	retry int
}

type sweeper struct {
	tree  *octree.Tree
	lat   grid.Lattice
	opts  Options
	nx    int // points along x
	ny    int // points along y
	nz    int // points along z
	hz    float64
	cols  []column
	prev  []point
	cur   []point
	stats []Stats // per row
}

// Run sweeps lat in increasing z and stores the distance of every lattice
// point to the triangles of tree in sink. Every stored sample equals the
// result of querying tree.Nearest at the point.
func Run(tree *octree.Tree, lat grid.Lattice, sink Sink, opts Options) (Stats, error) {
	if tree == nil || sink == nil {
		return Stats{}, errors.New("nil tree or sink")
	}
	if err := lat.Validate(); err != nil {
		return Stats{}, err
	}
	if opts.Band < 0 || math.IsNaN(opts.Band) {
		return Stats{}, fmt.Errorf("invalid narrow band width %g", opts.Band)
	}
	opts = opts.withDefaults()
	pts := lat.Points()
	s := &sweeper{
		tree:  tree,
		lat:   lat,
		opts:  opts,
		nx:    pts[0],
		ny:    pts[1],
		nz:    pts[2],
		hz:    lat.VoxelSize().Z,
		cols:  make([]column, pts[0]*pts[1]),
		prev:  make([]point, pts[0]*pts[1]),
		cur:   make([]point, pts[0]*pts[1]),
		stats: make([]Stats, pts[1]),
	}
	start := time.Now()
	var total Stats
	for k := 0; k < pts[2]; k++ {
		if err := s.slice(k); err != nil {
			return total, err
		}
		for j := range s.stats {
			total.add(s.stats[j])
		}
		s.commit(k, sink)
		s.prev, s.cur = s.cur, s.prev
	}
	opts.Logger.Debug("sweep done",
		zap.Ints("resolution", lat.Res[:]),
		zap.Float64("band", opts.Band),
		zap.Bool("signed", opts.Classifier != nil),
		zap.Int("queries", total.Queries),
		zap.Int("certified", total.Certified),
		zap.Int("far", total.Far),
		zap.Duration("elapsed", time.Since(start)),
	)
	return total, nil
}

// slice computes slice k into s.cur, one row per task.
func (s *sweeper) slice(k int) error {
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for j := 0; j < s.ny; j++ {
		j := j
		g.Go(func() error {
			s.stats[j] = s.row(j, k)
			return nil
		})
	}
	return g.Wait()
}

func (s *sweeper) row(j, k int) (st Stats) {
	for i := 0; i < s.nx; i++ {
		n := j*s.nx + i
		p := s.lat.Position(i, j, k)
		if s.opts.Band > 0 && k > 0 {
			if lb := s.lowerBound(p, i, j, k); lb > s.opts.Band*(1+1e-9) {
				s.cur[n] = point{bound: lb, far: true}
				st.Far++
				continue
			}
		}
		hit, certified := s.resolve(p, i, j, k)
		if certified {
			st.Certified++
		} else {
			st.Queries++
		}
		far := s.opts.Band > 0 && hit.Dist() > s.opts.Band
		if far {
			st.Far++
		}
		d := hit.Dist()
		pt := point{bound: d, dist: d, far: far, hit: hit}
		if !far && s.opts.Classifier != nil && !math.IsInf(d, 0) {
			pt.dist = d * s.opts.Classifier.Sign(p, hit)
		}
		s.cur[n] = pt
	}
	return st
}

// lowerBound returns a lower bound of the distance at p from the 3x3
// neighbors in the previous slice: d(p) >= d(q) - |p-q|.
func (s *sweeper) lowerBound(p r3.Vec, i, j, k int) float64 {
	lb := math.Inf(-1)
	for dj := -1; dj <= 1; dj++ {
		for di := -1; di <= 1; di++ {
			qi, qj := i+di, j+dj
			if qi < 0 || qj < 0 || qi >= s.nx || qj >= s.ny {
				continue
			}
			q := s.prev[qj*s.nx+qi]
			lb = math.Max(lb, q.bound-r3.Norm(r3.Sub(p, s.lat.Position(qi, qj, k-1))))
		}
	}
	return lb
}

// resolve finds the nearest triangle to p, the lattice point (i,j,k).
// certified is true if the column candidate list was used.
//
// After a full query with nearest triangle T the list for slices k..k+r holds
// every triangle whose bounds lie within U of the column segment, where U is
// the larger distance from T to either end of the segment. Distance to T is
// convex along the segment so U bounds the distance of every point of the
// segment to its nearest triangle.
func (s *sweeper) resolve(p r3.Vec, i, j, k int) (hit octree.Hit, certified bool) {
	col := &s.cols[j*s.nx+i]
	if col.valid && k <= col.until {
		return s.tree.NearestOf(p, col.cands), true
	}
	col.valid = false
	hit, ok := s.tree.Nearest(p)
	if !ok || k < col.retry || k+1 >= s.nz {
		return hit, false
	}
	reach := min(s.opts.Reach, s.nz-1-k)
	for {
		top := s.lat.Position(i, j, k+reach)
		u := math.Max(hit.Dist(), s.tree.Distance2(top, hit.Triangle).Dist())
		cands, ok := s.tree.Candidates(r3.Box{Min: p, Max: top}, u, s.opts.MaxCandidates, col.cands[:0])
		col.cands = cands
		if ok {
			col.until = k + reach
			col.valid = true
			return hit, false
		}
		if reach == 1 {
			break
		}
		reach = 1
	}
	col.retry = k + 2
	return hit, false
}

// commit stores the finished slice k in sink in index order.
func (s *sweeper) commit(k int, sink Sink) {
	for n, pt := range s.cur {
		if pt.far {
			continue
		}
		sink.Store(s.lat.Index(n%s.nx, n/s.nx, k), grid.Sample{
			Dist:    pt.dist,
			Closest: pt.hit.Point,
			Feature: pt.hit.Triangle,
		})
	}
}
