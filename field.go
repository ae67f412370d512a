package soupsdf

import (
	"fmt"
	"math"
	"time"

	"github.com/soypat/soupsdf/containment"
	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/octree"
	"github.com/soypat/soupsdf/render"
	"github.com/soypat/soupsdf/sweep"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Result is a dense signed distance field.
type Result struct {
	// Field is negative inside the soup. It carries closest point and
	// nearest triangle buffers when requested, both referring to the input.
	Field *grid.Grid
	// Removed is the number of interior shells of the offset surface.
	Removed int
	// Warnings aggregates non fatal problems such as inconclusive
	// containment tests.
	Warnings error
	// Sigma is the offset used.
	Sigma float64
	// Offset is the cleaned offset surface the field was signed against.
	// Only set with Config.KeepOffset.
	Offset *mesh.Indexed
}

// pipeline holds the state shared by the field computations of one soup.
type pipeline struct {
	cfg   Config
	log   *zap.Logger
	tree  *octree.Tree
	lat   grid.Lattice
	sigma float64
}

func newPipeline(soup []render.Triangle3, cfg Config) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	tree := octree.Build(soup, cfg.Octree)
	p := &pipeline{cfg: cfg, log: cfg.logger(), tree: tree}
	bounds, ok := tree.Bounds()
	if !ok && cfg.Box == nil && cfg.Unsigned == nil {
		return nil, fmt.Errorf("%w: cannot size grid for a soup of %d unusable triangles", ErrNoGeometry, len(soup))
	}
	p.lat = cfg.lattice(bounds)
	if err := p.lat.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	hmax := d3.Max(p.lat.VoxelSize())
	p.sigma = cfg.Sigma
	if p.sigma == 0 {
		p.sigma = math.Sqrt(3) * hmax
	}
	p.log.Debug("octree built",
		zap.Int("triangles", len(soup)),
		zap.Int("indexed", tree.Len()),
		zap.Int("leaves", tree.Leaves()),
		zap.Ints("resolution", p.lat.Res[:]),
		zap.Duration("elapsed", time.Since(start)),
	)
	return p, nil
}

func (p *pipeline) sweepOptions(band float64, c sweep.Classifier) sweep.Options {
	return sweep.Options{
		Reach:         p.cfg.Reach,
		MaxCandidates: p.cfg.MaxCandidates,
		Workers:       p.cfg.Workers,
		Band:          band,
		Classifier:    c,
		Logger:        p.log,
	}
}

func (p *pipeline) hmax() float64 { return d3.Max(p.lat.VoxelSize()) }

// warnSigma logs offsets too small to keep the offset surface inside the
// voxels that straddle the soup.
func (p *pipeline) warnSigma() {
	if p.sigma <= math.Sqrt(3)/2*p.hmax() {
		p.log.Warn("sigma is below half a voxel diagonal, offset surface may leak between shells",
			zap.Float64("sigma", p.sigma), zap.Float64("voxel", p.hmax()))
	}
}

// unsigned returns a new unsigned field of the soup. A precomputed field is
// cloned unless it lacks a requested buffer.
func (p *pipeline) unsigned() (*grid.Grid, error) {
	cfg := p.cfg
	if u := cfg.Unsigned; u != nil {
		if err := u.SanityCheck(); err != nil {
			return nil, fmt.Errorf("precomputed unsigned field: %w", err)
		}
		if (!cfg.ClosestPoint || u.HasClosestPoint()) && (!cfg.Voronoi || u.HasFeature()) {
			return u.Clone(), nil
		}
		p.log.Info("precomputed unsigned field lacks closest point buffers, recomputing")
	}
	g, err := grid.New(p.lat, grid.Options{
		ClosestPoint: cfg.ClosestPoint,
		Feature:      cfg.Voronoi,
		MaxPoints:    cfg.MaxGridPoints,
	})
	if err != nil {
		return nil, err
	}
	if _, err := sweep.Run(p.tree, p.lat, g, p.sweepOptions(0, nil)); err != nil {
		return nil, fmt.Errorf("unsigned sweep: %w", err)
	}
	return g, nil
}

// offset contours f at sigma and removes the interior shells.
func (p *pipeline) offset(f render.Field) (containment.Result, error) {
	start := time.Now()
	verts, faces := render.NewIsosurface(f, p.sigma).Mesh()
	if len(faces) == 0 {
		return containment.Result{}, fmt.Errorf("%w: empty offset surface at sigma %g", ErrNoGeometry, p.sigma)
	}
	res, err := containment.Resolver{
		Tolerance: p.cfg.ContainmentTolerance,
		Octree:    p.cfg.Octree,
		Logger:    p.log,
	}.Resolve(mesh.NewIndexed(verts, faces))
	if err != nil {
		return res, err
	}
	p.log.Debug("offset surface extracted",
		zap.Float64("sigma", p.sigma),
		zap.Int("vertices", len(verts)),
		zap.Int("faces", len(faces)),
		zap.Int("kept", len(res.Kept)),
		zap.Int("removed", len(res.Removed)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// distSink overwrites the distances of a grid and leaves its closest point
// and feature buffers untouched.
type distSink struct{ g *grid.Grid }

func (s distSink) Store(idx int, smp grid.Sample) { s.g.Data()[idx] = smp.Dist }

// ComputeUnsignedField samples the distance to soup on a grid sized by the
// bounding box policy of cfg. Points get +Inf when no triangle is usable.
func ComputeUnsignedField(soup []render.Triangle3, cfg Config) (*grid.Grid, error) {
	p, err := newPipeline(soup, cfg)
	if err != nil {
		return nil, err
	}
	return p.unsigned()
}

// ComputeSignedField computes a signed distance field of soup, negative
// inside. The unsigned field of the soup is contoured at Sigma, interior
// shells of that offset surface are discarded and the distance to the
// remaining surface is signed with its pseudo-normals.
func ComputeSignedField(soup []render.Triangle3, cfg Config) (*Result, error) {
	p, err := newPipeline(soup, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Unsigned == nil && p.tree.Len() == 0 {
		return nil, ErrNoGeometry
	}
	start := time.Now()
	u, err := p.unsigned()
	if err != nil {
		return nil, err
	}
	p.warnSigma()
	off, err := p.offset(u)
	if err != nil {
		return nil, err
	}
	clean := off.Mesh
	_, err = sweep.Run(clean.Index(cfg.Octree), p.lat, distSink{u}, p.sweepOptions(0, clean))
	if err != nil {
		return nil, fmt.Errorf("signed sweep: %w", err)
	}
	if cfg.SubtractSigma {
		u.Offset(p.sigma)
	}
	p.log.Debug("signed field done", zap.Duration("elapsed", time.Since(start)))
	res := &Result{
		Field:    u,
		Removed:  len(off.Removed),
		Warnings: off.Warnings,
		Sigma:    p.sigma,
	}
	if cfg.KeepOffset {
		res.Offset = clean
	}
	return res, nil
}

// OffsetSurface is the surface at distance Sigma outside a soup that signed
// fields are computed against.
type OffsetSurface struct {
	// Mesh holds the outer shells only.
	Mesh     *mesh.Indexed
	Removed  int
	Warnings error
	Sigma    float64
}

// ComputeOffsetSurface extracts and cleans the offset surface of soup the
// same way ComputeSignedField does without computing the signed field.
func ComputeOffsetSurface(soup []render.Triangle3, cfg Config) (*OffsetSurface, error) {
	p, err := newPipeline(soup, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Unsigned == nil && p.tree.Len() == 0 {
		return nil, ErrNoGeometry
	}
	u, err := p.unsigned()
	if err != nil {
		return nil, err
	}
	p.warnSigma()
	off, err := p.offset(u)
	if err != nil {
		return nil, err
	}
	return &OffsetSurface{Mesh: off.Mesh, Removed: len(off.Removed), Warnings: off.Warnings, Sigma: p.sigma}, nil
}

// ComputeOrientedField signs the distance to soup directly with the
// pseudo-normals of the welded soup. It requires a closed, consistently
// oriented surface and skips the offset surface entirely, so Sigma and
// SubtractSigma are ignored.
func ComputeOrientedField(soup []render.Triangle3, cfg Config) (*grid.Grid, error) {
	p, err := newPipeline(soup, cfg)
	if err != nil {
		return nil, err
	}
	m, err := mesh.Weld(soup, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGeometry, err)
	}
	tree := m.Index(cfg.Octree)
	if cfg.ClosestPoint || cfg.Voronoi {
		// Buffers must refer to the input soup, not the welded faces.
		u, err := p.unsigned()
		if err != nil {
			return nil, err
		}
		if _, err := sweep.Run(tree, p.lat, distSink{u}, p.sweepOptions(0, m)); err != nil {
			return nil, fmt.Errorf("signed sweep: %w", err)
		}
		return u, nil
	}
	g, err := grid.New(p.lat, grid.Options{MaxPoints: cfg.MaxGridPoints})
	if err != nil {
		return nil, err
	}
	if _, err := sweep.Run(tree, p.lat, g, p.sweepOptions(0, m)); err != nil {
		return nil, fmt.Errorf("signed sweep: %w", err)
	}
	return g, nil
}

// closestOnSoup returns the sample of the input soup nearest to pos with
// dist in place of the distance.
func (p *pipeline) closestOnSoup(pos r3.Vec, dist float64) grid.Sample {
	s := grid.Sample{Dist: dist, Feature: -1}
	if !p.cfg.ClosestPoint && !p.cfg.Voronoi {
		return s
	}
	if hit, ok := p.tree.Nearest(pos); ok {
		if p.cfg.ClosestPoint {
			s.Closest = hit.Point
		}
		if p.cfg.Voronoi {
			s.Feature = hit.Triangle
		}
	}
	return s
}
