package soupsdf

import (
	"fmt"
	"math"
	"time"

	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/render"
	"github.com/soypat/soupsdf/sweep"
	"go.uber.org/zap"
)

// NarrowResult is a signed distance field restricted to a band about the
// surface.
type NarrowResult struct {
	// Field holds every lattice point whose signed distance is at most the
	// bandwidth in magnitude. Other points are far.
	Field    *grid.NarrowBand
	Removed  int
	Warnings error
	Sigma    float64
	// Offset is only set with Config.KeepOffset.
	Offset *mesh.Indexed
}

// ComputeNarrowBand computes the signed field of soup only within bandwidth
// of its zero level. Values agree with ComputeSignedField wherever they are
// stored. The grid point limit does not apply since memory grows with the
// surface area instead of the grid volume.
func ComputeNarrowBand(soup []render.Triangle3, cfg Config, bandwidth float64) (*NarrowResult, error) {
	if !(bandwidth > 0) || math.IsInf(bandwidth, 0) {
		return nil, fmt.Errorf("%w: bandwidth %g", ErrConfig, bandwidth)
	}
	p, err := newPipeline(soup, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Unsigned == nil && p.tree.Len() == 0 {
		return nil, ErrNoGeometry
	}
	start := time.Now()
	p.warnSigma()

	// Contouring at sigma only reads lattice edges and cube diagonals that
	// cross sigma, all within sigma plus a voxel diagonal of the soup.
	var unsigned render.Field = cfg.Unsigned
	if cfg.Unsigned != nil {
		if err := cfg.Unsigned.SanityCheck(); err != nil {
			return nil, fmt.Errorf("precomputed unsigned field: %w", err)
		}
	} else {
		nb, err := grid.NewNarrowBand(p.lat)
		if err != nil {
			return nil, err
		}
		stats, err := sweep.Run(p.tree, p.lat, nb, p.sweepOptions(p.sigma+2*p.hmax(), nil))
		if err != nil {
			return nil, fmt.Errorf("unsigned sweep: %w", err)
		}
		p.log.Debug("unsigned band", zap.Int("stored", nb.Len()), zap.Int("far", stats.Far))
		unsigned = nb
	}
	off, err := p.offset(unsigned)
	if err != nil {
		return nil, err
	}

	clean := off.Mesh
	band := bandwidth
	if cfg.SubtractSigma {
		band += p.sigma
	}
	nb, err := grid.NewNarrowBand(p.lat)
	if err != nil {
		return nil, err
	}
	if _, err := sweep.Run(clean.Index(cfg.Octree), p.lat, nb, p.sweepOptions(band, clean)); err != nil {
		return nil, fmt.Errorf("signed sweep: %w", err)
	}
	if cfg.SubtractSigma {
		nb.Offset(p.sigma)
	}
	nb.Filter(func(s grid.Sample) bool { return math.Abs(s.Dist) <= bandwidth })
	// Samples refer to the offset surface until replaced.
	nb.Range(func(i, j, k int, s grid.Sample) bool {
		nb.Store(p.lat.Index(i, j, k), p.closestOnSoup(p.lat.Position(i, j, k), s.Dist))
		return true
	})
	p.log.Debug("narrow band done",
		zap.Float64("bandwidth", bandwidth),
		zap.Int("stored", nb.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	res := &NarrowResult{
		Field:    nb,
		Removed:  len(off.Removed),
		Warnings: off.Warnings,
		Sigma:    p.sigma,
	}
	if cfg.KeepOffset {
		res.Offset = clean
	}
	return res, nil
}
