package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/soupsdf"
	"github.com/soypat/soupsdf/grid"
	"github.com/soypat/soupsdf/internal/preview"
	"github.com/soypat/soupsdf/internal/sliceplot"
	"github.com/soypat/soupsdf/mesh"
	"github.com/soypat/soupsdf/render"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
)

func run(c *cli.Context, log *zap.Logger) error {
	input := c.Args().First()
	if input == "" {
		return errors.New("missing input mesh")
	}
	soup, err := mesh.Load(input)
	if err != nil {
		return err
	}
	log.Info("loaded mesh", zap.String("path", input), zap.Int("triangles", len(soup)))

	cfg := soupsdf.DefaultConfig()
	res := c.Int(flagRes)
	cfg.Res = [3]int{res, res, res}
	cfg.Sigma = c.Float64(flagSigma)
	cfg.SubtractSigma = !c.Bool(flagKeepSigma)
	cfg.ClosestPoint = c.Bool(flagClosestPoint)
	cfg.Voronoi = c.Bool(flagVoronoi)
	cfg.ExpansionRatio = c.Float64(flagExpansion)
	cfg.CubicBox = !c.Bool(flagNonCubic)
	cfg.MaxGridPoints = c.Int(flagMaxPoints)
	cfg.Workers = c.Int(flagWorkers)
	cfg.Logger = log
	signed := c.String(flagMode) == modeSigned
	if !signed {
		// Flags that only make sense for the offset surface pipeline.
		for _, name := range []string{flagBand, flagOffsetSTL} {
			if c.IsSet(name) {
				return fmt.Errorf("--%s needs mode %s", name, modeSigned)
			}
		}
	}
	cfg.KeepOffset = signed && (c.String(flagOffsetSTL) != "" || c.String(flagPreviewPNG) != "")
	if path := c.String(flagUnsigned); path != "" {
		cfg.Unsigned, err = grid.LoadFile(path, cfg.MaxGridPoints)
		if err != nil {
			return err
		}
	}

	field, offset, err := compute(c, soup, cfg, log)
	if err != nil {
		return err
	}
	prec := grid.Float64
	if c.Bool(flagFloat32) {
		prec = grid.Float32
	}
	if err := field.SaveFile(c.String(flagOutput), prec); err != nil {
		return err
	}
	latRes := field.Lattice().Res
	log.Info("saved field",
		zap.String("path", c.String(flagOutput)),
		zap.Ints("resolution", latRes[:]),
		zap.Bool("float32", prec == grid.Float32),
	)
	model := soup
	if offset != nil {
		model = offset.Triangles()
	}
	return extras(c, model, field, log)
}

// compute returns the requested field and, with cfg.KeepOffset, the offset
// surface it was signed against.
func compute(c *cli.Context, soup []render.Triangle3, cfg soupsdf.Config, log *zap.Logger) (*grid.Grid, *mesh.Indexed, error) {
	switch mode := c.String(flagMode); mode {
	case modeUnsigned:
		g, err := soupsdf.ComputeUnsignedField(soup, cfg)
		return g, nil, err
	case modeOriented:
		g, err := soupsdf.ComputeOrientedField(soup, cfg)
		return g, nil, err
	case modeSigned:
	default:
		return nil, nil, fmt.Errorf("unknown mode %q", mode)
	}
	if band := c.Float64(flagBand); band > 0 {
		nr, err := soupsdf.ComputeNarrowBand(soup, cfg, band)
		if err != nil {
			return nil, nil, err
		}
		logWarnings(log, nr.Warnings, nr.Removed)
		g, err := nr.Field.Dense(grid.Options{
			ClosestPoint: cfg.ClosestPoint,
			Feature:      cfg.Voronoi,
			MaxPoints:    cfg.MaxGridPoints,
		})
		return g, nr.Offset, err
	}
	r, err := soupsdf.ComputeSignedField(soup, cfg)
	if err != nil {
		return nil, nil, err
	}
	logWarnings(log, r.Warnings, r.Removed)
	return r.Field, r.Offset, nil
}

func logWarnings(log *zap.Logger, warnings error, removed int) {
	log.Info("offset surface cleaned", zap.Int("removed", removed))
	for _, w := range multierr.Errors(warnings) {
		log.Warn(w.Error())
	}
}

// extras writes the optional STL and PNG outputs. model is the offset
// surface in signed mode and the input soup otherwise.
func extras(c *cli.Context, model []render.Triangle3, field *grid.Grid, log *zap.Logger) error {
	if path := c.String(flagOffsetSTL); path != "" {
		if err := render.CreateSTL(path, render.NewSliceRenderer(model)); err != nil {
			return err
		}
		log.Info("saved offset surface", zap.String("path", path), zap.Int("faces", len(model)))
	}
	if path := c.String(flagSlicePNG); path != "" {
		k := c.Int(flagSlice)
		if k < 0 {
			k = field.Resolution()[2] / 2
		}
		if err := sliceplot.SavePNG(path, field, k, 6*vg.Inch); err != nil {
			return err
		}
		log.Info("saved slice plot", zap.String("path", path), zap.Int("slice", k))
	}
	if path := c.String(flagPreviewPNG); path != "" {
		if err := preview.SavePNG(path, model, preview.DefaultOptions()); err != nil {
			return err
		}
		log.Info("saved preview", zap.String("path", path))
	}
	if lo := minValue(field); lo >= 0 && c.String(flagMode) != modeUnsigned {
		log.Warn("field has no inside points, the mesh may be open beyond sigma", zap.Float64("min", lo))
	}
	return nil
}

func minValue(g *grid.Grid) float64 {
	m := math.Inf(1)
	for _, v := range g.Data() {
		m = math.Min(m, v)
	}
	return m
}
