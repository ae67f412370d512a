// Command soupsdf computes the signed distance field of a triangle mesh file
// and saves it in the binary field format.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagOutput       = "output"
	flagMode         = "mode"
	flagRes          = "res"
	flagSigma        = "sigma"
	flagKeepSigma    = "keep-sigma"
	flagBand         = "band"
	flagFloat32      = "float32"
	flagClosestPoint = "closest-point"
	flagVoronoi      = "voronoi"
	flagUnsigned     = "unsigned-field"
	flagExpansion    = "expansion"
	flagNonCubic     = "non-cubic"
	flagMaxPoints    = "max-points"
	flagWorkers      = "workers"
	flagOffsetSTL    = "offset-stl"
	flagSlicePNG     = "slice-png"
	flagSlice        = "slice"
	flagPreviewPNG   = "preview-png"
	flagDebug        = "debug"

	modeSigned   = "signed"
	modeUnsigned = "unsigned"
	modeOriented = "oriented"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "soupsdf:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "soupsdf",
		Usage:     "compute a signed distance field from a triangle soup",
		ArgsUsage: "<mesh.stl|mesh.obj|mesh.ply>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagOutput,
				Aliases:  []string{"o"},
				Usage:    "field file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagMode,
				Value: modeSigned,
				Usage: "field to compute: " + modeSigned + ", " + modeUnsigned + " or " + modeOriented,
			},
			&cli.IntFlag{
				Name:  flagRes,
				Value: 64,
				Usage: "cells along each axis",
			},
			&cli.Float64Flag{
				Name:  flagSigma,
				Usage: "offset used to close the soup, zero picks one voxel diagonal",
			},
			&cli.BoolFlag{
				Name:  flagKeepSigma,
				Usage: "leave the zero level on the offset surface instead of the input",
			},
			&cli.Float64Flag{
				Name:  flagBand,
				Usage: "compute only within this distance of the surface, far points are written as +Inf",
			},
			&cli.BoolFlag{
				Name:  flagFloat32,
				Usage: "write single precision samples",
			},
			&cli.BoolFlag{
				Name:  flagClosestPoint,
				Usage: "append the closest point on the input to every sample",
			},
			&cli.BoolFlag{
				Name:  flagVoronoi,
				Usage: "compute the nearest input triangle of every sample",
			},
			&cli.StringFlag{
				Name:  flagUnsigned,
				Usage: "precomputed unsigned field file of the mesh",
			},
			&cli.Float64Flag{
				Name:  flagExpansion,
				Value: 1.5,
				Usage: "grid box size relative to the mesh bounding box",
			},
			&cli.BoolFlag{
				Name:  flagNonCubic,
				Usage: "fit the grid box to the mesh with cubic voxels instead of using a cube",
			},
			&cli.IntFlag{
				Name:  flagMaxPoints,
				Usage: "refuse grids with more points, zero uses the default limit",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "goroutines per sweep, zero uses GOMAXPROCS",
			},
			&cli.StringFlag{
				Name:  flagOffsetSTL,
				Usage: "write the cleaned offset surface to this STL file",
			},
			&cli.StringFlag{
				Name:  flagSlicePNG,
				Usage: "plot a z slice of the field to this PNG file",
			},
			&cli.IntFlag{
				Name:  flagSlice,
				Value: -1,
				Usage: "z index of the plotted slice, negative picks the middle",
			},
			&cli.StringFlag{
				Name:  flagPreviewPNG,
				Usage: "render the offset surface, or the input for other modes, to this PNG file",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "log stage timings and sweep statistics",
			},
		},
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c.Bool(flagDebug))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return run(c, logger)
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}
