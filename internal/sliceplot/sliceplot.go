// Package sliceplot draws z sections of sampled distance fields as heat maps.
package sliceplot

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// section adapts slice k of a field to plotter.GridXYZ. Unknown samples
// are NaN so the heat map leaves them blank.
type section struct {
	f render.Field
	k int
}

func (s section) Dims() (c, r int) {
	res := s.f.Resolution()
	return res[0] + 1, res[1] + 1
}

func (s section) Z(c, r int) float64 {
	v := s.f.Value(c, r, s.k)
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func (s section) X(c int) float64 { return s.f.Position(c, 0, s.k).X }
func (s section) Y(r int) float64 { return s.f.Position(0, r, s.k).Y }

// Plot returns a heat map of slice k of f with a diverging palette centered
// on zero and, if every sample of the slice is known, the zero contour.
func Plot(f render.Field, k int) (*plot.Plot, error) {
	res := f.Resolution()
	if k < 0 || k > res[2] {
		return nil, fmt.Errorf("slice %d outside [0,%d]", k, res[2])
	}
	s := section{f: f, k: k}
	limit, complete := 0.0, true
	nc, nr := s.Dims()
	for r := 0; r < nr; r++ {
		for c := 0; c < nc; c++ {
			v := s.Z(c, r)
			if math.IsNaN(v) {
				complete = false
				continue
			}
			limit = math.Max(limit, math.Abs(v))
		}
	}
	if limit == 0 {
		return nil, errors.New("slice holds no nonzero samples")
	}
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-limit)
	cmap.SetMax(limit)
	heat := plotter.NewHeatMap(s, cmap.Palette(255))
	heat.Min, heat.Max = -limit, limit

	p := plot.New()
	p.Title.Text = fmt.Sprintf("z = %.4g", f.Position(0, 0, k).Z)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(heat)
	if complete {
		p.Add(plotter.NewContour(s, []float64{0}, palette.Heat(1, 1)))
	}
	return p, nil
}

// WritePNG writes a size by size PNG of slice k of f to w.
func WritePNG(w io.Writer, f render.Field, k int, size vg.Length) error {
	p, err := Plot(f, k)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes a PNG of slice k of f to path.
func SavePNG(path string, f render.Field, k int, size vg.Length) error {
	p, err := Plot(f, k)
	if err != nil {
		return err
	}
	return p.Save(size, size, path)
}
