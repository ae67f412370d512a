package preview_test

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/soupsdf/internal/preview"
	"github.com/soypat/soupsdf/render"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

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

func TestRender(t *testing.T) {
	opts := preview.DefaultOptions()
	opts.Width, opts.Height = 64, 48
	img, err := preview.Render(cubeSoup(), opts)
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
	require.Equal(t, 48, img.Bounds().Dy())

	bg := fauxgl.HexColor(opts.Background)
	r, g, b, _ := img.At(32, 24).RGBA()
	// The cube covers the center of the image.
	require.False(t, r>>8 == uint32(bg.R*255) && g>>8 == uint32(bg.G*255) && b>>8 == uint32(bg.B*255))

	_, err = preview.Render(nil, opts)
	require.Error(t, err)
	opts.Width = 0
	_, err = preview.Render(cubeSoup(), opts)
	require.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	opts := preview.DefaultOptions()
	opts.Width, opts.Height, opts.Supersample = 40, 30, 1
	path := filepath.Join(t.TempDir(), "cube.png")
	require.NoError(t, preview.SavePNG(path, cubeSoup(), opts))
	fp, err := os.Open(path)
	require.NoError(t, err)
	defer fp.Close()
	cfg, err := png.DecodeConfig(fp)
	require.NoError(t, err)
	require.Equal(t, 40, cfg.Width)
	require.Equal(t, 30, cfg.Height)
}
