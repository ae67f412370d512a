package soupsdf_test

import (
	"math"
	"testing"

	"github.com/soypat/soupsdf"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, soupsdf.DefaultConfig().Validate())
	for name, mod := range map[string]func(*soupsdf.Config){
		"zero resolution":   func(c *soupsdf.Config) { c.Res[1] = 0 },
		"negative sigma":    func(c *soupsdf.Config) { c.Sigma = -1 },
		"NaN sigma":         func(c *soupsdf.Config) { c.Sigma = math.NaN() },
		"shrinking box":     func(c *soupsdf.Config) { c.ExpansionRatio = 0.5 },
		"tolerance":         func(c *soupsdf.Config) { c.ContainmentTolerance = 1 },
		"negative workers":  func(c *soupsdf.Config) { c.Workers = -2 },
		"degenerate box":    func(c *soupsdf.Config) { c.Box = &r3.Box{Max: r3.Vec{X: 1, Y: 1}} },
		"inverted box":      func(c *soupsdf.Config) { c.Box = &r3.Box{Min: r3.Vec{X: 1, Y: 1, Z: 1}} },
		"negative maxpoint": func(c *soupsdf.Config) { c.MaxGridPoints = -1 },
	} {
		cfg := soupsdf.DefaultConfig()
		mod(&cfg)
		err := cfg.Validate()
		require.ErrorIs(t, err, soupsdf.ErrConfig, name)
		_, err = soupsdf.ComputeSignedField(cubeSoup(), cfg)
		require.ErrorIs(t, err, soupsdf.ErrConfig, name)
	}
}

func TestGridBox(t *testing.T) {
	soup := r3.Box{Max: r3.Vec{X: 2, Y: 1, Z: 1}}
	cube := soupsdf.GridBox(soup, [3]int{8, 8, 8}, 1.5, true)
	require.Equal(t, r3.Box{Min: r3.Vec{X: -0.5, Y: -1, Z: -1}, Max: r3.Vec{X: 2.5, Y: 2, Z: 2}}, cube)

	// Voxels are cubes of the largest scaled voxel side.
	fit := soupsdf.GridBox(soup, [3]int{4, 2, 2}, 1.5, false)
	require.InDeltaSlice(t, []float64{-0.5, -0.25, -0.25}, []float64{fit.Min.X, fit.Min.Y, fit.Min.Z}, 1e-12)
	require.InDeltaSlice(t, []float64{2.5, 1.25, 1.25}, []float64{fit.Max.X, fit.Max.Y, fit.Max.Z}, 1e-12)
	grow := soupsdf.GridBox(soup, [3]int{2, 2, 2}, 1.5, false)
	size := r3.Sub(grow.Max, grow.Min)
	require.InDeltaSlice(t, []float64{3, 3, 3}, []float64{size.X, size.Y, size.Z}, 1e-12)

	// A flat soup still gets a valid box.
	flat := soupsdf.GridBox(r3.Box{Max: r3.Vec{X: 1, Y: 1}}, [3]int{4, 4, 4}, 1.5, false)
	require.Greater(t, flat.Max.Z-flat.Min.Z, 0.0)
}

func TestDefaultBoxContainsSoup(t *testing.T) {
	cfg := soupsdf.DefaultConfig()
	cfg.Res = [3]int{8, 8, 8}
	u, err := soupsdf.ComputeUnsignedField(cubeSoup(), cfg)
	require.NoError(t, err)
	b := u.Bounds()
	require.Equal(t, r3.Vec{X: -1.5, Y: -1.5, Z: -1.5}, b.Min)
	require.Equal(t, r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, b.Max)
}
