// Package preview renders triangle meshes to shaded PNG images.
package preview

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// View places the camera. The mesh is scaled to fit the bi-unit cube
// before rendering so View is given in those coordinates.
type View struct {
	// LookAt is the point the camera looks at.
	LookAt r3.Vec
	// Up is the direction of the top of the image.
	Up r3.Vec
	// Eye is the camera position.
	Eye       r3.Vec
	Near, Far float64
}

// DefaultView is an isometric view from the +X+Y+Z octant.
func DefaultView() View {
	return View{
		Up:   r3.Vec{Z: 1},
		Eye:  d3.Elem(2.4),
		Near: 1,
		Far:  10,
	}
}

// Options configures Render.
type Options struct {
	Width, Height int
	// Supersample renders at a multiple of the output size and downsamples
	// for antialiasing.
	Supersample int
	View        View
	// Color and Background are hex colors.
	Color, Background string
}

// DefaultOptions returns a 960x540 isometric render.
func DefaultOptions() Options {
	return Options{
		Width:       960,
		Height:      540,
		Supersample: 2,
		View:        DefaultView(),
		Color:       "#468966",
		Background:  "#FFF8E3",
	}
}

// Render draws model with a phong shader.
func Render(model []render.Triangle3, opts Options) (image.Image, error) {
	if len(model) == 0 {
		return nil, errors.New("empty model")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("invalid image size")
	}
	scale := opts.Supersample
	if scale < 1 {
		scale = 1
	}
	tris := make([]*fauxgl.Triangle, len(model))
	for i, t := range model {
		tris[i] = fauxgl.NewTriangleForPoints(toFauxgl(t[0]), toFauxgl(t[1]), toFauxgl(t[2]))
	}
	mesh := fauxgl.NewTriangleMesh(tris)
	const fovy = 30 // vertical field of view in degrees
	var (
		view   = opts.View
		eye    = toFauxgl(view.Eye)
		center = toFauxgl(view.LookAt)
		up     = toFauxgl(view.Up)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)

	mesh.BiUnitCube()
	context := fauxgl.NewContext(opts.Width*scale, opts.Height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor(opts.Background))
	aspect := float64(opts.Width) / float64(opts.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor(opts.Color)
	context.Shader = shader
	context.DrawMesh(mesh)
	img := context.Image()
	if scale > 1 {
		img = resize.Resize(uint(opts.Width), uint(opts.Height), img, resize.Bilinear)
	}
	return img, nil
}

// SavePNG renders model to a PNG file at path.
func SavePNG(path string, model []render.Triangle3, opts Options) error {
	img, err := Render(model, opts)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func toFauxgl(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}
