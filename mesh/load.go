package mesh

import (
	"fmt"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// Load reads a triangle soup from an STL, OBJ or PLY file. The format is
// chosen by file extension.
func Load(path string) ([]render.Triangle3, error) {
	m, err := fauxgl.LoadMesh(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	soup := make([]render.Triangle3, len(m.Triangles))
	for i, t := range m.Triangles {
		soup[i] = render.Triangle3{
			fromFauxgl(t.V1.Position),
			fromFauxgl(t.V2.Position),
			fromFauxgl(t.V3.Position),
		}
	}
	return soup, nil
}

func fromFauxgl(v fauxgl.Vector) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}
