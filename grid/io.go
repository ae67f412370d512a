package grid

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Precision selects the sample type of a saved field.
type Precision int

const (
	Float64 Precision = iota
	Float32
)

// fileHeader is the fixed size prefix of a field file. A negative ResX
// marks single precision samples.
type fileHeader struct {
	ResX, ResY, ResZ int32
	Min, Max         [3]float64
}

// Save writes the grid to w in the binary field format. The closest point
// section is written when the grid carries closest points.
func (g *Grid) Save(w io.Writer, prec Precision) error {
	l := g.lat
	for _, r := range l.Res {
		if r > math.MaxInt32 {
			return fmt.Errorf("%w: resolution %v does not fit file header", ErrResolution, l.Res)
		}
	}
	hdr := fileHeader{
		ResX: int32(l.Res[0]), ResY: int32(l.Res[1]), ResZ: int32(l.Res[2]),
		Min: [3]float64{l.Box.Min.X, l.Box.Min.Y, l.Box.Min.Z},
		Max: [3]float64{l.Box.Max.X, l.Box.Max.Y, l.Box.Max.Z},
	}
	if prec == Float32 {
		hdr.ResX = -hdr.ResX
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := writeFloats(bw, g.dist, prec); err != nil {
		return err
	}
	if g.closest != nil {
		flat := make([]float64, 0, 3*len(g.closest))
		for _, p := range g.closest {
			flat = append(flat, p.X, p.Y, p.Z)
		}
		if err := writeFloats(bw, flat, prec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the grid to a file at path.
func (g *Grid) SaveFile(path string, prec Precision) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = g.Save(fp, prec); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// Load reads a grid in the binary field format. The header is validated and
// the lattice size checked against maxPoints (zero selects DefaultMaxPoints)
// before samples are allocated. Short reads, trailing garbage and NaN samples
// fail with ErrFormat and no grid is returned.
func Load(r io.Reader, maxPoints int) (*Grid, error) {
	br := bufio.NewReader(r)
	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	prec := Float64
	if hdr.ResX < 0 {
		prec = Float32
		hdr.ResX = -hdr.ResX
	}
	l := Lattice{
		Res: [3]int{int(hdr.ResX), int(hdr.ResY), int(hdr.ResZ)},
		Box: r3.Box{
			Min: r3.Vec{X: hdr.Min[0], Y: hdr.Min[1], Z: hdr.Min[2]},
			Max: r3.Vec{X: hdr.Max[0], Y: hdr.Max[1], Z: hdr.Max[2]},
		},
	}
	if err := l.checkSize(maxPoints); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	n := l.Len()
	dist, err := readFloats(br, n, prec)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %d samples: %v", ErrFormat, n, err)
	}
	for idx, v := range dist {
		if math.IsNaN(v) {
			i, j, k := l.Coords(idx)
			return nil, fmt.Errorf("%w: NaN sample at (%d,%d,%d)", ErrFormat, i, j, k)
		}
	}
	g := &Grid{lat: l, dist: dist}

	// Optional closest point section runs to end of stream.
	if _, err := br.Peek(1); err == io.EOF {
		return g, nil
	}
	flat, err := readFloats(br, 3*n, prec)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %d closest points: %v", ErrFormat, n, err)
	}
	if _, err := br.Peek(1); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after closest points", ErrFormat)
	}
	g.closest = make([]r3.Vec, n)
	for i := range g.closest {
		g.closest[i] = r3.Vec{X: flat[3*i], Y: flat[3*i+1], Z: flat[3*i+2]}
	}
	if err := g.SanityCheck(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return g, nil
}

// LoadFile reads a grid from the file at path.
func LoadFile(path string, maxPoints int) (*Grid, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	g, err := Load(fp, maxPoints)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func writeFloats(w io.Writer, data []float64, prec Precision) error {
	if prec == Float64 {
		return binary.Write(w, binary.LittleEndian, data)
	}
	const chunk = 1 << 12
	buf := make([]float32, 0, chunk)
	for i, v := range data {
		buf = append(buf, float32(v))
		if len(buf) == chunk || i == len(data)-1 {
			if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	return nil
}

func readFloats(r io.Reader, n int, prec Precision) ([]float64, error) {
	if prec == Float64 {
		data := make([]float64, n)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, noEOF(err)
		}
		return data, nil
	}
	data := make([]float64, 0, n)
	const chunk = 1 << 12
	buf := make([]float32, chunk)
	for len(data) < n {
		b := buf[:min(chunk, n-len(data))]
		if err := binary.Read(r, binary.LittleEndian, b); err != nil {
			return nil, noEOF(err)
		}
		for _, f := range b {
			if math32.IsNaN(f) {
				return nil, errors.New("NaN single precision sample")
			}
			data = append(data, float64(f))
		}
	}
	return data, nil
}

// noEOF converts a clean EOF in the middle of a section into an unexpected one.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
