package grid

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// NarrowBand is a sparse field holding samples only for lattice points near
// the surface. Points without a sample are "far".
type NarrowBand struct {
	lat Lattice
	// idx is sorted ascending; samples[n] belongs to lattice point idx[n].
	idx     []int
	samples []Sample
}

// NewNarrowBand returns an empty narrow band over l.
func NewNarrowBand(l Lattice) (*NarrowBand, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &NarrowBand{lat: l}, nil
}

// Lattice returns the lattice the band is sampled on.
func (nb *NarrowBand) Lattice() Lattice { return nb.lat }

// Resolution returns the number of cells along each axis.
func (nb *NarrowBand) Resolution() [3]int { return nb.lat.Res }

// Position returns the world position of point (i,j,k).
func (nb *NarrowBand) Position(i, j, k int) r3.Vec { return nb.lat.Position(i, j, k) }

// Len returns the number of stored samples.
func (nb *NarrowBand) Len() int { return len(nb.idx) }

// Store records a sample at flat index idx, replacing any previous one.
// Storing in ascending index order is amortized O(1).
func (nb *NarrowBand) Store(idx int, s Sample) {
	n := len(nb.idx)
	if n == 0 || nb.idx[n-1] < idx {
		nb.idx = append(nb.idx, idx)
		nb.samples = append(nb.samples, s)
		return
	}
	pos, found := slices.BinarySearch(nb.idx, idx)
	if found {
		nb.samples[pos] = s
		return
	}
	nb.idx = slices.Insert(nb.idx, pos, idx)
	nb.samples = slices.Insert(nb.samples, pos, s)
}

// Sample returns the full sample at (i,j,k). ok is false for far points.
func (nb *NarrowBand) Sample(i, j, k int) (s Sample, ok bool) {
	pos, found := slices.BinarySearch(nb.idx, nb.lat.Index(i, j, k))
	if !found {
		return Sample{Dist: math.Inf(1), Feature: -1}, false
	}
	return nb.samples[pos], true
}

// At returns the distance at (i,j,k). ok is false for far points.
func (nb *NarrowBand) At(i, j, k int) (v float64, ok bool) {
	s, ok := nb.Sample(i, j, k)
	return s.Dist, ok
}

// Value returns the distance at (i,j,k) or +Inf for far points.
func (nb *NarrowBand) Value(i, j, k int) float64 {
	v, _ := nb.At(i, j, k)
	return v
}

// Range calls fn for every stored sample in ascending index order until fn
// returns false.
func (nb *NarrowBand) Range(fn func(i, j, k int, s Sample) bool) {
	for n, idx := range nb.idx {
		i, j, k := nb.lat.Coords(idx)
		if !fn(i, j, k, nb.samples[n]) {
			return
		}
	}
}

// Filter removes every sample for which keep returns false.
func (nb *NarrowBand) Filter(keep func(s Sample) bool) {
	n := 0
	for m, s := range nb.samples {
		if keep(s) {
			nb.idx[n] = nb.idx[m]
			nb.samples[n] = s
			n++
		}
	}
	nb.idx = nb.idx[:n]
	nb.samples = nb.samples[:n]
}

// Offset adds delta to every stored sample.
func (nb *NarrowBand) Offset(delta float64) {
	for n := range nb.samples {
		nb.samples[n].Dist += delta
	}
}

// Dense expands the band into a dense grid where far points hold +Inf.
func (nb *NarrowBand) Dense(opts Options) (*Grid, error) {
	g, err := New(nb.lat, opts)
	if err != nil {
		return nil, err
	}
	for n, idx := range nb.idx {
		g.Store(idx, nb.samples[n])
	}
	return g, nil
}
