// Package octree implements an exact nearest triangle index over a triangle soup.
package octree

import (
	"errors"
	"math"

	"github.com/soypat/soupsdf/internal/d3"
	"github.com/soypat/soupsdf/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoGeometry is returned by callers that need a nearest triangle from a
// tree built over no valid triangles.
var ErrNoGeometry = errors.New("no geometry")

// degenerateArea is the area, relative to the squared soup diameter, below
// which a triangle is not indexed.
const degenerateArea = 1e-12

// Config controls octree subdivision. A node becomes a leaf when it holds at
// most MaxTriangles triangles or sits at depth MaxDepth.
type Config struct {
	MaxTriangles int
	MaxDepth     int
}

// DefaultConfig returns the subdivision parameters used when none are given.
func DefaultConfig() Config {
	return Config{MaxTriangles: 15, MaxDepth: 10}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c == (Config{}) {
		return def
	}
	if c.MaxTriangles <= 0 {
		c.MaxTriangles = def.MaxTriangles
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = def.MaxDepth
	}
	return c
}

// Hit is the result of a nearest triangle query.
type Hit struct {
	Triangle int32
	Dist2    float64
	// Point is the closest point on the triangle.
	Point   r3.Vec
	Feature d3.Feature
}

// Dist returns the distance from the query point to the hit.
func (h Hit) Dist() float64 { return math.Sqrt(h.Dist2) }

type node struct {
	// box is the cell of the node.
	box d3.Box
	// bounds is the union of the bounding boxes of every triangle below
	// the node. Distance to bounds is the query lower bound.
	bounds d3.Box
	// children is the index of the first of 8 contiguous children. Zero
	// for leaves since the root is never a child.
	children int32
	// start and count locate the leaf triangle ids in Tree.ids.
	start, count int32
	depth        int32
}

func (n *node) isLeaf() bool { return n.children == 0 }

// Tree is an immutable octree over triangles. It is safe for concurrent queries.
type Tree struct {
	tris  []d3.Triangle
	boxes []d3.Box
	valid int
	nodes []node
	ids   []int32
	cfg   Config
	// slack is an absolute tolerance added to pruning comparisons so that
	// rounding in the closest point never prunes an exact tie.
	slack float64
}

// Build indexes the non-degenerate triangles of tris. Triangle ids are
// indices into tris. An empty or fully degenerate soup yields a tree with
// no nodes whose queries report no geometry.
func Build(tris []render.Triangle3, cfg Config) *Tree {
	cfg = cfg.withDefaults()
	t := &Tree{
		tris:  make([]d3.Triangle, len(tris)),
		boxes: make([]d3.Box, len(tris)),
		cfg:   cfg,
	}
	soup := d3.EmptyBox()
	for i, tri := range tris {
		t.tris[i] = d3.Triangle(tri)
		t.boxes[i] = t.tris[i].Bounds()
		if d3.IsFinite(tri[0]) && d3.IsFinite(tri[1]) && d3.IsFinite(tri[2]) {
			soup = soup.Extend(t.boxes[i])
		}
	}
	if soup.IsEmpty() {
		return t
	}
	diam2 := r3.Norm2(soup.Size())
	t.slack = 1e-24 * diam2
	ids := make([]int32, 0, len(tris))
	for i, tri := range t.tris {
		if !d3.IsFinite(tri[0]) || !d3.IsFinite(tri[1]) || !d3.IsFinite(tri[2]) {
			continue
		}
		if a := tri.Area(); a == 0 || a < degenerateArea*diam2 {
			continue
		}
		ids = append(ids, int32(i))
	}
	t.valid = len(ids)
	if len(ids) == 0 {
		return t
	}
	t.nodes = append(t.nodes, node{box: soup})
	t.subdivide(0, ids)
	return t
}

// subdivide fills node n with ids, splitting it into 8 children at its center
// until the leaf conditions are met.
func (t *Tree) subdivide(n int32, ids []int32) {
	bounds := d3.EmptyBox()
	for _, id := range ids {
		bounds = bounds.Extend(t.boxes[id])
	}
	t.nodes[n].bounds = bounds
	nd := t.nodes[n]
	if len(ids) <= t.cfg.MaxTriangles || int(nd.depth) >= t.cfg.MaxDepth {
		t.makeLeaf(n, ids)
		return
	}
	var split [8][]int32
	for c := range split {
		octant := nd.box.Octant(c)
		for _, id := range ids {
			// Triangles straddling a split are duplicated into every
			// child their bounding box touches.
			if octant.Overlaps(t.boxes[id]) {
				split[c] = append(split[c], id)
			}
		}
	}
	first := int32(len(t.nodes))
	t.nodes[n].children = first
	for c := range split {
		t.nodes = append(t.nodes, node{box: nd.box.Octant(c), depth: nd.depth + 1})
	}
	for c := range split {
		t.subdivide(first+int32(c), split[c])
	}
}

func (t *Tree) makeLeaf(n int32, ids []int32) {
	t.nodes[n].start = int32(len(t.ids))
	t.nodes[n].count = int32(len(ids))
	t.ids = append(t.ids, ids...)
}

// Len returns the number of indexed (non-degenerate) triangles.
func (t *Tree) Len() int { return t.valid }

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() (n int) {
	for i := range t.nodes {
		if t.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}

// Bounds returns the bounding box of the indexed triangles. ok is false if
// the tree holds no geometry.
func (t *Tree) Bounds() (box r3.Box, ok bool) {
	if len(t.nodes) == 0 {
		return box, false
	}
	return r3.Box(t.nodes[0].bounds), true
}

// Triangle returns the triangle with the given id.
func (t *Tree) Triangle(id int32) d3.Triangle { return t.tris[id] }

// Walk calls fn for every leaf in depth first order with its cell, depth and
// triangle ids. Walk stops early if fn returns false.
func (t *Tree) Walk(fn func(box r3.Box, depth int, ids []int32) bool) {
	if len(t.nodes) == 0 {
		return
	}
	stack := []int32{0}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.isLeaf() {
			if !fn(r3.Box(n.box), int(n.depth), t.ids[n.start:n.start+n.count]) {
				return
			}
			continue
		}
		for c := int32(7); c >= 0; c-- {
			stack = append(stack, n.children+c)
		}
	}
}

// Distance2 returns the closest point on triangle id to p.
func (t *Tree) Distance2(p r3.Vec, id int32) Hit {
	cp, feat := t.tris[id].Closest(p)
	return Hit{Triangle: id, Dist2: r3.Norm2(r3.Sub(p, cp)), Point: cp, Feature: feat}
}

// Closer reports whether a is strictly closer than b, breaking distance ties
// by lowest triangle id.
func Closer(a, b Hit) bool {
	return a.Dist2 < b.Dist2 || (a.Dist2 == b.Dist2 && a.Triangle < b.Triangle)
}

// prunable reports whether a lower bound lb cannot contain a hit at least as
// close as best2.
func (t *Tree) prunable(lb, best2 float64) bool {
	return lb > best2+best2*1e-12+t.slack
}
