package octree

import (
	"container/heap"
	"math"
	"slices"

	"github.com/soypat/soupsdf/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

type queueItem struct {
	lb   float64
	node int32
}

// nodeQueue is a min-heap of nodes ordered by lower bound distance.
type nodeQueue []queueItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].lb < q[j].lb }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// Nearest returns the triangle closest to p. Nodes are visited best first by
// the distance from p to their triangle bounds and pruned once that bound
// exceeds the best distance found, so the result is the exact global nearest
// triangle. Ties are broken by lowest triangle id. ok is false when the tree
// indexes no triangles.
func (t *Tree) Nearest(p r3.Vec) (best Hit, ok bool) {
	return t.nearest(p, math.Inf(1))
}

// NearestWithin is like Nearest but only considers triangles within squared
// distance max2 of p. ok is false if there are none.
func (t *Tree) NearestWithin(p r3.Vec, max2 float64) (best Hit, ok bool) {
	return t.nearest(p, max2)
}

func (t *Tree) nearest(p r3.Vec, max2 float64) (best Hit, ok bool) {
	if len(t.nodes) == 0 {
		return Hit{Triangle: -1, Dist2: math.Inf(1)}, false
	}
	best = Hit{Triangle: math.MaxInt32, Dist2: max2}
	queue := make(nodeQueue, 0, 32)
	heap.Push(&queue, queueItem{lb: t.nodes[0].bounds.MinDist2(p), node: 0})
	for queue.Len() > 0 {
		it := heap.Pop(&queue).(queueItem)
		if t.prunable(it.lb, best.Dist2) {
			break // Every remaining node is at least as far.
		}
		n := &t.nodes[it.node]
		if n.isLeaf() {
			for _, id := range t.ids[n.start : n.start+n.count] {
				if t.prunable(t.boxes[id].MinDist2(p), best.Dist2) {
					continue
				}
				h := t.Distance2(p, id)
				if h.Dist2 <= max2 && Closer(h, best) {
					best = h
					ok = true
				}
			}
			continue
		}
		for c := int32(0); c < 8; c++ {
			child := n.children + c
			if t.nodes[child].count == 0 && t.nodes[child].isLeaf() {
				continue // Empty octant.
			}
			lb := t.nodes[child].bounds.MinDist2(p)
			if !t.prunable(lb, best.Dist2) {
				heap.Push(&queue, queueItem{lb: lb, node: child})
			}
		}
	}
	if !ok {
		return Hit{Triangle: -1, Dist2: math.Inf(1)}, false
	}
	return best, true
}

// Candidates appends to dst the sorted, unique ids of every triangle whose
// bounding box lies within radius of span and returns the extended slice.
// The result is a superset of the triangles within radius of any point of
// span. Collection stops early once more than limit ids are found, in which
// case ok is false and the returned ids are incomplete. A non-positive limit
// collects everything.
func (t *Tree) Candidates(span r3.Box, radius float64, limit int, dst []int32) (_ []int32, ok bool) {
	if len(t.nodes) == 0 {
		return dst, true
	}
	sp := d3.Box(span)
	r2 := radius * radius
	start := len(dst)
	// Triangles straddling octants show up once per leaf, so the raw list
	// may grow past limit before compaction.
	rawLimit := math.MaxInt
	if limit > 0 {
		rawLimit = 2 * limit
	}
	stack := make([]int32, 1, 32)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.bounds.IsEmpty() || t.prunable(n.bounds.MinDist2Box(sp), r2) {
			continue
		}
		if !n.isLeaf() {
			for c := int32(0); c < 8; c++ {
				stack = append(stack, n.children+c)
			}
			continue
		}
		for _, id := range t.ids[n.start : n.start+n.count] {
			if !t.prunable(t.boxes[id].MinDist2Box(sp), r2) {
				dst = append(dst, id)
			}
		}
		if len(dst)-start > rawLimit {
			return dst, false
		}
	}
	slices.Sort(dst[start:])
	dst = append(dst[:start], slices.Compact(dst[start:])...)
	return dst, limit <= 0 || len(dst)-start <= limit
}

// NearestOf returns the closest of the listed triangles to p, breaking ties
// by lowest id. ids must be non-empty.
func (t *Tree) NearestOf(p r3.Vec, ids []int32) Hit {
	best := Hit{Triangle: math.MaxInt32, Dist2: math.Inf(1)}
	for _, id := range ids {
		if h := t.Distance2(p, id); Closer(h, best) {
			best = h
		}
	}
	return best
}
