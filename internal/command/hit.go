package command

import "github.com/gogpu/vbuf/internal/geom"

// QueryResult classifies the commands examined by a query.
type QueryResult struct {
	// FullyContained commands have boxes inside the query rectangle.
	FullyContained []int32
	// PartiallyHit commands overlap the query rectangle without being
	// contained in it.
	PartiallyHit []int32
	// NotHitButTested commands were examined but do not overlap it.
	NotHitButTested []int32
}

// Hit returns the number of commands that overlap the query rectangle.
func (r QueryResult) Hit() int {
	return len(r.FullyContained) + len(r.PartiallyHit)
}

type hitNode struct {
	box      geom.Rect
	depth    int
	items    []int32
	children int32 // index of the first of four children, or -1
}

// HitDetection is a quad-tree over the bounding boxes of a List.
//
// A command is stored in every child whose box it overlaps, except that a
// command covering a whole child stays at the parent. Commands that are
// not inside the root box stay at the root.
type HitDetection struct {
	list      *List
	nodes     []hitNode
	threshold int
	maxDepth  int
	touched   []int32
}

func newHitDetection(l *List, bounds geom.Rect, threshold, maxDepth int) *HitDetection {
	h := &HitDetection{list: l, threshold: threshold, maxDepth: maxDepth}
	h.nodes = append(h.nodes, hitNode{box: bounds, children: -1})
	return h
}

// Bounds returns the box of the root node.
func (h *HitDetection) Bounds() geom.Rect {
	return h.nodes[0].box
}

// NodeCount returns the number of quad-tree nodes.
func (h *HitDetection) NodeCount() int {
	return len(h.nodes)
}

// Depth returns the depth of the deepest node.
func (h *HitDetection) Depth() int {
	d := 0
	for i := range h.nodes {
		d = max(d, h.nodes[i].depth)
	}
	return d
}

// Add inserts command idx of the owning list.
func (h *HitDetection) Add(idx int32) {
	box := h.list.draws[idx].Box
	if !h.nodes[0].box.ContainsRect(box) {
		h.nodes[0].items = append(h.nodes[0].items, idx)
		return
	}
	h.add(0, idx, box)
}

func (h *HitDetection) add(n int32, idx int32, box geom.Rect) {
	node := &h.nodes[n]
	if node.children < 0 {
		node.items = append(node.items, idx)
		if len(node.items) > h.threshold && node.depth < h.maxDepth {
			h.split(n)
		}
		return
	}

	first := node.children
	for c := first; c < first+4; c++ {
		if box.ContainsRect(h.nodes[c].box) {
			h.nodes[n].items = append(h.nodes[n].items, idx)
			return
		}
	}
	routed := false
	for c := first; c < first+4; c++ {
		if box.Intersects(h.nodes[c].box) {
			h.add(c, idx, box)
			routed = true
		}
	}
	if !routed {
		// Zero-area boxes overlap no child.
		h.nodes[n].items = append(h.nodes[n].items, idx)
	}
}

func (h *HitDetection) split(n int32) {
	node := h.nodes[n]
	hw, hh := node.box.W/2, node.box.H/2
	first := int32(len(h.nodes)) //nolint:gosec // bounded by depth
	for i := range 4 {
		x := node.box.X + float64(i%2)*hw
		y := node.box.Y + float64(i/2)*hh
		h.nodes = append(h.nodes, hitNode{
			box:      geom.NewRect(x, y, hw, hh),
			depth:    node.depth + 1,
			children: -1,
		})
	}
	items := node.items
	h.nodes[n].items = nil
	h.nodes[n].children = first
	for _, idx := range items {
		h.add(n, idx, h.list.draws[idx].Box)
	}
}

// Query classifies every live command stored in a node overlapping r.
// Each command is reported once. With deleteFullyContained set, fully
// contained commands are deleted from the list.
//
// Every live command whose box overlaps r is reported as FullyContained
// or PartiallyHit.
func (h *HitDetection) Query(r geom.Rect, deleteFullyContained bool) QueryResult {
	var res QueryResult
	h.query(0, r, deleteFullyContained, &res)
	for _, idx := range h.touched {
		h.list.draws[idx].checked = false
	}
	h.touched = h.touched[:0]
	return res
}

func (h *HitDetection) query(n int32, r geom.Rect, del bool, res *QueryResult) {
	node := &h.nodes[n]
	for _, idx := range node.items {
		d := &h.list.draws[idx]
		if d.deleted || d.checked {
			continue
		}
		d.checked = true
		h.touched = append(h.touched, idx)
		switch {
		case r.ContainsRect(d.Box) && !d.Box.IsEmpty():
			res.FullyContained = append(res.FullyContained, idx)
			if del {
				h.list.Delete(int(idx))
			}
		case d.Box.Intersects(r):
			res.PartiallyHit = append(res.PartiallyHit, idx)
		default:
			res.NotHitButTested = append(res.NotHitButTested, idx)
		}
	}
	if node.children < 0 {
		return
	}
	first := node.children
	for c := first; c < first+4; c++ {
		if h.nodes[c].box.Intersects(r) {
			h.query(c, r, del, res)
		}
	}
}
