package command

import (
	"slices"

	"github.com/gogpu/vbuf/internal/geom"
)

// Default quad-tree tuning.
const (
	DefaultSplitThreshold = 30
	DefaultMaxDepth       = 5
)

// DepRange is a run of buffer ids in the owning List's dependency array.
type DepRange struct {
	Start int32
	Count int32
}

// RectDraw pairs a command with its bounding box in pixel coordinates and
// the buffers it reads.
type RectDraw struct {
	Command DrawCommand
	Box     geom.Rect
	Deps    DepRange

	deleted bool
	checked bool
}

// Deleted reports whether the command was removed from its list.
func (d *RectDraw) Deleted() bool {
	return d.deleted
}

// List is the ordered log of draws queued into one render buffer.
type List struct {
	draws   []RectDraw
	order   [categoryCount][]int32
	deps    []int32
	opaques uint32
	deleted int

	bounds    geom.Rect
	hasBounds bool

	threshold int
	maxDepth  int
	index     *HitDetection
}

// NewList creates an empty list whose quad-tree splits leaves holding more
// than threshold commands, up to maxDepth levels. Non-positive values
// select the defaults.
func NewList(threshold, maxDepth int) *List {
	l := &List{}
	l.Reset(threshold, maxDepth)
	return l
}

// Reset empties the list, keeping allocated capacity.
func (l *List) Reset(threshold, maxDepth int) {
	if threshold <= 0 {
		threshold = DefaultSplitThreshold
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	l.draws = l.draws[:0]
	for i := range l.order {
		l.order[i] = l.order[i][:0]
	}
	l.deps = l.deps[:0]
	l.opaques = 0
	l.deleted = 0
	l.bounds = geom.Rect{}
	l.hasBounds = false
	l.threshold = threshold
	l.maxDepth = maxDepth
	l.index = nil
}

// Add appends a command with its bounding box and the ids of the buffers
// it reads. It assigns the depth token and returns the command index.
func (l *List) Add(cmd DrawCommand, box geom.Rect, deps []int32) int {
	cat := cmd.Category()
	if cat == Typical {
		cmd.Z = l.opaques
	} else {
		l.opaques++
		cmd.Z = l.opaques
	}

	d := RectDraw{Command: cmd, Box: box}
	if len(deps) > 0 {
		d.Deps = DepRange{Start: int32(len(l.deps)), Count: int32(len(deps))} //nolint:gosec // per-frame sizes
		l.deps = append(l.deps, deps...)
	}

	idx := int32(len(l.draws)) //nolint:gosec // per-frame sizes
	l.draws = append(l.draws, d)
	l.order[cat] = append(l.order[cat], idx)

	if l.hasBounds {
		l.bounds = l.bounds.Union(box)
	} else {
		l.bounds = box
		l.hasBounds = true
	}
	if l.index != nil {
		l.index.Add(idx)
	}
	return int(idx)
}

// Len returns the number of live commands.
func (l *List) Len() int {
	return len(l.draws) - l.deleted
}

// Count returns the number of live commands in category c.
func (l *List) Count(c Category) int {
	n := 0
	for _, i := range l.order[c] {
		if !l.draws[i].deleted {
			n++
		}
	}
	return n
}

// At returns command idx.
func (l *List) At(idx int) *RectDraw {
	return &l.draws[idx]
}

// Deps returns the buffer ids read by command idx.
func (l *List) Deps(idx int) []int32 {
	r := l.draws[idx].Deps
	return l.deps[r.Start : r.Start+r.Count]
}

// AllDeps returns the buffer ids read by all live commands, deduplicated,
// in first-use order.
func (l *List) AllDeps() []int32 {
	var out []int32
	for i := range l.draws {
		if l.draws[i].deleted {
			continue
		}
		for _, id := range l.Deps(i) {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Bounds returns the union of all command boxes ever added.
func (l *List) Bounds() geom.Rect {
	return l.bounds
}

// Boxes returns the boxes of all live commands.
func (l *List) Boxes() []geom.Rect {
	boxes := make([]geom.Rect, 0, l.Len())
	for i := range l.draws {
		if !l.draws[i].deleted {
			boxes = append(boxes, l.draws[i].Box)
		}
	}
	return boxes
}

// Shaders returns the distinct shaders used by live commands, sorted.
func (l *List) Shaders() []ShaderID {
	var ids []ShaderID
	for i := range l.draws {
		if l.draws[i].deleted {
			continue
		}
		id := l.draws[i].Command.Shader
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Delete removes command idx from the list and its index.
func (l *List) Delete(idx int) {
	d := &l.draws[idx]
	if d.deleted {
		return
	}
	d.deleted = true
	l.deleted++
}

// Index returns the quad-tree over the command boxes, building it on first
// use. Commands added later are inserted as they arrive.
func (l *List) Index() *HitDetection {
	if l.index == nil {
		l.index = newHitDetection(l, l.bounds, l.threshold, l.maxDepth)
		for i := range l.draws {
			if !l.draws[i].deleted {
				l.index.Add(int32(i)) //nolint:gosec // per-frame sizes
			}
		}
	}
	return l.index
}

// Replay calls fn for every live command: occluders, then opaque commands,
// then typical commands, each in submission order.
func (l *List) Replay(fn func(idx int, d *RectDraw)) {
	for c := range l.order {
		for _, i := range l.order[c] {
			if d := &l.draws[i]; !d.deleted {
				fn(int(i), d)
			}
		}
	}
}

// ReplayRegion is Replay restricted to commands whose box intersects r.
// The command set is found through the quad-tree index.
func (l *List) ReplayRegion(r geom.Rect, fn func(idx int, d *RectDraw)) {
	res := l.Index().Query(r, false)
	hit := slices.Concat(res.FullyContained, res.PartiallyHit)
	slices.Sort(hit)
	for c := Category(0); c < categoryCount; c++ {
		for _, i := range hit {
			if d := &l.draws[i]; d.Command.Category() == c {
				fn(int(i), d)
			}
		}
	}
}

// CopyRegion appends to dst every live command of l whose box intersects
// r, in submission order, with its dependencies. With deleteOpaque set,
// opaque commands fully inside r are deleted from l afterwards so they
// are not drawn twice. It returns the number of copied and deleted
// commands.
func (l *List) CopyRegion(dst *List, r geom.Rect, deleteOpaque bool) (copied, deleted int) {
	res := l.Index().Query(r, false)
	hit := slices.Concat(res.FullyContained, res.PartiallyHit)
	slices.Sort(hit)
	for _, i := range hit {
		d := &l.draws[i]
		cmd := d.Command
		cmd.Z = 0
		dst.Add(cmd, d.Box, l.Deps(int(i)))
		copied++
	}
	if deleteOpaque {
		for _, i := range res.FullyContained {
			if l.draws[i].Command.Blend.IsOpaque() {
				l.Delete(int(i))
				deleted++
			}
		}
	}
	return copied, deleted
}
