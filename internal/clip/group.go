package clip

import (
	"image"

	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/tile"
)

// Group is a region made of one or more disjoint geometries sharing a
// scale, with a bounding geometry that defines the backing image.
type Group struct {
	bounds Geometry
	subs   []Geometry
}

// NewGroup returns a group holding a single geometry.
func NewGroup(g Geometry) Group {
	return Group{bounds: g}
}

// NewTranslatedGroup returns the union of base translated by each offset.
// When the translated copies overlap in image space the group collapses to
// their bounding geometry.
func NewTranslatedGroup(base Geometry, offsets []geom.Point) Group {
	if len(offsets) == 0 || base.IsDegenerate() {
		return Group{bounds: newGeometry(geom.Rect{}, base.Scale(), base.Padding())}
	}
	subs := make([]Geometry, len(offsets))
	var union geom.Rect
	for i, d := range offsets {
		subs[i] = base.Translated(d)
		if i == 0 {
			union = subs[i].pixel
		} else {
			union = union.Union(subs[i].pixel)
		}
	}
	bounds := newGeometry(union, base.Scale(), base.Padding())
	if len(subs) == 1 {
		return Group{bounds: subs[0]}
	}

	t := bounds.ToImage()
	for i := range subs {
		ri := t.ApplyRect(subs[i].pixel).Inset(-base.Padding())
		for j := i + 1; j < len(subs); j++ {
			rj := t.ApplyRect(subs[j].pixel).Inset(-base.Padding())
			if ri.Intersects(rj) {
				return Group{bounds: bounds}
			}
		}
	}
	return Group{bounds: bounds, subs: subs}
}

// Intersect restricts every geometry of the group to the pixel rectangle
// r. Sub-geometries left without area are dropped, and the bounds shrink
// to the ones that remain.
func (g Group) Intersect(r geom.Rect) Group {
	if len(g.subs) == 0 {
		return Group{bounds: g.bounds.Intersect(r)}
	}
	var subs []Geometry
	var union geom.Rect
	for _, s := range g.subs {
		c := s.Intersect(r)
		if c.IsDegenerate() {
			continue
		}
		if len(subs) == 0 {
			union = c.pixel
		} else {
			union = union.Union(c.pixel)
		}
		subs = append(subs, c)
	}
	switch len(subs) {
	case 0:
		return Group{bounds: newGeometry(geom.Rect{}, g.bounds.Scale(), g.bounds.Padding())}
	case 1:
		return Group{bounds: subs[0]}
	}
	return Group{bounds: newGeometry(union, g.bounds.Scale(), g.bounds.Padding()), subs: subs}
}

// Bounds returns the bounding geometry.
func (g Group) Bounds() Geometry {
	return g.bounds
}

// Subs returns the disjoint geometries of the group. A single-geometry
// group returns its bounds.
func (g Group) Subs() []Geometry {
	if len(g.subs) == 0 {
		return []Geometry{g.bounds}
	}
	return g.subs
}

// IsCompound reports whether the group holds more than one sub-geometry.
func (g Group) IsCompound() bool {
	return len(g.subs) > 1
}

// IsDegenerate reports whether the group covers no area.
func (g Group) IsDegenerate() bool {
	return g.bounds.IsDegenerate()
}

// Size returns the size of the backing image.
func (g Group) Size() image.Point {
	return g.bounds.Size()
}

// ToImage returns the pixel to image transform of the backing image.
func (g Group) ToImage() geom.Transform {
	return g.bounds.ToImage()
}

// Regions returns the covered areas in the image space of the bounds.
func (g Group) Regions() []tile.Region {
	if g.IsDegenerate() {
		return nil
	}
	if len(g.subs) == 0 {
		return []tile.Region{g.bounds.ImageRegion()}
	}
	t := g.bounds.ToImage()
	bounds := g.bounds.ImageBounds()
	out := make([]tile.Region, len(g.subs))
	for i, s := range g.subs {
		out[i] = s.regionIn(t, bounds)
	}
	return out
}

// SubImage returns the group restricted to the image rectangle r of its
// bounds.
func (g Group) SubImage(r image.Rectangle) Group {
	out := Group{bounds: g.bounds.SubImage(r)}
	if len(g.subs) > 0 && !out.bounds.IsDegenerate() {
		// Sub-geometries stay in pixel space; only the image mapping moves.
		out.subs = g.subs
	}
	return out
}
