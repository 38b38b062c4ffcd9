package tile

import (
	"image"
	"slices"

	"github.com/gogpu/vbuf/internal/geom"
)

// Default tuning for HitDetection.
const (
	// DefaultHitThreshold is the number of command boxes a node may carry
	// before it is split into four children.
	DefaultHitThreshold = 30

	// DefaultHitMaxDepth is the maximum depth of the tile quad-tree.
	DefaultHitMaxDepth = 5
)

// Region is a convex area in image coordinates: a bounding rectangle,
// optionally further restricted by half-planes.
type Region struct {
	Rect   geom.Rect
	Planes []geom.HalfPlane
}

// Hits reports whether the region shares a positive area with box.
func (r Region) Hits(box geom.Rect) bool {
	if !r.Rect.Intersects(box) {
		return false
	}
	if len(r.Planes) == 0 {
		return true
	}
	return geom.RectHitsPlanes(box.Intersect(r.Rect), r.Planes)
}

// HitStats reports what a HitDetection pass did.
type HitStats struct {
	Nodes        int // quad-tree nodes visited
	TilesBacked  int
	TilesSkipped int
	PixelsSkip   int // pixels in skipped tiles
}

// HitDetection classifies the tiles of an image as backed or unbacked.
//
// It builds a quad-tree over the tile grid. Each node discards the regions
// and command boxes that miss it; a node left without regions, or without
// boxes when boxes were supplied, leaves all of its tiles unbacked. Nodes
// holding more than Threshold boxes split into four children until MaxDepth,
// after which tiles are tested one by one.
type HitDetection struct {
	// Threshold is the split threshold. Zero selects DefaultHitThreshold.
	Threshold int
	// MaxDepth is the maximum tree depth. Zero selects DefaultHitMaxDepth.
	MaxDepth int

	size   image.Point
	backed *Set
	stats  HitStats

	regionStack [][]Region
	boxStack    [][]geom.Rect
}

// NewHitDetection creates a tile classifier for an image of the given size.
func NewHitDetection(size image.Point) *HitDetection {
	return &HitDetection{
		Threshold: DefaultHitThreshold,
		MaxDepth:  DefaultHitMaxDepth,
		size:      size,
	}
}

// Compute classifies every tile. regions are the parts of the image that
// the geometry covers; boxes are the bounding boxes of the draws, in image
// coordinates. When boxes is nil, no command filtering is applied and every
// geometry-covered tile is backed. The returned set holds the backed tiles.
func (h *HitDetection) Compute(regions []Region, boxes []geom.Rect) *Set {
	grid := GridSize(h.size)
	h.backed = NewSet(grid)
	h.stats = HitStats{}
	if grid.X == 0 || grid.Y == 0 {
		return h.backed
	}
	if h.Threshold <= 0 {
		h.Threshold = DefaultHitThreshold
	}
	if h.MaxDepth <= 0 {
		h.MaxDepth = DefaultHitMaxDepth
	}

	h.visit(image.Rectangle{Max: grid}, regions, boxes, boxes != nil, 0)

	h.stats.TilesBacked = h.backed.Len()
	h.stats.TilesSkipped = h.backed.Total() - h.stats.TilesBacked
	for ty := range grid.Y {
		for tx := range grid.X {
			if !h.backed.Has(tx, ty) {
				r := PixelRect(tx, ty, h.size)
				h.stats.PixelsSkip += r.Dx() * r.Dy()
			}
		}
	}
	return h.backed
}

// Stats returns statistics of the last Compute.
func (h *HitDetection) Stats() HitStats {
	return h.stats
}

// ComputeEmptyTiles returns the tiles that the last Compute left unbacked
// and that are not in except, in row-major order. These are handed to the
// atlas as empty tiles. except may be nil.
func (h *HitDetection) ComputeEmptyTiles(except *Set) []image.Point {
	if h.backed == nil {
		return nil
	}
	pts := h.backed.Complement()
	if except == nil {
		return pts
	}
	return slices.DeleteFunc(pts, func(p image.Point) bool {
		return except.Has(p.X, p.Y)
	})
}

// Backed returns the set computed by the last Compute.
func (h *HitDetection) Backed() *Set {
	return h.backed
}

func (h *HitDetection) nodeBox(tiles image.Rectangle) geom.Rect {
	return geom.RectFromImage(RangePixels(tiles, h.size))
}

func (h *HitDetection) scratch(depth int) ([]Region, []geom.Rect) {
	for len(h.regionStack) <= depth {
		h.regionStack = append(h.regionStack, nil)
		h.boxStack = append(h.boxStack, nil)
	}
	return h.regionStack[depth][:0], h.boxStack[depth][:0]
}

func (h *HitDetection) visit(tiles image.Rectangle, regions []Region, boxes []geom.Rect, filter bool, depth int) {
	h.stats.Nodes++
	box := h.nodeBox(tiles)

	keptRegions, keptBoxes := h.scratch(depth)
	for _, r := range regions {
		if r.Hits(box) {
			keptRegions = append(keptRegions, r)
		}
	}
	if filter {
		for _, b := range boxes {
			if b.Intersects(box) {
				keptBoxes = append(keptBoxes, b)
			}
		}
	}
	h.regionStack[depth], h.boxStack[depth] = keptRegions, keptBoxes

	if len(keptRegions) == 0 || (filter && len(keptBoxes) == 0) {
		return
	}

	if tiles.Dx() == 1 && tiles.Dy() == 1 {
		h.backed.Add(tiles.Min.X, tiles.Min.Y)
		return
	}

	if depth >= h.MaxDepth || (filter && len(keptBoxes) <= h.Threshold) {
		h.bruteForce(tiles, keptRegions, keptBoxes, filter)
		return
	}

	mid := image.Point{
		X: tiles.Min.X + (tiles.Dx()+1)/2,
		Y: tiles.Min.Y + (tiles.Dy()+1)/2,
	}
	children := [4]image.Rectangle{
		image.Rect(tiles.Min.X, tiles.Min.Y, mid.X, mid.Y),
		image.Rect(mid.X, tiles.Min.Y, tiles.Max.X, mid.Y),
		image.Rect(tiles.Min.X, mid.Y, mid.X, tiles.Max.Y),
		image.Rect(mid.X, mid.Y, tiles.Max.X, tiles.Max.Y),
	}
	for _, c := range children {
		if c.Empty() {
			continue
		}
		// Children reuse deeper scratch levels, so read this level's
		// slices back after each call.
		h.visit(c, h.regionStack[depth], h.boxStack[depth], filter, depth+1)
	}
}

func (h *HitDetection) bruteForce(tiles image.Rectangle, regions []Region, boxes []geom.Rect, filter bool) {
	for ty := tiles.Min.Y; ty < tiles.Max.Y; ty++ {
		for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
			box := geom.RectFromImage(PixelRect(tx, ty, h.size))
			if !anyRegion(regions, box) {
				continue
			}
			if filter && !anyBox(boxes, box) {
				continue
			}
			h.backed.Add(tx, ty)
		}
	}
}

func anyRegion(regions []Region, box geom.Rect) bool {
	for _, r := range regions {
		if r.Hits(box) {
			return true
		}
	}
	return false
}

func anyBox(boxes []geom.Rect, box geom.Rect) bool {
	for _, b := range boxes {
		if b.Intersects(box) {
			return true
		}
	}
	return false
}
