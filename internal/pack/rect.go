// Package pack implements the allocators the scheduler uses to place
// ready buffers into its fixed-size scratch surfaces.
//
// RectAllocator is a shelf packer over one 2D surface; LayeredRectAllocator
// stacks several of them as the layers of an array texture.
// IntervalAllocator packs 1D strips (shadow maps) into the rows of a
// layered surface.
//
// Allocators are not safe for concurrent use; the scheduler owns them for
// the duration of a frame.
package pack

import (
	"fmt"
	"image"
)

// Region represents a rectangular region in one layer of a packed surface.
type Region struct {
	// Layer is the surface layer.
	Layer int
	// Rect is the region in pixels.
	Rect image.Rectangle
}

// IsValid returns true if the region has valid dimensions.
func (r Region) IsValid() bool {
	return !r.Rect.Empty()
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(L%d %v)", r.Layer, r.Rect)
}

// shelf represents a horizontal shelf in the shelf-packing algorithm.
type shelf struct {
	y      int // Top Y coordinate of this shelf
	height int // Height of this shelf (tallest item so far)
	nextX  int // Next available X position on this shelf
}

// RectAllocator implements a simple shelf-packing algorithm for
// allocating rectangular regions within a fixed-size area.
//
// The shelf-packing algorithm works by dividing the area into
// horizontal "shelves". Each new rectangle is placed on the first shelf
// where it fits, or a new shelf is created below.
type RectAllocator struct {
	width  int
	height int

	shelves []shelf

	// Padding between items and shelves
	padding int

	allocCount int
	usedArea   int
}

// NewRectAllocator creates a new rectangular region allocator.
func NewRectAllocator(width, height, padding int) *RectAllocator {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if padding < 0 {
		padding = 0
	}
	return &RectAllocator{
		width:   width,
		height:  height,
		shelves: make([]shelf, 0, 16),
		padding: padding,
	}
}

// Size returns the allocator dimensions.
func (a *RectAllocator) Size() image.Point {
	return image.Point{X: a.width, Y: a.height}
}

// Allocate finds space for a rectangle of the given size.
// Returns an empty rectangle if the rectangle cannot be allocated.
func (a *RectAllocator) Allocate(width, height int) image.Rectangle {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}
	}

	paddedWidth := width + a.padding
	paddedHeight := height + a.padding
	// The last item on a shelf or the last shelf may drop its padding.
	if width > a.width || height > a.height {
		return image.Rectangle{}
	}

	for i := range a.shelves {
		s := &a.shelves[i]
		if a.fitsOnShelf(s, width, paddedHeight) {
			return a.allocateOnShelf(s, width, height, paddedWidth, paddedHeight)
		}
	}
	return a.allocateNewShelf(width, height, paddedWidth, paddedHeight)
}

// fitsOnShelf checks if a rectangle fits on the given shelf.
func (a *RectAllocator) fitsOnShelf(s *shelf, width, paddedHeight int) bool {
	if s.nextX+width > a.width {
		return false
	}
	// A shelf can only grow while it is empty.
	if paddedHeight > s.height && s.nextX > 0 {
		return false
	}
	// Growing the last shelf must not run past the bottom.
	if paddedHeight > s.height && s.y+paddedHeight > a.height+a.padding {
		return false
	}
	return true
}

func (a *RectAllocator) allocateOnShelf(s *shelf, width, height, paddedWidth, paddedHeight int) image.Rectangle {
	r := image.Rect(s.nextX, s.y, s.nextX+width, s.y+height)
	s.nextX += paddedWidth
	if paddedHeight > s.height {
		s.height = paddedHeight
	}
	a.allocCount++
	a.usedArea += width * height
	return r
}

func (a *RectAllocator) allocateNewShelf(width, height, paddedWidth, paddedHeight int) image.Rectangle {
	newY := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		newY = last.y + last.height
	}
	if newY+height > a.height {
		return image.Rectangle{}
	}
	a.shelves = append(a.shelves, shelf{
		y:      newY,
		height: paddedHeight,
		nextX:  paddedWidth,
	})
	a.allocCount++
	a.usedArea += width * height
	return image.Rect(0, newY, width, newY+height)
}

// Reset clears all allocations, making the entire area available again.
func (a *RectAllocator) Reset() {
	a.shelves = a.shelves[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// UsedArea returns the total area of allocated rectangles.
func (a *RectAllocator) UsedArea() int {
	return a.usedArea
}

// Utilization returns the fraction of area used (0.0 to 1.0).
func (a *RectAllocator) Utilization() float64 {
	total := a.width * a.height
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}

// AllocCount returns the number of successful allocations.
func (a *RectAllocator) AllocCount() int {
	return a.allocCount
}

// LayeredRectAllocator packs rectangles into up to maxLayers equally sized
// layers, opening a new layer only when no existing one has room.
type LayeredRectAllocator struct {
	width, height int
	padding       int
	maxLayers     int
	layers        []*RectAllocator
	used          int
}

// NewLayeredRectAllocator creates a layered allocator.
func NewLayeredRectAllocator(width, height, padding, maxLayers int) *LayeredRectAllocator {
	if maxLayers < 1 {
		maxLayers = 1
	}
	return &LayeredRectAllocator{
		width:     width,
		height:    height,
		padding:   padding,
		maxLayers: maxLayers,
	}
}

// Allocate places a rectangle in the first layer with room for it.
func (l *LayeredRectAllocator) Allocate(width, height int) Region {
	for i := 0; i < l.used; i++ {
		if r := l.layers[i].Allocate(width, height); !r.Empty() {
			return Region{Layer: i, Rect: r}
		}
	}
	if l.used == l.maxLayers {
		return Region{}
	}
	if l.used == len(l.layers) {
		l.layers = append(l.layers, NewRectAllocator(l.width, l.height, l.padding))
	}
	layer := l.layers[l.used]
	r := layer.Allocate(width, height)
	if r.Empty() {
		return Region{}
	}
	l.used++
	return Region{Layer: l.used - 1, Rect: r}
}

// Fits reports whether a rectangle of the given size could ever be placed.
func (l *LayeredRectAllocator) Fits(width, height int) bool {
	return width > 0 && height > 0 && width <= l.width && height <= l.height
}

// LayersUsed returns the number of layers holding at least one rectangle.
func (l *LayeredRectAllocator) LayersUsed() int {
	return l.used
}

// Utilization returns the fraction of the area of the used layers taken by
// allocations.
func (l *LayeredRectAllocator) Utilization() float64 {
	if l.used == 0 {
		return 0
	}
	var u float64
	for i := 0; i < l.used; i++ {
		u += l.layers[i].Utilization()
	}
	return u / float64(l.used)
}

// Size returns the size of one layer.
func (l *LayeredRectAllocator) Size() image.Point {
	return image.Point{X: l.width, Y: l.height}
}

// Reset clears every layer.
func (l *LayeredRectAllocator) Reset() {
	for i := 0; i < l.used; i++ {
		l.layers[i].Reset()
	}
	l.used = 0
}
