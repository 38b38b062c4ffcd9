package tile

import (
	"image"
	"math/bits"
)

// Set is a bitmap with one bit per tile of a grid.
//
// The bitmap uses one bit per tile, packed into uint64 words (64 tiles per
// word). Bit index = ty * cols + tx.
type Set struct {
	words []uint64
	grid  image.Point
}

// NewSet creates an empty set over a grid of cols x rows tiles.
func NewSet(grid image.Point) *Set {
	if grid.X <= 0 || grid.Y <= 0 {
		return &Set{}
	}
	return &Set{
		words: make([]uint64, CeilDiv(grid.X*grid.Y, 64)),
		grid:  grid,
	}
}

// Grid returns the grid dimensions in tiles.
func (s *Set) Grid() image.Point {
	return s.grid
}

func (s *Set) index(tx, ty int) (int, bool) {
	if tx < 0 || tx >= s.grid.X || ty < 0 || ty >= s.grid.Y {
		return 0, false
	}
	return ty*s.grid.X + tx, true
}

// Add marks tile (tx, ty). Out of range coordinates are ignored.
func (s *Set) Add(tx, ty int) {
	if idx, ok := s.index(tx, ty); ok {
		s.words[idx/64] |= 1 << (idx & 63)
	}
}

// Remove clears tile (tx, ty). Out of range coordinates are ignored.
func (s *Set) Remove(tx, ty int) {
	if idx, ok := s.index(tx, ty); ok {
		s.words[idx/64] &^= 1 << (idx & 63)
	}
}

// Has reports whether tile (tx, ty) is marked.
func (s *Set) Has(tx, ty int) bool {
	idx, ok := s.index(tx, ty)
	if !ok {
		return false
	}
	return s.words[idx/64]&(1<<(idx&63)) != 0
}

// AddRange marks every tile in r.
func (s *Set) AddRange(r image.Rectangle) {
	r = r.Intersect(image.Rectangle{Max: s.grid})
	for ty := r.Min.Y; ty < r.Max.Y; ty++ {
		for tx := r.Min.X; tx < r.Max.X; tx++ {
			s.Add(tx, ty)
		}
	}
}

// Fill marks every tile of the grid.
func (s *Set) Fill() {
	s.AddRange(image.Rectangle{Max: s.grid})
}

// Clear unmarks every tile.
func (s *Set) Clear() {
	clear(s.words)
}

// Len returns the number of marked tiles.
func (s *Set) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Total returns the number of tiles in the grid.
func (s *Set) Total() int {
	return s.grid.X * s.grid.Y
}

// Points returns the marked tiles in row-major order.
func (s *Set) Points() []image.Point {
	pts := make([]image.Point, 0, s.Len())
	s.Each(func(tx, ty int) {
		pts = append(pts, image.Point{X: tx, Y: ty})
	})
	return pts
}

// Complement returns the unmarked tiles in row-major order.
func (s *Set) Complement() []image.Point {
	pts := make([]image.Point, 0, s.Total()-s.Len())
	for ty := range s.grid.Y {
		for tx := range s.grid.X {
			if !s.Has(tx, ty) {
				pts = append(pts, image.Point{X: tx, Y: ty})
			}
		}
	}
	return pts
}

// Each calls fn for every marked tile in row-major order.
func (s *Set) Each(fn func(tx, ty int)) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			idx := wi*64 + b
			fn(idx%s.grid.X, idx/s.grid.X)
			w &= w - 1
		}
	}
}

// Bounds returns the smallest tile range containing every marked tile.
func (s *Set) Bounds() image.Rectangle {
	var r image.Rectangle
	s.Each(func(tx, ty int) {
		r = r.Union(image.Rect(tx, ty, tx+1, ty+1))
	})
	return r
}
