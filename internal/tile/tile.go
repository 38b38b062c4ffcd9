// Package tile provides the tile grid used by sparse backing images.
//
// An image is divided into Size x Size pixel tiles. A tile is the unit of
// allocation in the image atlas: a tile is either backed by physical pixel
// storage or left unbacked, in which case it reads as transparent (Empty) or
// fully covered (Full) without any storage.
//
// Thread safety: nothing in this package is safe for concurrent use. The
// render-buffer core is single threaded.
package tile

import (
	"fmt"
	"image"

	"golang.org/x/exp/constraints"
)

// Size is the width and height of a tile in pixels.
const Size = 32

// Type classifies the content of one tile of a mask or image.
type Type uint8

const (
	// Empty tiles have no coverage and no storage.
	Empty Type = iota
	// Full tiles are completely covered and have no storage.
	Full
	// Partial tiles need per-pixel storage.
	Partial

	// TypeCount is the number of tile types.
	TypeCount = 3
)

var typeNames = [...]string{
	Empty:   "empty",
	Full:    "full",
	Partial: "partial",
}

// String returns the name of the tile type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is one of Empty, Full or Partial.
func (t Type) Valid() bool {
	return t < TypeCount
}

// CeilDiv returns ceil(x / y) for non-negative x and positive y.
func CeilDiv[T constraints.Integer](x, y T) T {
	return (x + y - 1) / y
}

// AlignUp rounds x up to the next multiple of y.
func AlignUp[T constraints.Integer](x, y T) T {
	return CeilDiv(x, y) * y
}

// AlignDown rounds non-negative x down to a multiple of y.
func AlignDown[T constraints.Integer](x, y T) T {
	return x / y * y
}

// GridSize returns the number of tile columns and rows needed to cover an
// image of the given pixel size.
func GridSize(size image.Point) image.Point {
	if size.X <= 0 || size.Y <= 0 {
		return image.Point{}
	}
	return image.Point{X: CeilDiv(size.X, Size), Y: CeilDiv(size.Y, Size)}
}

// PixelRect returns the pixel rectangle of tile (tx, ty), clipped to an
// image of the given size. Edge tiles may be smaller than Size.
func PixelRect(tx, ty int, size image.Point) image.Rectangle {
	r := image.Rect(tx*Size, ty*Size, (tx+1)*Size, (ty+1)*Size)
	return r.Intersect(image.Rectangle{Max: size})
}

// RangePixels returns the pixel rectangle covered by a range of tiles,
// clipped to an image of the given size.
func RangePixels(tiles image.Rectangle, size image.Point) image.Rectangle {
	r := image.Rect(tiles.Min.X*Size, tiles.Min.Y*Size, tiles.Max.X*Size, tiles.Max.Y*Size)
	return r.Intersect(image.Rectangle{Max: size})
}

// Covering returns the range of tiles touched by a pixel rectangle. The
// result is clipped to grid.
func Covering(pixels image.Rectangle, grid image.Point) image.Rectangle {
	if pixels.Empty() {
		return image.Rectangle{}
	}
	r := image.Rect(
		pixels.Min.X/Size, pixels.Min.Y/Size,
		CeilDiv(pixels.Max.X, Size), CeilDiv(pixels.Max.Y, Size),
	)
	return r.Intersect(image.Rectangle{Max: grid})
}
