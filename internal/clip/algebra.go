package clip

import (
	"fmt"
	"image"

	"github.com/gogpu/vbuf/internal/tile"
)

// Classification says how one tile of a clip combine is composited.
type Classification uint8

const (
	// ClassEmpty tiles are covered by neither result.
	ClassEmpty Classification = iota
	// ClassFullClipIn tiles are fully inside the clip-in result.
	ClassFullClipIn
	// ClassFullClipOut tiles are fully inside the clip-out result.
	ClassFullClipOut
	// ClassPartialClipIn tiles are partly covered by clip-in only.
	ClassPartialClipIn
	// ClassPartialClipOut tiles are partly covered by clip-out only.
	ClassPartialClipOut
	// ClassMixed tiles are partly covered by both results.
	ClassMixed
	// ClassInvalid is never produced by Combine.
	ClassInvalid
)

// String returns the name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassFullClipIn:
		return "full_clip_in"
	case ClassFullClipOut:
		return "full_clip_out"
	case ClassPartialClipIn:
		return "partial_clip_in"
	case ClassPartialClipOut:
		return "partial_clip_out"
	case ClassMixed:
		return "mixed"
	}
	return fmt.Sprintf("Classification(%d)", uint8(c))
}

// IsFull reports whether tiles of class c are composited with a flat blit.
func (c Classification) IsFull() bool {
	return c == ClassFullClipIn || c == ClassFullClipOut
}

const (
	e = tile.Empty
	f = tile.Full
	p = tile.Partial
)

// Tables are indexed [old clip tile][fill tile].
var (
	clipInTable = [tile.TypeCount][tile.TypeCount]tile.Type{
		tile.Empty:   {e, e, e},
		tile.Full:    {e, f, p},
		tile.Partial: {e, p, p},
	}
	clipOutTable = [tile.TypeCount][tile.TypeCount]tile.Type{
		tile.Empty:   {e, e, e},
		tile.Full:    {f, e, p},
		tile.Partial: {p, e, p},
	}
	classificationTable = [tile.TypeCount][tile.TypeCount]Classification{
		tile.Empty:   {ClassEmpty, ClassFullClipOut, ClassPartialClipOut},
		tile.Full:    {ClassFullClipIn, ClassInvalid, ClassInvalid},
		tile.Partial: {ClassPartialClipIn, ClassInvalid, ClassMixed},
	}
)

// ClipIn returns the tile type of "old clip intersected with fill".
func ClipIn(old, fill tile.Type) tile.Type {
	return clipInTable[old][fill]
}

// ClipOut returns the tile type of "old clip minus fill".
func ClipOut(old, fill tile.Type) tile.Type {
	return clipOutTable[old][fill]
}

// Classify returns the compositing class of a tile from its clip-in and
// clip-out types.
func Classify(in, out tile.Type) Classification {
	return classificationTable[in][out]
}

// TileTypes reports the empty/full/partial type of each tile of a mask.
type TileTypes interface {
	TileType(tx, ty int) tile.Type
}

// Uniform is a mask with the same type on every tile.
type Uniform tile.Type

// TileType implements TileTypes.
func (u Uniform) TileType(int, int) tile.Type {
	return tile.Type(u)
}

// TypeGrid is an explicit per-tile type table. Tiles outside the grid are
// empty.
type TypeGrid struct {
	grid  image.Point
	types []tile.Type
}

// NewTypeGrid returns a grid with every tile set to fill.
func NewTypeGrid(grid image.Point, fill tile.Type) *TypeGrid {
	g := &TypeGrid{grid: grid, types: make([]tile.Type, grid.X*grid.Y)}
	for i := range g.types {
		g.types[i] = fill
	}
	return g
}

// Set sets the type of tile (tx, ty).
func (g *TypeGrid) Set(tx, ty int, t tile.Type) {
	if tx >= 0 && ty >= 0 && tx < g.grid.X && ty < g.grid.Y {
		g.types[ty*g.grid.X+tx] = t
	}
}

// TileType implements TileTypes.
func (g *TypeGrid) TileType(tx, ty int) tile.Type {
	if tx < 0 || ty < 0 || tx >= g.grid.X || ty >= g.grid.Y {
		return tile.Empty
	}
	return g.types[ty*g.grid.X+tx]
}

// TileProperties is the combine result for one tile.
type TileProperties struct {
	ClipIn         tile.Type
	ClipOut        tile.Type
	Classification Classification
}

// Combination is the per-tile table of a clip combine over the tile grid
// of the fill mask.
type Combination struct {
	grid     image.Point
	tiles    []TileProperties
	inRange  image.Rectangle
	outRange image.Rectangle
	counts   [ClassInvalid]int
}

// Combine classifies every tile of a grid given the old clip's tile types
// and the fill's tile types, both indexed in the fill's tile grid.
func Combine(grid image.Point, old, fill TileTypes) *Combination {
	c := &Combination{
		grid:  grid,
		tiles: make([]TileProperties, grid.X*grid.Y),
	}
	for ty := range grid.Y {
		for tx := range grid.X {
			o, fl := old.TileType(tx, ty), fill.TileType(tx, ty)
			in, out := ClipIn(o, fl), ClipOut(o, fl)
			cls := Classify(in, out)
			c.tiles[ty*grid.X+tx] = TileProperties{ClipIn: in, ClipOut: out, Classification: cls}
			c.counts[cls]++

			cell := image.Rect(tx, ty, tx+1, ty+1)
			if in != tile.Empty {
				c.inRange = c.inRange.Union(cell)
			}
			if out != tile.Empty {
				c.outRange = c.outRange.Union(cell)
			}
		}
	}
	return c
}

// Grid returns the tile grid size.
func (c *Combination) Grid() image.Point {
	return c.grid
}

// At returns the properties of tile (tx, ty).
func (c *Combination) At(tx, ty int) TileProperties {
	return c.tiles[ty*c.grid.X+tx]
}

// ClipInRange returns the smallest tile rectangle holding every tile with
// a non-empty clip-in type.
func (c *Combination) ClipInRange() image.Rectangle {
	return c.inRange
}

// ClipOutRange returns the smallest tile rectangle holding every tile with
// a non-empty clip-out type.
func (c *Combination) ClipOutRange() image.Rectangle {
	return c.outRange
}

// Count returns the number of tiles with the given classification.
func (c *Combination) Count(cls Classification) int {
	if cls >= ClassInvalid {
		return 0
	}
	return c.counts[cls]
}

// ClipInTiles returns the tiles whose clip-in type is t, row-major.
func (c *Combination) ClipInTiles(t tile.Type) []image.Point {
	return c.collect(func(tp TileProperties) bool { return tp.ClipIn == t })
}

// ClipOutTiles returns the tiles whose clip-out type is t, row-major.
func (c *Combination) ClipOutTiles(t tile.Type) []image.Point {
	return c.collect(func(tp TileProperties) bool { return tp.ClipOut == t })
}

func (c *Combination) collect(match func(TileProperties) bool) []image.Point {
	var pts []image.Point
	for i, tp := range c.tiles {
		if match(tp) {
			pts = append(pts, image.Pt(i%c.grid.X, i/c.grid.X))
		}
	}
	return pts
}
