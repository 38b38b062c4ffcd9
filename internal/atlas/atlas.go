// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package atlas implements the tiled image atlas that holds the backing
// pixels of render buffers.
//
// An Image is a grid of tile.Size tiles. Each tile is either empty
// (transparent, no storage), full (opaque, no storage), backed by its own
// storage slot, or shared with a tile of another image. The render-buffer
// core decides which tiles must exist; the atlas owns the physical storage.
//
// TileAtlas keeps tile storage in CPU memory and is the reference
// implementation used by the software backend and the tests. A GPU atlas
// exposes the same operations over an array texture.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/vbuf/internal/tile"
)

// Atlas-related errors.
var (
	// ErrAtlasFull is returned when the tile budget cannot satisfy an image.
	ErrAtlasFull = errors.New("atlas: tile budget exhausted")

	// ErrInvalidSize is returned for images with a non-positive dimension.
	ErrInvalidSize = errors.New("atlas: invalid image size")

	// ErrTileOutOfRange is returned when a tile coordinate is outside the grid.
	ErrTileOutOfRange = errors.New("atlas: tile outside image grid")

	// ErrReleased is returned when an operation uses a released image.
	ErrReleased = errors.New("atlas: image released")
)

// TileKind describes how one tile of an Image is stored.
type TileKind uint8

const (
	// TileEmpty reads as transparent and has no storage.
	TileEmpty TileKind = iota
	// TileFull reads as opaque white and has no storage.
	TileFull
	// TileBacked has its own storage slot.
	TileBacked
	// TileShared references the storage slot of another image's tile.
	TileShared
)

// String returns the name of the tile kind.
func (k TileKind) String() string {
	switch k {
	case TileEmpty:
		return "empty"
	case TileFull:
		return "full"
	case TileBacked:
		return "backed"
	case TileShared:
		return "shared"
	}
	return fmt.Sprintf("TileKind(%d)", uint8(k))
}

// SharedTile requests that tile Tile of a new image reuse tile SourceTile
// of Source.
type SharedTile struct {
	Tile       image.Point
	Source     *Image
	SourceTile image.Point
}

type tileEntry struct {
	kind TileKind
	slot int32
}

// Image is a sparse image in the atlas.
type Image struct {
	id       uint64
	size     image.Point
	grid     image.Point
	tiles    []tileEntry
	released bool
}

// ID returns a unique identifier of the image within its atlas.
func (img *Image) ID() uint64 {
	return img.id
}

// Size returns the image size in pixels.
func (img *Image) Size() image.Point {
	return img.size
}

// Grid returns the number of tile columns and rows.
func (img *Image) Grid() image.Point {
	return img.grid
}

// Released reports whether the image has been released.
func (img *Image) Released() bool {
	return img.released
}

func (img *Image) entry(tx, ty int) (*tileEntry, bool) {
	if tx < 0 || ty < 0 || tx >= img.grid.X || ty >= img.grid.Y {
		return nil, false
	}
	return &img.tiles[ty*img.grid.X+tx], true
}

// TileKind returns how tile (tx, ty) is stored. Out of range tiles are
// reported as TileEmpty.
func (img *Image) TileKind(tx, ty int) TileKind {
	e, ok := img.entry(tx, ty)
	if !ok {
		return TileEmpty
	}
	return e.kind
}

// TileType classifies tile (tx, ty) for mask purposes: storage-less tiles
// are Empty or Full, everything else is Partial.
func (img *Image) TileType(tx, ty int) tile.Type {
	switch img.TileKind(tx, ty) {
	case TileEmpty:
		return tile.Empty
	case TileFull:
		return tile.Full
	}
	return tile.Partial
}

// CountTiles returns the number of tiles of the given kind.
func (img *Image) CountTiles(kind TileKind) int {
	n := 0
	for _, e := range img.tiles {
		if e.kind == kind {
			n++
		}
	}
	return n
}

// Config configures a TileAtlas.
type Config struct {
	// TileBudget is the maximum number of storage slots. Zero means unlimited.
	TileBudget int

	// Format is the pixel format of tile storage. Defaults to RGBA8Unorm.
	Format gputypes.TextureFormat
}

// Stats contains atlas usage statistics.
type Stats struct {
	// Slots is the number of storage slots ever allocated.
	Slots int
	// InUse is the number of slots referenced by live images.
	InUse int
	// Budget is the slot budget (0 = unlimited).
	Budget int
	// Images is the number of live images.
	Images int
	// Failures counts CreateImage calls rejected by the budget.
	Failures int
	// TilesCopied counts tiles written by CopyPixels.
	TilesCopied int
}

// String returns a human-readable string of atlas stats.
func (s Stats) String() string {
	return fmt.Sprintf("Atlas[%d/%d slots in use, budget %d, %d images, %d failures]",
		s.InUse, s.Slots, s.Budget, s.Images, s.Failures)
}

// TileAtlas is a CPU-backed tile atlas.
type TileAtlas struct {
	format gputypes.TextureFormat
	budget int

	slots []*image.RGBA
	refs  []int32
	free  []int32

	nextID uint64
	images int
	stats  Stats
}

// New creates a TileAtlas.
func New(cfg Config) *TileAtlas {
	format := cfg.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	budget := cfg.TileBudget
	if budget < 0 {
		budget = 0
	}
	return &TileAtlas{format: format, budget: budget}
}

// Format returns the pixel format of tile storage.
func (a *TileAtlas) Format() gputypes.TextureFormat {
	return a.format
}

// Available returns the number of slots that can still be handed out, or
// -1 when the atlas is unlimited.
func (a *TileAtlas) Available() int {
	if a.budget == 0 {
		return -1
	}
	return len(a.free) + a.budget - len(a.slots)
}

func (a *TileAtlas) acquireSlot() int32 {
	if n := len(a.free); n > 0 {
		s := a.free[n-1]
		a.free = a.free[:n-1]
		clear(a.slots[s].Pix)
		a.refs[s] = 1
		return s
	}
	a.slots = append(a.slots, image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size)))
	a.refs = append(a.refs, 1)
	return int32(len(a.slots) - 1) //nolint:gosec // bounded by budget
}

func (a *TileAtlas) releaseSlot(s int32) {
	a.refs[s]--
	if a.refs[s] == 0 {
		a.free = append(a.free, s)
	}
}

// CreateImage creates a sparse image. Tiles listed in empty and full get no
// storage; tiles listed in shared reuse storage of another image; every
// other tile gets a fresh, transparent storage slot.
//
// When the budget cannot hold the new slots, CreateImage returns an error
// wrapping ErrAtlasFull and allocates nothing.
func (a *TileAtlas) CreateImage(size image.Point, empty, full []image.Point, shared []SharedTile) (*Image, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	grid := tile.GridSize(size)
	img := &Image{
		size:  size,
		grid:  grid,
		tiles: make([]tileEntry, grid.X*grid.Y),
	}
	const pending = TileKind(0xff)
	for i := range img.tiles {
		img.tiles[i] = tileEntry{kind: pending, slot: -1}
	}

	for _, p := range empty {
		e, ok := img.entry(p.X, p.Y)
		if !ok {
			return nil, fmt.Errorf("%w: empty tile %v in grid %v", ErrTileOutOfRange, p, grid)
		}
		e.kind = TileEmpty
	}
	for _, p := range full {
		e, ok := img.entry(p.X, p.Y)
		if !ok {
			return nil, fmt.Errorf("%w: full tile %v in grid %v", ErrTileOutOfRange, p, grid)
		}
		e.kind = TileFull
	}
	for _, sh := range shared {
		e, ok := img.entry(sh.Tile.X, sh.Tile.Y)
		if !ok {
			return nil, fmt.Errorf("%w: shared tile %v in grid %v", ErrTileOutOfRange, sh.Tile, grid)
		}
		if sh.Source == nil || sh.Source.released {
			return nil, fmt.Errorf("shared tile %v: %w", sh.Tile, ErrReleased)
		}
		src, ok := sh.Source.entry(sh.SourceTile.X, sh.SourceTile.Y)
		if !ok {
			return nil, fmt.Errorf("%w: source tile %v", ErrTileOutOfRange, sh.SourceTile)
		}
		switch src.kind {
		case TileEmpty, TileFull:
			e.kind = src.kind
		default:
			e.kind = TileShared
			e.slot = src.slot
		}
	}

	needed := 0
	for i := range img.tiles {
		if img.tiles[i].kind == pending {
			needed++
		}
	}
	if avail := a.Available(); avail >= 0 && needed > avail {
		a.stats.Failures++
		return nil, fmt.Errorf("%w: need %d tiles, %d available", ErrAtlasFull, needed, avail)
	}

	for i := range img.tiles {
		e := &img.tiles[i]
		switch e.kind {
		case pending:
			e.kind = TileBacked
			e.slot = a.acquireSlot()
		case TileShared:
			a.refs[e.slot]++
		}
	}

	a.nextID++
	img.id = a.nextID
	a.images++
	return img, nil
}

// CopyPixels copies the pixels of src starting at sp into the rectangle r
// of dst. Only backed tiles receive pixels; empty, full and shared tiles
// are left untouched. It returns the number of tiles written.
func (a *TileAtlas) CopyPixels(dst *Image, r image.Rectangle, src image.Image, sp image.Point) int {
	if dst == nil || dst.released {
		return 0
	}
	r = r.Intersect(image.Rectangle{Max: dst.size})
	if r.Empty() {
		return 0
	}
	written := 0
	tiles := tile.Covering(r, dst.grid)
	for ty := tiles.Min.Y; ty < tiles.Max.Y; ty++ {
		for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
			e, _ := dst.entry(tx, ty)
			if e.kind != TileBacked {
				continue
			}
			tr := tile.PixelRect(tx, ty, dst.size).Intersect(r)
			if tr.Empty() {
				continue
			}
			origin := image.Pt(tx*tile.Size, ty*tile.Size)
			draw.Draw(a.slots[e.slot], tr.Sub(origin), src, sp.Add(tr.Min.Sub(r.Min)), draw.Src)
			written++
		}
	}
	a.stats.TilesCopied += written
	return written
}

// At returns the color of pixel (x, y) of img.
func (a *TileAtlas) At(img *Image, x, y int) color.RGBA {
	if img == nil || img.released || x < 0 || y < 0 || x >= img.size.X || y >= img.size.Y {
		return color.RGBA{}
	}
	e, _ := img.entry(x/tile.Size, y/tile.Size)
	switch e.kind {
	case TileFull:
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	case TileBacked, TileShared:
		return a.slots[e.slot].RGBAAt(x%tile.Size, y%tile.Size)
	}
	return color.RGBA{}
}

// Release frees the storage of img. Shared slots stay alive while another
// image references them. Releasing twice is a no-op.
func (a *TileAtlas) Release(img *Image) {
	if img == nil || img.released {
		return
	}
	for _, e := range img.tiles {
		if e.kind == TileBacked || e.kind == TileShared {
			a.releaseSlot(e.slot)
		}
	}
	img.released = true
	a.images--
}

// Stats returns current atlas statistics.
func (a *TileAtlas) Stats() Stats {
	s := a.stats
	s.Slots = len(a.slots)
	s.InUse = len(a.slots) - len(a.free)
	s.Budget = a.budget
	s.Images = a.images
	return s
}

// BytesPerTile returns the storage size of one tile slot.
func (a *TileAtlas) BytesPerTile() int {
	return tile.Size * tile.Size * 4
}

// View returns img as an image.Image that reads through the atlas.
func (a *TileAtlas) View(img *Image) image.Image {
	return view{a: a, img: img}
}

type view struct {
	a   *TileAtlas
	img *Image
}

func (v view) ColorModel() color.Model {
	return color.RGBAModel
}

func (v view) Bounds() image.Rectangle {
	return image.Rectangle{Max: v.img.size}
}

func (v view) At(x, y int) color.Color {
	return v.a.At(v.img, x, y)
}
