package render

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/vbuf/internal/atlas"
	"github.com/gogpu/vbuf/internal/backend"
	"github.com/gogpu/vbuf/internal/clip"
	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/shader"
	"github.com/gogpu/vbuf/internal/tile"
)

type (
	// Point is a point in pixel space.
	Point = geom.Point
	// Rect is an axis-aligned rectangle in pixel space.
	Rect = geom.Rect
	// Geometry is a convex region with the mapping to its backing image.
	Geometry = clip.Geometry
	// GeometryGroup is one or more disjoint geometries sharing an image.
	GeometryGroup = clip.Group
	// ShaderID identifies a registered fragment shader.
	ShaderID = shader.ID
	// BlendMode selects how a draw combines with what is below it.
	BlendMode = command.BlendMode
	// VertexRange is a run of vertices produced by a tessellator.
	VertexRange = command.VertexRange
	// Target is a surface a render-target buffer draws into.
	Target = backend.Target
	// Backend executes render passes.
	Backend = backend.Backend
	// TileType is the empty, full or partial type of a mask tile.
	TileType = tile.Type
	// Classification is the clip-combine class of a tile.
	Classification = clip.Classification
	// TileProperties is the clip-combine result of a tile.
	TileProperties = clip.TileProperties
	// Atlas owns the tile storage of backing images. Renderers created
	// with the same Atlas share its tile budget.
	Atlas = atlas.TileAtlas
	// AtlasConfig configures an Atlas.
	AtlasConfig = atlas.Config
	// AtlasStats contains Atlas usage statistics.
	AtlasStats = atlas.Stats
)

// TileSize is the edge length of an atlas tile in pixels.
const TileSize = tile.Size

// Reserved shaders.
const (
	ShaderSolid    = shader.Solid
	ShaderImage    = shader.Image
	ShaderMaskTile = shader.MaskTile
)

// Blend modes.
const (
	BlendSourceOver = command.BlendSourceOver
	BlendOpaque     = command.BlendOpaque
	BlendAlpha      = command.BlendAlpha
	BlendAdditive   = command.BlendAdditive
)

// Tile types.
const (
	TileEmpty   = tile.Empty
	TileFull    = tile.Full
	TilePartial = tile.Partial
)

// Clip-combine classes.
const (
	ClassEmpty          = clip.ClassEmpty
	ClassFullClipIn     = clip.ClassFullClipIn
	ClassFullClipOut    = clip.ClassFullClipOut
	ClassPartialClipIn  = clip.ClassPartialClipIn
	ClassPartialClipOut = clip.ClassPartialClipOut
	ClassMixed          = clip.ClassMixed
)

// NewAtlas returns an Atlas for WithAtlas.
func NewAtlas(cfg AtlasConfig) *Atlas {
	return atlas.New(cfg)
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return geom.Pt(x, y)
}

// NewRect returns the rectangle at (x, y) with size w x h.
func NewRect(x, y, w, h float64) Rect {
	return geom.NewRect(x, y, w, h)
}

// NewRectGeometry returns the geometry of a rectangle drawn at the given
// scale with padding image pixels around it.
func NewRectGeometry(r Rect, scale, padding float64) Geometry {
	return clip.NewRectGeometry(r, scale, padding)
}

// NewPolygonGeometry returns the geometry of a convex polygon.
func NewPolygonGeometry(poly []Point, scale, padding float64) Geometry {
	return clip.NewPolygonGeometry(poly, scale, padding)
}

// NewGroup returns a group with a single geometry.
func NewGroup(g Geometry) GeometryGroup {
	return clip.NewGroup(g)
}

// NewTranslatedGroup returns the union of base translated by each offset.
func NewTranslatedGroup(base Geometry, offsets []Point) GeometryGroup {
	return clip.NewTranslatedGroup(base, offsets)
}

// NewImageTarget returns a CPU render target of the given size.
func NewImageTarget(w, h int) *backend.ImageTarget {
	return backend.NewImageTarget(w, h)
}

// NewDeviceTarget returns a render target presented through a host device.
func NewDeviceTarget(provider gpucontext.DeviceProvider, w, h int) *backend.DeviceTarget {
	return backend.NewDeviceTarget(provider, w, h)
}
