// Package clip describes the regions that render buffers cover and the
// tile algebra used to combine a clip mask with a new fill.
//
// Coordinates come in two spaces. Pixel space is the space of the drawing
// that issued the commands. Image space is the space of the backing image:
// pixel space scaled by a uniform factor and translated so that the
// padded region starts at the origin.
package clip

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/tile"
)

// Geometry is a convex region in pixel space together with the mapping to
// the image that backs it.
//
// The image size is always the ceiling of the scaled, padding-expanded
// pixel bounding box. A Geometry with an empty pixel box is degenerate: its
// size is zero and everything drawn into it is dropped.
type Geometry struct {
	pixel   geom.Rect
	polygon []geom.Point
	planes  []geom.HalfPlane
	padding float64
	size    image.Point
	toImage geom.Transform
}

func newGeometry(pixel geom.Rect, scale, padding float64) Geometry {
	if scale <= 0 {
		scale = 1
	}
	if padding < 0 {
		padding = 0
	}
	g := Geometry{pixel: pixel, padding: padding}
	g.toImage = geom.Transform{
		Scale: scale,
		Translate: geom.Point{
			X: padding - scale*pixel.X,
			Y: padding - scale*pixel.Y,
		},
	}
	if !pixel.IsEmpty() {
		g.size = image.Point{
			X: int(math.Ceil(scale*pixel.W + 2*padding)),
			Y: int(math.Ceil(scale*pixel.H + 2*padding)),
		}
	}
	return g
}

// NewRectGeometry returns the geometry of an axis-aligned rectangle.
func NewRectGeometry(r geom.Rect, scale, padding float64) Geometry {
	return newGeometry(r, scale, padding)
}

// NewPolygonGeometry returns the geometry of a convex polygon. A polygon
// with fewer than three vertices or zero area is degenerate.
func NewPolygonGeometry(poly []geom.Point, scale, padding float64) Geometry {
	planes := geom.ConvexPlanes(poly)
	if planes == nil {
		return newGeometry(geom.Rect{}, scale, padding)
	}
	g := newGeometry(geom.BoundsOf(poly), scale, padding)
	g.polygon = append([]geom.Point(nil), poly...)
	g.planes = planes
	return g
}

// IsDegenerate reports whether the geometry covers no area.
func (g Geometry) IsDegenerate() bool {
	return g.size.X <= 0 || g.size.Y <= 0
}

// IsRect reports whether the region is its bounding rectangle.
func (g Geometry) IsRect() bool {
	return len(g.planes) == 0
}

// PixelRect returns the pixel-space bounding box.
func (g Geometry) PixelRect() geom.Rect {
	return g.pixel
}

// Polygon returns the pixel-space polygon, or nil for rectangles.
func (g Geometry) Polygon() []geom.Point {
	return g.polygon
}

// Planes returns the pixel-space half-planes bounding the polygon.
func (g Geometry) Planes() []geom.HalfPlane {
	return g.planes
}

// Scale returns the pixel to image scale factor.
func (g Geometry) Scale() float64 {
	return g.toImage.Scale
}

// Padding returns the image-space border around the scaled pixel box.
func (g Geometry) Padding() float64 {
	return g.padding
}

// Size returns the image size in pixels.
func (g Geometry) Size() image.Point {
	return g.size
}

// Area returns the image area in pixels.
func (g Geometry) Area() int {
	return g.size.X * g.size.Y
}

// ToImage returns the pixel to image transform.
func (g Geometry) ToImage() geom.Transform {
	return g.toImage
}

// ToPixel returns the image to pixel transform.
func (g Geometry) ToPixel() geom.Transform {
	return g.toImage.Inverse()
}

// ImageBounds returns the image rectangle.
func (g Geometry) ImageBounds() image.Rectangle {
	return image.Rectangle{Max: g.size}
}

// ImageRegion returns the covered area in image space, padding included.
func (g Geometry) ImageRegion() tile.Region {
	return g.regionIn(g.toImage, g.ImageBounds())
}

func (g Geometry) regionIn(t geom.Transform, bounds image.Rectangle) tile.Region {
	r := t.ApplyRect(g.pixel).Inset(-g.padding).Intersect(geom.RectFromImage(bounds))
	var planes []geom.HalfPlane
	if g.padding == 0 && len(g.planes) > 0 {
		planes = make([]geom.HalfPlane, len(g.planes))
		for i, h := range g.planes {
			planes[i] = t.ApplyPlane(h)
		}
	}
	return tile.Region{Rect: r, Planes: planes}
}

// Translated returns the geometry moved by d in pixel space. The image
// size is unchanged.
func (g Geometry) Translated(d geom.Point) Geometry {
	out := newGeometry(g.pixel.Translate(d), g.toImage.Scale, g.padding)
	if g.polygon != nil {
		out.polygon = make([]geom.Point, len(g.polygon))
		for i, p := range g.polygon {
			out.polygon[i] = p.Add(d)
		}
		out.planes = geom.ConvexPlanes(out.polygon)
	}
	out.size = g.size
	return out
}

// Intersect restricts the geometry to the pixel rectangle r, keeping the
// scale and padding. The result is degenerate when they do not overlap.
func (g Geometry) Intersect(r geom.Rect) Geometry {
	clipped := g.pixel.Intersect(r)
	if g.polygon == nil || clipped.IsEmpty() {
		return newGeometry(clipped, g.toImage.Scale, g.padding)
	}
	var scratch [2][]geom.Point
	poly := geom.ClipRect(clipped, g.planes, &scratch)
	return NewPolygonGeometry(poly, g.toImage.Scale, g.padding)
}

// SubImage returns the geometry of the image rectangle r of g. The result
// keeps g's pixel region and transform, shifted so that r.Min becomes its
// image origin, and its image is r.Size().
func (g Geometry) SubImage(r image.Rectangle) Geometry {
	r = r.Intersect(g.ImageBounds())
	if r.Empty() {
		return newGeometry(geom.Rect{}, g.toImage.Scale, 0)
	}
	out := g
	out.size = r.Size()
	out.toImage = g.toImage.Translated(geom.Pt(-float64(r.Min.X), -float64(r.Min.Y)))
	return out
}

// PixelWindow returns the pixel-space rectangle that maps onto the image.
func (g Geometry) PixelWindow() geom.Rect {
	if g.IsDegenerate() {
		return geom.Rect{}
	}
	return g.ToPixel().ApplyRect(geom.RectFromImage(g.ImageBounds()))
}

// String returns a short description of the geometry.
func (g Geometry) String() string {
	if g.IsDegenerate() {
		return "Geometry(degenerate)"
	}
	return fmt.Sprintf("Geometry(%v x%.3g -> %v)", g.pixel, g.toImage.Scale, g.size)
}
