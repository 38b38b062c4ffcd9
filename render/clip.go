package render

import (
	"fmt"
	"image"

	"github.com/gogpu/vbuf"
	"github.com/gogpu/vbuf/internal/atlas"
	"github.com/gogpu/vbuf/internal/clip"
	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/shader"
	"github.com/gogpu/vbuf/internal/storage"
	"github.com/gogpu/vbuf/internal/tile"
)

// MaskType is the kind of mask data a clip element exposes.
type MaskType uint8

const (
	// MaskCoverage is per-pixel coverage in [0, 1].
	MaskCoverage MaskType = iota
	// MaskDistance is a signed distance to the clip edge.
	MaskDistance

	maskTypeCount
)

// String returns the name of the mask type.
func (m MaskType) String() string {
	switch m {
	case MaskCoverage:
		return "coverage"
	case MaskDistance:
		return "distance"
	}
	return fmt.Sprintf("MaskType(%d)", uint8(m))
}

// Channel is the color channel holding a mask type.
type Channel uint8

const (
	// ChannelNone means the element has no data of that mask type.
	ChannelNone Channel = iota
	ChannelR
	ChannelG
	ChannelB
	ChannelA
)

// String returns the name of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelNone:
		return "none"
	case ChannelR:
		return "r"
	case ChannelG:
		return "g"
	case ChannelB:
		return "b"
	case ChannelA:
		return "a"
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

type clipElement struct {
	// image is nil for a null element, which is uniformly polarity.
	image    *atlas.Image
	polarity tile.Type
	toImage  geom.Transform
	inverse  bool

	// buf is the mask buffer while its frame is current, or -1.
	buf   int32
	frame uint64

	channels  [maskTypeCount]Channel
	preferred MaskType
}

// tileType returns the type of tile (tx, ty) of the element's own grid.
func (e *clipElement) tileType(tx, ty int) tile.Type {
	if e.image == nil {
		return e.polarity
	}
	return e.flip(e.image.TileType(tx, ty))
}

// flip swaps full and empty for inverse elements.
func (e *clipElement) flip(t tile.Type) tile.Type {
	if !e.inverse {
		return t
	}
	switch t {
	case tile.Empty:
		return tile.Full
	case tile.Full:
		return tile.Empty
	}
	return t
}

// ClipElement is a mask used as a clip region. Elements are reference
// counted and may outlive the frame that created them.
type ClipElement struct {
	r *Renderer
	h storage.Handle
}

func (c ClipElement) get() (*clipElement, error) {
	if c.r == nil {
		return nil, ErrStaleHandle
	}
	e, ok := c.r.clips.Get(c.h)
	if !ok {
		return nil, fmt.Errorf("%w: clip element %v", ErrStaleHandle, c.h)
	}
	return e, nil
}

// Valid reports whether c refers to a live element.
func (c ClipElement) Valid() bool {
	_, err := c.get()
	return err == nil
}

// IsNull reports whether the element has no mask image.
func (c ClipElement) IsNull() bool {
	e, err := c.get()
	return err == nil && e.image == nil
}

// Inverted reports whether the element clips to the outside of its mask.
func (c ClipElement) Inverted() bool {
	e, err := c.get()
	return err == nil && e.inverse
}

// Grid returns the tile grid of the mask image.
func (c ClipElement) Grid() image.Point {
	e, err := c.get()
	if err != nil || e.image == nil {
		return image.Point{}
	}
	return e.image.Grid()
}

// TileType returns the type of tile (tx, ty) of the mask. Null elements
// report their polarity everywhere; tiles outside the mask are empty, or
// full for an inverted element.
func (c ClipElement) TileType(tx, ty int) TileType {
	e, err := c.get()
	if err != nil {
		return TileEmpty
	}
	return e.tileType(tx, ty)
}

// Channel returns the channel that holds mask type mt.
func (c ClipElement) Channel(mt MaskType) Channel {
	e, err := c.get()
	if err != nil || mt >= maskTypeCount {
		return ChannelNone
	}
	return e.channels[mt]
}

// Preferred returns the mask type compositing should read.
func (c ClipElement) Preferred() MaskType {
	if e, err := c.get(); err == nil {
		return e.preferred
	}
	return MaskCoverage
}

// Retain adds a reference.
func (c ClipElement) Retain() error {
	if c.r == nil || !c.r.clips.Retain(c.h) {
		return ErrStaleHandle
	}
	return nil
}

// Release drops a reference. The mask image is released with the last
// one.
func (c ClipElement) Release() {
	if c.r != nil {
		c.r.clips.Release(c.h)
	}
}

// Inverse returns a new element clipping to the outside of c. The inverse
// of a null element is the null element of opposite polarity.
func (c ClipElement) Inverse() (ClipElement, error) {
	e, err := c.get()
	if err != nil {
		return ClipElement{}, err
	}
	inv := *e
	if inv.image == nil {
		if inv.polarity == tile.Empty {
			inv.polarity = tile.Full
		} else {
			inv.polarity = tile.Empty
		}
	} else {
		inv.inverse = !inv.inverse
		c.r.retainImage(inv.image)
	}
	h, ne := c.r.clips.Acquire()
	*ne = inv
	return ClipElement{r: c.r, h: h}, nil
}

// NullClipElement returns an element without a mask. With rejectAll set it
// clips everything away, otherwise nothing.
func (r *Renderer) NullClipElement(rejectAll bool) ClipElement {
	h, e := r.clips.Acquire()
	e.buf = -1
	e.polarity = tile.Full
	if rejectAll {
		e.polarity = tile.Empty
	}
	return ClipElement{r: r, h: h}
}

// CreateClipElement makes the finished buffer mask a clip element whose
// mask type mt is stored in channel ch. A degenerate or failed mask yields
// a null element that rejects everything.
func (r *Renderer) CreateClipElement(mask Buffer, mt MaskType, ch Channel) (ClipElement, error) {
	mb, err := mask.get()
	if err != nil {
		return ClipElement{}, err
	}
	if err := checkReadable(mb); err != nil {
		return ClipElement{}, err
	}
	if mt >= maskTypeCount {
		return ClipElement{}, fmt.Errorf("render: invalid mask type %v", mt)
	}
	if mb.kind == KindDegenerate || mb.failed || mb.image == nil {
		return r.NullClipElement(true), nil
	}
	r.retainImage(mb.image)
	h, e := r.clips.Acquire()
	*e = clipElement{
		image:     mb.image,
		polarity:  tile.Partial,
		toImage:   mb.group.ToImage(),
		buf:       mb.id,
		frame:     r.frame,
		preferred: mt,
	}
	e.channels[mt] = ch
	return ClipElement{r: r, h: h}, nil
}

// elementSampler returns how draws read e and the buffer they depend on,
// or -1.
func (r *Renderer) elementSampler(e *clipElement) (sampler, int32) {
	switch {
	case e.image == nil && e.polarity == tile.Full:
		return sampler{buf: -1, uniform: true}, -1
	case e.image == nil:
		return noSampler, -1
	case e.buf >= 0 && e.frame == r.frame:
		return sampler{buf: e.buf}, e.buf
	}
	return sampler{buf: -1, img: e.image, toImage: e.toImage}, -1
}

type clipCombine struct {
	toImage geom.Transform
	fill    *atlas.Image
	comb    *clip.Combination
	in      storage.Handle
	out     storage.Handle
}

// ClipCombineResult is the split of a fill against a clip element into a
// clip-in element, a clip-out element and a per-tile classification over
// the tile grid of the fill.
type ClipCombineResult struct {
	r *Renderer
	h storage.Handle
}

func (c ClipCombineResult) get() (*clipCombine, error) {
	if c.r == nil {
		return nil, ErrStaleHandle
	}
	cc, ok := c.r.combines.Get(c.h)
	if !ok {
		return nil, fmt.Errorf("%w: clip combine %v", ErrStaleHandle, c.h)
	}
	return cc, nil
}

// Valid reports whether c refers to a live result.
func (c ClipCombineResult) Valid() bool {
	_, err := c.get()
	return err == nil
}

// Grid returns the tile grid of the fill.
func (c ClipCombineResult) Grid() image.Point {
	if cc, err := c.get(); err == nil {
		return cc.comb.Grid()
	}
	return image.Point{}
}

// TileProperties returns the clip-in type, clip-out type and class of
// tile (tx, ty). Tiles outside the grid are empty.
func (c ClipCombineResult) TileProperties(tx, ty int) TileProperties {
	cc, err := c.get()
	if err != nil || !image.Pt(tx, ty).In(image.Rectangle{Max: cc.comb.Grid()}) {
		return TileProperties{Classification: ClassEmpty}
	}
	return cc.comb.At(tx, ty)
}

// Count returns the number of tiles of class cls.
func (c ClipCombineResult) Count(cls Classification) int {
	if cc, err := c.get(); err == nil {
		return cc.comb.Count(cls)
	}
	return 0
}

// ClipInRange returns the smallest tile rectangle holding every tile with
// clip-in coverage.
func (c ClipCombineResult) ClipInRange() image.Rectangle {
	if cc, err := c.get(); err == nil {
		return cc.comb.ClipInRange()
	}
	return image.Rectangle{}
}

// ClipOutRange returns the smallest tile rectangle holding every tile with
// clip-out coverage.
func (c ClipCombineResult) ClipOutRange() image.Rectangle {
	if cc, err := c.get(); err == nil {
		return cc.comb.ClipOutRange()
	}
	return image.Rectangle{}
}

// ClipIn returns the element for old clip intersected with the fill. It is
// owned by c; Retain it to keep it past c.
func (c ClipCombineResult) ClipIn() ClipElement {
	if cc, err := c.get(); err == nil {
		return ClipElement{r: c.r, h: cc.in}
	}
	return ClipElement{}
}

// ClipOut returns the element for old clip minus the fill. It is owned by
// c; Retain it to keep it past c.
func (c ClipCombineResult) ClipOut() ClipElement {
	if cc, err := c.get(); err == nil {
		return ClipElement{r: c.r, h: cc.out}
	}
	return ClipElement{}
}

// Retain adds a reference.
func (c ClipCombineResult) Retain() error {
	if c.r == nil || !c.r.combines.Retain(c.h) {
		return ErrStaleHandle
	}
	return nil
}

// Release drops a reference. The clip-in and clip-out elements and the
// fill image are released with the last one.
func (c ClipCombineResult) Release() {
	if c.r != nil {
		c.r.combines.Release(c.h)
	}
}

// CombineClip splits the finished mask buffer fill against old. The result
// holds the per-tile classification and two mask buffers of the fill's
// size: clip-in, old intersected with fill, and clip-out, old minus fill.
// Their full and empty tiles take no storage; each partial tile gets one
// mask-combine draw. Both mask buffers are finished on return.
func (r *Renderer) CombineClip(old ClipElement, fill Buffer) (ClipCombineResult, error) {
	if !r.active {
		return ClipCombineResult{}, ErrNoFrame
	}
	oe, err := old.get()
	if err != nil {
		return ClipCombineResult{}, err
	}
	fb, err := fill.get()
	if err != nil {
		return ClipCombineResult{}, err
	}
	if err := checkReadable(fb); err != nil {
		return ClipCombineResult{}, err
	}
	o := *oe

	if fb.kind == KindDegenerate || fb.failed || fb.image == nil {
		r.clips.Retain(old.h)
		in := r.NullClipElement(true)
		h, cc := r.combines.Acquire()
		*cc = clipCombine{comb: clip.Combine(image.Point{}, clip.Uniform(tile.Empty), clip.Uniform(tile.Empty)), in: in.h, out: old.h}
		return ClipCombineResult{r: r, h: h}, nil
	}

	grid := fb.image.Grid()
	comb := clip.Combine(grid, r.oldTypes(&o, fb), fb.image)

	inShader, outShader := shader.MaskIntersect, shader.MaskSubtract
	if o.inverse {
		inShader, outShader = shader.MaskSubtract, shader.MaskExclude
	}
	in := r.combineMask(&o, fb, comb.ClipInTiles(tile.Full), comb.ClipInTiles(tile.Empty), comb.ClipInTiles(tile.Partial), inShader, "clip in")
	out := r.combineMask(&o, fb, comb.ClipOutTiles(tile.Full), comb.ClipOutTiles(tile.Empty), comb.ClipOutTiles(tile.Partial), outShader, "clip out")

	inElem, err := r.CreateClipElement(r.handle(in), MaskCoverage, ChannelA)
	if err != nil {
		return ClipCombineResult{}, err
	}
	outElem, err := r.CreateClipElement(r.handle(out), MaskCoverage, ChannelA)
	if err != nil {
		inElem.Release()
		return ClipCombineResult{}, err
	}

	r.retainImage(fb.image)
	h, cc := r.combines.Acquire()
	*cc = clipCombine{
		toImage: fb.group.ToImage(),
		fill:    fb.image,
		comb:    comb,
		in:      inElem.h,
		out:     outElem.h,
	}
	vbuf.Logger().Debug("render: clip combine",
		"fill", fb.id, "grid", grid,
		"mixed", comb.Count(clip.ClassMixed),
		"partial_in", comb.Count(clip.ClassPartialClipIn),
		"partial_out", comb.Count(clip.ClassPartialClipOut))
	return ClipCombineResult{r: r, h: h}, nil
}

// oldTypes maps the tile types of e onto the tile grid of fill. A fill
// tile spanning several old tiles of different types is partial.
func (r *Renderer) oldTypes(e *clipElement, fill *buffer) clip.TileTypes {
	if e.image == nil {
		return clip.Uniform(e.polarity)
	}
	size := fill.group.Size()
	grid := tile.GridSize(size)
	outside := e.flip(tile.Empty)
	types := clip.NewTypeGrid(grid, outside)

	toOld := fill.group.Bounds().ToPixel().Then(e.toImage)
	oldBounds := image.Rectangle{Max: e.image.Size()}
	oldGrid := e.image.Grid()
	for ty := range grid.Y {
		for tx := range grid.X {
			pr := toOld.ApplyRect(geom.RectFromImage(tile.PixelRect(tx, ty, size))).RoundOut()
			var t tile.Type
			first := true
			merge := func(v tile.Type) {
				if first {
					t, first = v, false
				} else if t != v {
					t = tile.Partial
				}
			}
			if !pr.In(oldBounds) {
				merge(outside)
			}
			cover := tile.Covering(pr.Intersect(oldBounds), oldGrid)
			for oy := cover.Min.Y; oy < cover.Max.Y; oy++ {
				for ox := cover.Min.X; ox < cover.Max.X; ox++ {
					merge(e.tileType(ox, oy))
				}
			}
			types.Set(tx, ty, t)
		}
	}
	return types
}

// combineMask creates and finishes one mask buffer of a clip combine.
func (r *Renderer) combineMask(old *clipElement, fill *buffer, full, empty, partial []image.Point, id shader.ID, label string) *buffer {
	b := r.newBuffer(KindImage, fill.group, label)
	b.list = r.newList()
	b.full = append(b.full, full...)
	b.empty = append(b.empty, empty...)

	oldSampler, oldDep := r.elementSampler(old)
	fillSampler := sampler{buf: fill.id}
	rec := drawRecord{mask: oldSampler, source: fillSampler}
	if old.inverse {
		rec = drawRecord{mask: fillSampler, source: oldSampler}
	}
	deps := []int32{fill.id}
	if oldDep >= 0 && oldDep != fill.id {
		deps = append(deps, oldDep)
	}

	toPixel := fill.group.Bounds().ToPixel()
	size := fill.group.Size()
	for _, t := range partial {
		box := toPixel.ApplyRect(geom.RectFromImage(tile.PixelRect(t.X, t.Y, size)))
		cmd := command.DrawCommand{Shader: id, Blend: command.BlendOpaque}
		r.addDraw(b, cmd, box, rec, deps)
	}
	r.finish(b.id)
	return b
}

// Composite draws the result of c into dst tile by tile: paint where the
// clip-in region is, black where only the clip-out region is. Full tiles
// are flat fills, partial tiles read one mask and mixed tiles read both.
func (c ClipCombineResult) Composite(dst Buffer, paint ItemData) error {
	cc, err := c.get()
	if err != nil {
		return err
	}
	db, err := dst.getActive()
	if err != nil {
		return err
	}
	if db.state != StateRecording {
		return ErrBufferFinished
	}
	if db.kind == KindDegenerate || cc.fill == nil {
		return nil
	}
	if db.list == nil {
		return fmt.Errorf("%w: %s buffer", ErrNotDrawable, db.kind)
	}

	r := c.r
	values, err := r.itemValues(paint)
	if err != nil {
		return err
	}
	black := []float32{0, 0, 0, 1}

	ie, err := ClipElement{r: r, h: cc.in}.get()
	if err != nil {
		return err
	}
	oe, err := ClipElement{r: r, h: cc.out}.get()
	if err != nil {
		return err
	}
	inS, inDep := r.elementSampler(ie)
	outS, outDep := r.elementSampler(oe)
	var inDeps, outDeps, bothDeps []int32
	if inDep >= 0 {
		inDeps = []int32{inDep}
		bothDeps = append(bothDeps, inDep)
	}
	if outDep >= 0 {
		outDeps = []int32{outDep}
		bothDeps = append(bothDeps, outDep)
	}

	toPixel := cc.toImage.Inverse()
	size := cc.fill.Size()
	grid := cc.comb.Grid()
	for ty := range grid.Y {
		for tx := range grid.X {
			box := toPixel.ApplyRect(geom.RectFromImage(tile.PixelRect(tx, ty, size)))
			cmd := command.DrawCommand{Blend: command.BlendSourceOver}
			rec := drawRecord{source: noSampler, mask: noSampler}
			var deps []int32
			switch cc.comb.At(tx, ty).Classification {
			case clip.ClassFullClipIn:
				cmd.Shader, rec.values = shader.Solid, values
			case clip.ClassFullClipOut:
				cmd.Shader, rec.values = shader.Solid, black
			case clip.ClassPartialClipIn:
				cmd.Shader, rec.values, rec.mask, deps = shader.MaskTile, values, inS, inDeps
			case clip.ClassPartialClipOut:
				cmd.Shader, rec.values, rec.mask, deps = shader.MaskTile, black, outS, outDeps
			case clip.ClassMixed:
				cmd.Shader, rec.values, rec.source, rec.mask, deps = shader.MixedTile, values, inS, outS, bothDeps
			default:
				continue
			}
			r.addDraw(db, cmd, box, rec, deps)
		}
	}
	return nil
}
