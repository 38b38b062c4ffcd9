package render

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/vbuf"
	"github.com/gogpu/vbuf/internal/atlas"
	"github.com/gogpu/vbuf/internal/backend"
	"github.com/gogpu/vbuf/internal/clip"
	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/pack"
	"github.com/gogpu/vbuf/internal/tile"
)

// Kind is the variant of a render buffer.
type Kind uint8

const (
	// KindImage renders into a sparse backing image.
	KindImage Kind = iota
	// KindSubImage renders a region of another buffer: a snapshot or a
	// piece of an oversized image.
	KindSubImage
	// KindAssembled is stitched from the tiles of other buffers and is
	// never rendered itself.
	KindAssembled
	// KindRenderTarget renders directly into a presented surface.
	KindRenderTarget
	// KindShadowMap renders into a one-pixel-high strip.
	KindShadowMap
	// KindDegenerate covers no area; everything drawn into it is dropped.
	KindDegenerate
)

var kindNames = [...]string{"image", "sub_image", "assembled", "render_target", "shadow_map", "degenerate"}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// State is the lifecycle stage of a buffer.
type State uint8

const (
	// StateRecording buffers accept draws and dependencies.
	StateRecording State = iota
	// StateFinished buffers are sealed and have their backing sized.
	StateFinished
	// StateScheduled buffers are placed in a wave.
	StateScheduled
	// StateRendered buffers have their pixels in the atlas.
	StateRendered
)

var stateNames = [...]string{"recording", "finished", "scheduled", "rendered"}

// String returns the name of the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// sampler is an image read by a draw: the backing of a buffer of the
// current frame, an image retained from an earlier frame, or a mask that
// covers everything.
type sampler struct {
	buf     int32
	img     *atlas.Image
	toImage geom.Transform
	uniform bool
}

var noSampler = sampler{buf: -1}

// drawRecord holds what a command needs at render time beyond the command
// itself.
type drawRecord struct {
	values []float32
	source sampler
	mask   sampler
}

type part struct {
	id   int32
	tile image.Point
}

type buffer struct {
	id     int32
	kind   Kind
	state  State
	failed bool
	label  string

	group clip.Group
	list  *command.List
	// parent is the buffer whose list a split piece replays, or -1.
	parent int32
	// region is the area of the parent image a split piece covers.
	region image.Rectangle

	deps      []int32
	users     []int32
	remaining int
	completed int

	parts []part

	image *atlas.Image
	owned bool
	full  []image.Point
	empty []image.Point

	target backend.Target
	keep   bool

	wave  int
	slot  pack.Region
	strip pack.Interval
}

// Buffer is a handle to a render buffer of the current frame.
//
// The zero Buffer is not a buffer; it is accepted as "no image" where a
// draw takes an optional source or mask.
type Buffer struct {
	r     *Renderer
	id    int32
	frame uint64
}

// IsZero reports whether b is the zero Buffer.
func (b Buffer) IsZero() bool {
	return b.r == nil
}

func (b Buffer) get() (*buffer, error) {
	if b.r == nil || b.frame != b.r.frame || int(b.id) >= b.r.buffers.Len() {
		return nil, ErrStaleBuffer
	}
	return b.r.buffers.At(int(b.id)), nil
}

// getActive resolves b for an operation that needs an open frame.
func (b Buffer) getActive() (*buffer, error) {
	bb, err := b.get()
	if err != nil {
		return nil, err
	}
	if !b.r.active {
		return nil, ErrNoFrame
	}
	return bb, nil
}

// ID returns the dense index of the buffer within its frame.
func (b Buffer) ID() int {
	return int(b.id)
}

// Valid reports whether b refers to a buffer of the current frame.
func (b Buffer) Valid() bool {
	_, err := b.get()
	return err == nil
}

// Kind returns the buffer kind.
func (b Buffer) Kind() Kind {
	if bb, err := b.get(); err == nil {
		return bb.kind
	}
	return KindDegenerate
}

// State returns the lifecycle state.
func (b Buffer) State() State {
	if bb, err := b.get(); err == nil {
		return bb.state
	}
	return StateRecording
}

// Failed reports whether backing allocation or rendering failed. A failed
// buffer reads as transparent.
func (b Buffer) Failed() bool {
	bb, err := b.get()
	return err == nil && bb.failed
}

// Label returns the label given at creation.
func (b Buffer) Label() string {
	if bb, err := b.get(); err == nil {
		return bb.label
	}
	return ""
}

// Size returns the size of the backing image.
func (b Buffer) Size() image.Point {
	if bb, err := b.get(); err == nil {
		return bb.group.Size()
	}
	return image.Point{}
}

// Geometry returns the region the buffer covers.
func (b Buffer) Geometry() GeometryGroup {
	if bb, err := b.get(); err == nil {
		return bb.group
	}
	return GeometryGroup{}
}

// Wave returns the scheduler wave that rendered the buffer, or 0.
func (b Buffer) Wave() int {
	if bb, err := b.get(); err == nil {
		return bb.wave
	}
	return 0
}

// Len returns the number of live commands queued into the buffer.
func (b Buffer) Len() int {
	if bb, err := b.get(); err == nil && bb.list != nil {
		return bb.list.Len()
	}
	return 0
}

// Dependencies returns the buffers b reads from.
func (b Buffer) Dependencies() []Buffer {
	bb, err := b.get()
	if err != nil {
		return nil
	}
	out := make([]Buffer, len(bb.deps))
	for i, id := range bb.deps {
		out[i] = Buffer{r: b.r, id: id, frame: b.frame}
	}
	return out
}

// Users returns the buffers that read b.
func (b Buffer) Users() []Buffer {
	bb, err := b.get()
	if err != nil {
		return nil
	}
	out := make([]Buffer, len(bb.users))
	for i, id := range bb.users {
		out[i] = Buffer{r: b.r, id: id, frame: b.frame}
	}
	return out
}

// TileType returns the type of backing tile (tx, ty): Empty for tiles
// without storage, Full for known-full tiles, Partial otherwise. Buffers
// without backing report Empty.
func (b Buffer) TileType(tx, ty int) TileType {
	bb, err := b.get()
	if err != nil || bb.image == nil {
		return TileEmpty
	}
	return bb.image.TileType(tx, ty)
}

// BackedTiles returns the number of backing tiles with pixel storage.
func (b Buffer) BackedTiles() int {
	bb, err := b.get()
	if err != nil || bb.image == nil {
		return 0
	}
	return bb.image.CountTiles(atlas.TileBacked) + bb.image.CountTiles(atlas.TileShared)
}

// Pixels returns a read view of the backing image. Pixels are defined once
// the buffer is rendered. Buffers without backing return an empty image.
func (b Buffer) Pixels() (image.Image, error) {
	bb, err := b.get()
	if err != nil {
		return nil, err
	}
	if bb.image == nil {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	if bb.image.Released() {
		return nil, ErrImageReleased
	}
	return b.r.atlas.View(bb.image), nil
}

// Retain keeps the backing image alive past the frame and past the point
// where every reader has rendered. The caller must Release the result.
func (b Buffer) Retain() (*Image, error) {
	bb, err := b.get()
	if err != nil {
		return nil, err
	}
	if bb.state == StateRecording {
		return nil, ErrNotFinished
	}
	if bb.image == nil {
		return &Image{r: b.r}, nil
	}
	if bb.image.Released() {
		return nil, ErrImageReleased
	}
	b.r.retainImage(bb.image)
	return &Image{r: b.r, img: bb.image}, nil
}

// Draw describes one draw call.
type Draw struct {
	Shader ShaderID
	Blend  BlendMode
	// Occluder marks an opaque draw known to cover its whole box.
	Occluder bool
	Item     ItemData
	Vertices VertexRange
	// Box bounds the draw in pixel space.
	Box Rect

	// Source and Mask are optional buffers sampled by the shader. Both
	// must be finished; the draw makes the buffer depend on them.
	Source Buffer
	Mask   Buffer
}

// Draw queues a draw. Draws into degenerate buffers and draws with an
// empty box are dropped.
func (b Buffer) Draw(d Draw) error {
	bb, err := b.getActive()
	if err != nil {
		return err
	}
	if bb.state != StateRecording {
		return ErrBufferFinished
	}
	if bb.kind == KindDegenerate {
		return nil
	}
	if bb.list == nil {
		return fmt.Errorf("%w: %s buffer", ErrNotDrawable, bb.kind)
	}
	if _, err := b.r.lib.Lookup(d.Shader); err != nil {
		return err
	}
	values, err := b.r.itemValues(d.Item)
	if err != nil {
		return err
	}
	rec := drawRecord{values: values, source: noSampler, mask: noSampler}
	var deps []int32
	for _, s := range []struct {
		buf Buffer
		dst *sampler
	}{{d.Source, &rec.source}, {d.Mask, &rec.mask}} {
		if s.buf.IsZero() {
			continue
		}
		sb, err := s.buf.get()
		if err != nil {
			return err
		}
		if err := checkReadable(sb); err != nil {
			return err
		}
		*s.dst = sampler{buf: sb.id}
		deps = append(deps, sb.id)
	}
	if d.Box.IsEmpty() {
		return nil
	}

	cmd := command.DrawCommand{
		Shader:   d.Shader,
		Vertices: d.Vertices,
		Blend:    d.Blend,
		Occluder: d.Occluder,
	}
	b.r.addDraw(bb, cmd, d.Box, rec, deps)
	return nil
}

func checkReadable(dep *buffer) error {
	if dep.kind == KindRenderTarget {
		return ErrNotSampleable
	}
	if dep.state == StateRecording {
		return ErrUnfinishedDependency
	}
	return nil
}

// addDraw appends a command with its record and links the buffers it
// reads.
func (r *Renderer) addDraw(b *buffer, cmd command.DrawCommand, box geom.Rect, rec drawRecord, deps []int32) {
	cmd.Item = command.ItemRef(len(r.records)) //nolint:gosec // per-frame sizes
	r.records = append(r.records, rec)
	for _, d := range deps {
		r.link(b.id, d)
	}
	b.list.Add(cmd, box, deps)
	r.stats.Draws++
}

// AddDependency records that b reads other. other must be finished.
func (b Buffer) AddDependency(other Buffer) error {
	bb, err := b.getActive()
	if err != nil {
		return err
	}
	ob, err := other.get()
	if err != nil {
		return err
	}
	if bb.state != StateRecording {
		return ErrBufferFinished
	}
	if err := checkReadable(ob); err != nil {
		return err
	}
	if bb.kind != KindDegenerate {
		b.r.link(bb.id, ob.id)
	}
	return nil
}

// AddSiblingDependency records that b reads other when both are built in
// the same step and other is not finished yet. Finishing b finishes other.
// The edge is rejected when other already reads b.
func (b Buffer) AddSiblingDependency(other Buffer) error {
	bb, err := b.getActive()
	if err != nil {
		return err
	}
	ob, err := other.get()
	if err != nil {
		return err
	}
	if bb.state != StateRecording {
		return ErrBufferFinished
	}
	if ob.kind == KindRenderTarget {
		return ErrNotSampleable
	}
	if b.r.reaches(ob.id, bb.id) {
		return fmt.Errorf("%w: %d already reads %d", ErrDependencyCycle, ob.id, bb.id)
	}
	if bb.kind != KindDegenerate {
		b.r.link(bb.id, ob.id)
	}
	return nil
}

// Finish seals the buffer and sizes its backing. It finishes every buffer
// b depends on. Finishing twice is a no-op.
func (b Buffer) Finish() error {
	bb, err := b.getActive()
	if err != nil {
		return err
	}
	b.r.finish(bb.id)
	return nil
}

// Snapshot captures the commands of b that touch region into a new
// sub-image buffer covering region. With deleteOpaque set, opaque commands
// entirely inside region are removed from b so they are drawn once.
func (b Buffer) Snapshot(region Rect, deleteOpaque bool, opts ...BufferOption) (Buffer, error) {
	bb, err := b.getActive()
	if err != nil {
		return Buffer{}, err
	}
	if bb.list == nil || bb.kind == KindRenderTarget {
		return Buffer{}, fmt.Errorf("%w: %s buffer", ErrNotDrawable, bb.kind)
	}
	if deleteOpaque && bb.state != StateRecording {
		return Buffer{}, ErrBufferFinished
	}

	r := b.r
	o := bufferOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	g := bb.group.Intersect(region)
	nb := r.newBuffer(KindSubImage, g, o.label)
	if nb.kind == KindDegenerate {
		return r.handle(nb), nil
	}
	nb.list = r.newList()
	_, deleted := bb.list.CopyRegion(nb.list, region, deleteOpaque)
	for _, d := range nb.list.AllDeps() {
		r.link(nb.id, d)
	}
	r.stats.CommandsCulled += deleted
	return r.handle(nb), nil
}

// CreateImage creates an image buffer covering g. A degenerate group
// yields a degenerate buffer.
func (r *Renderer) CreateImage(g GeometryGroup, opts ...BufferOption) (Buffer, error) {
	if !r.active {
		return Buffer{}, ErrNoFrame
	}
	o := bufferOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	b := r.newBuffer(KindImage, g, o.label)
	if b.kind != KindDegenerate {
		b.list = r.newList()
		grid := tile.GridSize(g.Size())
		b.full = appendInGrid(b.full, o.full, grid)
		b.empty = appendInGrid(b.empty, o.empty, grid)
	}
	return r.handle(b), nil
}

// CreateShadowMap creates a shadow-map buffer: a strip of length pixels,
// one pixel high, packed one-dimensionally by the scheduler.
func (r *Renderer) CreateShadowMap(length int, opts ...BufferOption) (Buffer, error) {
	if !r.active {
		return Buffer{}, ErrNoFrame
	}
	if length <= 0 || length > r.cfg.ShadowLength {
		return Buffer{}, fmt.Errorf("%w: shadow map length %d, maximum %d", ErrInvalidSize, length, r.cfg.ShadowLength)
	}
	o := bufferOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	g := clip.NewGroup(clip.NewRectGeometry(geom.NewRect(0, 0, float64(length), 1), 1, 0))
	b := r.newBuffer(KindShadowMap, g, o.label)
	b.list = r.newList()
	return r.handle(b), nil
}

// CreateRenderTarget creates a buffer that renders into t after every
// other buffer of the frame. Nothing may depend on it.
func (r *Renderer) CreateRenderTarget(t Target, opts ...BufferOption) (Buffer, error) {
	if !r.active {
		return Buffer{}, ErrNoFrame
	}
	o := bufferOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	size := t.Size()
	g := clip.NewGroup(clip.NewRectGeometry(geom.NewRect(0, 0, float64(size.X), float64(size.Y)), 1, 0))
	b := r.newBuffer(KindRenderTarget, g, o.label)
	if b.kind != KindDegenerate {
		b.list = r.newList()
		b.target = t
		b.keep = o.keep
	}
	return r.handle(b), nil
}

// Part places the tiles of a buffer into an assembled buffer. Tile (0, 0)
// of Buffer lands on tile Tile of the assembled image.
type Part struct {
	Buffer Buffer
	Tile   image.Point
}

// CreateAssembled creates a buffer stitched from the tiles of parts. The
// parts may still be recording; they are finished with the assembled
// buffer. Tiles no part covers are empty; where parts overlap the first
// one wins.
func (r *Renderer) CreateAssembled(g GeometryGroup, parts []Part, opts ...BufferOption) (Buffer, error) {
	if !r.active {
		return Buffer{}, ErrNoFrame
	}
	for _, p := range parts {
		pb, err := p.Buffer.get()
		if err != nil {
			return Buffer{}, err
		}
		if pb.kind == KindRenderTarget {
			return Buffer{}, ErrNotSampleable
		}
	}
	o := bufferOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	b := r.newBuffer(KindAssembled, g, o.label)
	if b.kind == KindDegenerate {
		return r.handle(b), nil
	}
	for _, p := range parts {
		b.parts = append(b.parts, part{id: p.Buffer.id, tile: p.Tile})
		r.link(b.id, p.Buffer.id)
	}
	return r.handle(b), nil
}

func appendInGrid(dst, pts []image.Point, grid image.Point) []image.Point {
	for _, p := range pts {
		if p.In(image.Rectangle{Max: grid}) {
			dst = append(dst, p)
		}
	}
	return dst
}

func (r *Renderer) handle(b *buffer) Buffer {
	return Buffer{r: r, id: b.id, frame: r.frame}
}

func (r *Renderer) newBuffer(kind Kind, g clip.Group, label string) *buffer {
	b, idx := r.buffers.New()
	b.id = int32(idx) //nolint:gosec // per-frame sizes
	b.kind = kind
	b.parent = -1
	b.group = g
	b.label = label
	if g.IsDegenerate() {
		b.kind = KindDegenerate
	}
	r.stats.BuffersCreated++
	return b
}

func (r *Renderer) newList() *command.List {
	l, _ := r.lists.New()
	return l
}

// link records that buffer from reads buffer to.
func (r *Renderer) link(from, to int32) {
	fb := r.buffers.At(int(from))
	if slices.Contains(fb.deps, to) {
		return
	}
	fb.deps = append(fb.deps, to)
	fb.remaining++
	tb := r.buffers.At(int(to))
	tb.users = append(tb.users, from)
}

// reaches reports whether target is reachable from id through dependency
// edges, id included.
func (r *Renderer) reaches(id, target int32) bool {
	seen := make(map[int32]bool)
	stack := []int32{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, r.buffers.At(int(n)).deps...)
	}
	return false
}

// finish seals buffer id and everything it depends on, then sizes the
// backing images.
func (r *Renderer) finish(id int32) {
	b := r.buffers.At(int(id))
	if b.state != StateRecording {
		return
	}
	b.state = StateFinished
	for _, d := range b.deps {
		r.finish(d)
	}
	switch b.kind {
	case KindImage, KindSubImage, KindShadowMap:
		r.allocate(b)
	case KindAssembled:
		r.assemble(b)
	}
}

func (r *Renderer) fail(b *buffer, err error) {
	b.failed = true
	r.stats.AllocationFailures++
	vbuf.Logger().Warn("render: buffer failed",
		"buffer", b.id, "label", b.label, "kind", b.kind, "size", b.group.Size(), "err", err)
}

// allocate classifies the tiles of b and creates its sparse backing image.
func (r *Renderer) allocate(b *buffer) {
	size := b.group.Size()
	t := b.group.ToImage()
	boxes := make([]geom.Rect, 0, b.list.Len())
	for _, box := range b.list.Boxes() {
		boxes = append(boxes, t.ApplyRect(box))
	}

	hd := tile.NewHitDetection(size)
	hd.Threshold = r.cfg.TileHitThreshold
	hd.MaxDepth = r.cfg.TileHitMaxDepth
	backed := hd.Compute(b.group.Regions(), boxes)
	for _, p := range b.empty {
		backed.Remove(p.X, p.Y)
	}
	full := tile.NewSet(backed.Grid())
	for _, p := range b.full {
		backed.Remove(p.X, p.Y)
		full.Add(p.X, p.Y)
	}
	r.stats.PixelsSkipped += hd.Stats().PixelsSkip

	if b.kind != KindShadowMap && (size.X > r.cfg.MaxRenderSize || size.Y > r.cfg.MaxRenderSize) {
		r.split(b, backed, full)
		return
	}

	img, err := r.atlas.CreateImage(size, hd.ComputeEmptyTiles(full), b.full, nil)
	if err != nil {
		r.fail(b, err)
		return
	}
	r.adopt(b, img)
	r.countTiles(img)
}

func (r *Renderer) countTiles(img *atlas.Image) {
	r.stats.TilesBacked += img.CountTiles(atlas.TileBacked)
	r.stats.TilesSkipped += img.CountTiles(atlas.TileEmpty)
}

// split turns an oversized image or snapshot buffer into tile-aligned sub-image pieces
// that replay its commands, and makes b an assembled buffer sharing their
// tiles.
func (r *Renderer) split(b *buffer, backed, full *tile.Set) {
	size := b.group.Size()
	grid := backed.Grid()
	step := max(tile.AlignDown(r.cfg.MaxRenderSize, tile.Size)/tile.Size, 1)
	deps := slices.Clone(b.deps)
	b.kind = KindAssembled

	var empty, fullTiles []image.Point
	var shared []atlas.SharedTile
	for y0 := 0; y0 < grid.Y; y0 += step {
		for x0 := 0; x0 < grid.X; x0 += step {
			tiles := image.Rect(x0, y0, min(x0+step, grid.X), min(y0+step, grid.Y))
			piece := r.newPiece(b, tiles, deps, backed, full)
			for ty := tiles.Min.Y; ty < tiles.Max.Y; ty++ {
				for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
					switch {
					case piece != nil && piece.image != nil:
						shared = append(shared, atlas.SharedTile{
							Tile:       image.Pt(tx, ty),
							Source:     piece.image,
							SourceTile: image.Pt(tx-x0, ty-y0),
						})
					case piece == nil && full.Has(tx, ty):
						fullTiles = append(fullTiles, image.Pt(tx, ty))
					default:
						empty = append(empty, image.Pt(tx, ty))
					}
				}
			}
		}
	}

	img, err := r.atlas.CreateImage(size, empty, fullTiles, shared)
	if err != nil {
		r.fail(b, err)
		return
	}
	r.adopt(b, img)
	vbuf.Logger().Debug("render: split buffer",
		"buffer", b.id, "size", size, "pieces", len(b.deps)-len(deps))
}

// newPiece creates the sub-image of b covering a range of tiles, or
// returns nil when no tile in the range needs rendering.
func (r *Renderer) newPiece(b *buffer, tiles image.Rectangle, deps []int32, backed, full *tile.Set) *buffer {
	hasBacked := false
	for ty := tiles.Min.Y; ty < tiles.Max.Y && !hasBacked; ty++ {
		for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
			if backed.Has(tx, ty) {
				hasBacked = true
				break
			}
		}
	}
	if !hasBacked {
		return nil
	}

	region := tile.RangePixels(tiles, b.group.Size())
	p := r.newBuffer(KindSubImage, b.group.SubImage(region), b.label)
	p.parent = b.id
	p.region = region
	p.state = StateFinished
	for _, d := range deps {
		r.link(p.id, d)
	}
	r.link(b.id, p.id)
	r.stats.Splits++

	var empty, fullTiles []image.Point
	for ty := tiles.Min.Y; ty < tiles.Max.Y; ty++ {
		for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
			local := image.Pt(tx-tiles.Min.X, ty-tiles.Min.Y)
			switch {
			case full.Has(tx, ty):
				fullTiles = append(fullTiles, local)
			case !backed.Has(tx, ty):
				empty = append(empty, local)
			}
		}
	}
	img, err := r.atlas.CreateImage(region.Size(), empty, fullTiles, nil)
	if err != nil {
		r.fail(p, err)
		return p
	}
	r.adopt(p, img)
	r.countTiles(img)
	return p
}

// assemble creates the backing image of an assembled buffer from the
// tiles of its parts.
func (r *Renderer) assemble(b *buffer) {
	size := b.group.Size()
	grid := tile.GridSize(size)
	covered := tile.NewSet(grid)
	var shared []atlas.SharedTile
	for _, p := range b.parts {
		pb := r.buffers.At(int(p.id))
		if pb.image == nil || pb.image.Released() {
			continue
		}
		pg := pb.image.Grid()
		for sy := range pg.Y {
			for sx := range pg.X {
				t := p.tile.Add(image.Pt(sx, sy))
				if !t.In(image.Rectangle{Max: grid}) || covered.Has(t.X, t.Y) {
					continue
				}
				covered.Add(t.X, t.Y)
				shared = append(shared, atlas.SharedTile{Tile: t, Source: pb.image, SourceTile: image.Pt(sx, sy)})
			}
		}
	}
	img, err := r.atlas.CreateImage(size, covered.Complement(), nil, shared)
	if err != nil {
		r.fail(b, err)
		return
	}
	r.adopt(b, img)
}
