// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/gogpu/vbuf"
	"github.com/gogpu/vbuf/internal/atlas"
	"github.com/gogpu/vbuf/internal/backend"
	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/pack"
	"github.com/gogpu/vbuf/internal/shader"
	"github.com/gogpu/vbuf/internal/storage"
)

// Renderer owns the per-frame buffer graph and the resources the scheduler
// renders with: the tile atlas, the scratch surfaces and the backend.
//
// Thread Safety: a Renderer is not safe for concurrent use.
type Renderer struct {
	cfg     vbuf.Config
	atlas   *atlas.TileAtlas
	lib     *shader.Library
	backend backend.Backend

	buffers *storage.Pool[buffer]
	lists   *storage.Pool[command.List]
	records []drawRecord
	items   [][]float32

	clips     *storage.CachePool[clipElement]
	combines  *storage.CachePool[clipCombine]
	imageRefs map[*atlas.Image]int

	frame  uint64
	active bool
	stats  Stats

	scratch []*backend.ImageTarget
	shadow  *backend.ImageTarget
	rects   *pack.LayeredRectAllocator
	strips  *pack.IntervalAllocator
}

// NewRenderer creates a renderer.
//
// Example:
//
//	// Software backend, default tuning
//	r, err := render.NewRenderer()
//
//	// Bounded atlas
//	cfg := vbuf.DefaultConfig()
//	cfg.AtlasTileBudget = 4096
//	r, err := render.NewRenderer(render.WithConfig(cfg))
func NewRenderer(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	cfg := o.cfg
	r := &Renderer{
		cfg:       cfg,
		atlas:     o.atlas,
		lib:       shader.NewLibrary(cfg.ShaderCacheSize, nil),
		backend:   o.backend,
		imageRefs: make(map[*atlas.Image]int),
		rects:     pack.NewLayeredRectAllocator(cfg.ScratchWidth, cfg.ScratchHeight, cfg.Padding, cfg.ScratchLayers),
		strips:    pack.NewIntervalAllocator(cfg.ShadowLength, cfg.ShadowLayers),
	}
	if r.atlas == nil {
		r.atlas = atlas.New(atlas.Config{TileBudget: cfg.AtlasTileBudget})
	}
	if r.backend == nil {
		r.backend = backend.NewSoftware(r.lib)
	}
	r.buffers = storage.NewPool(func(b *buffer) {
		*b = buffer{deps: b.deps[:0], users: b.users[:0], parts: b.parts[:0]}
	})
	r.lists = storage.NewPool(func(l *command.List) {
		l.Reset(cfg.CommandSplitThreshold, cfg.CommandMaxDepth)
	})
	r.clips = storage.NewCachePool(func(e *clipElement) {
		if e.image != nil {
			r.releaseImage(e.image)
		}
	})
	r.combines = storage.NewCachePool(func(c *clipCombine) {
		r.clips.Release(c.in)
		r.clips.Release(c.out)
		if c.fill != nil {
			r.releaseImage(c.fill)
		}
	})
	return r, nil
}

// Config returns the renderer tuning.
func (r *Renderer) Config() vbuf.Config {
	return r.cfg
}

// Frame returns the number of the current or last frame.
func (r *Renderer) Frame() uint64 {
	return r.frame
}

// Active reports whether a frame is open.
func (r *Renderer) Active() bool {
	return r.active
}

// Stats returns the statistics of the current or last frame.
func (r *Renderer) Stats() Stats {
	s := r.stats
	as := r.atlas.Stats()
	s.AtlasTilesInUse = as.InUse
	s.AtlasBytesInUse = as.InUse * r.atlas.BytesPerTile()
	return s
}

// Begin opens a frame. Buffers and item data of the previous frame become
// stale and their backing images are released unless retained.
func (r *Renderer) Begin() error {
	if r.active {
		return ErrFrameActive
	}
	r.releaseFrame()
	r.frame++
	r.stats = Stats{Frame: r.frame}
	r.active = true

	logger := vbuf.Logger()
	if ls, ok := r.backend.(interface{ SetLogger(*slog.Logger) }); ok {
		ls.SetLogger(logger)
	}
	logger.Debug("render: begin frame", "frame", r.frame)
	return nil
}

// End finishes every buffer still recording, renders the dependency graph
// wave by wave, renders the render targets last and closes the frame.
func (r *Renderer) End() (Stats, error) {
	if !r.active {
		return Stats{}, ErrNoFrame
	}
	r.buffers.All(func(_ int, b *buffer) {
		r.finish(b.id)
	})
	r.schedule()
	r.renderTargets()
	r.active = false

	s := r.Stats()
	vbuf.Logger().Debug("render: end frame", "frame", r.frame, "stats", s.String())
	return s, nil
}

// EndAbort closes the frame without rendering. Every backing image not
// retained elsewhere is released.
func (r *Renderer) EndAbort() error {
	if !r.active {
		return ErrNoFrame
	}
	r.releaseFrame()
	r.active = false
	vbuf.Logger().Debug("render: frame aborted", "frame", r.frame)
	return nil
}

// releaseFrame drops the frame's references to backing images and recycles
// the per-frame pools.
func (r *Renderer) releaseFrame() {
	r.buffers.All(func(_ int, b *buffer) {
		r.disown(b)
	})
	r.buffers.Clear()
	r.lists.Clear()
	clear(r.records)
	r.records = r.records[:0]
	clear(r.items)
	r.items = r.items[:0]
}

// Close releases the compiled shaders. The renderer must not be used
// afterwards.
func (r *Renderer) Close() {
	if r.active {
		_ = r.EndAbort()
	}
	r.releaseFrame()
	r.lib.Close()
}

// RegisterShader adds a fragment shader. The source must define
// shade_<name>(in: Fragment) -> vec4<f32>.
func (r *Renderer) RegisterShader(name, source string) (ShaderID, error) {
	return r.lib.Register(name, source)
}

// ItemData is a frame-local handle to per-draw values, such as a color,
// that many draws of the same frame can share. The zero ItemData means
// no values.
type ItemData struct {
	ref   int32
	frame uint64
}

// IsZero reports whether d is the zero ItemData.
func (d ItemData) IsZero() bool {
	return d.ref == 0
}

// CreateItemData stores values for the current frame.
func (r *Renderer) CreateItemData(values ...float32) (ItemData, error) {
	if !r.active {
		return ItemData{}, ErrNoFrame
	}
	r.items = append(r.items, append([]float32(nil), values...))
	return ItemData{ref: int32(len(r.items)), frame: r.frame}, nil //nolint:gosec // per-frame sizes
}

// CreateColor stores c as premultiplied RGBA values.
func (r *Renderer) CreateColor(c color.Color) (ItemData, error) {
	cr, cg, cb, ca := c.RGBA()
	return r.CreateItemData(
		float32(cr)/0xffff, float32(cg)/0xffff, float32(cb)/0xffff, float32(ca)/0xffff)
}

func (r *Renderer) itemValues(d ItemData) ([]float32, error) {
	if d.IsZero() {
		return nil, nil
	}
	if d.frame != r.frame || int(d.ref) > len(r.items) {
		return nil, fmt.Errorf("%w: item data of frame %d", ErrStaleHandle, d.frame)
	}
	return r.items[d.ref-1], nil
}

func (r *Renderer) retainImage(img *atlas.Image) {
	r.imageRefs[img]++
}

func (r *Renderer) releaseImage(img *atlas.Image) {
	n := r.imageRefs[img] - 1
	if n > 0 {
		r.imageRefs[img] = n
		return
	}
	delete(r.imageRefs, img)
	r.atlas.Release(img)
}

// adopt makes img the backing image of b, held by the frame.
func (r *Renderer) adopt(b *buffer, img *atlas.Image) {
	b.image = img
	b.owned = true
	r.retainImage(img)
}

// disown drops the frame's reference to the backing image of b.
func (r *Renderer) disown(b *buffer) {
	if b.owned {
		b.owned = false
		r.releaseImage(b.image)
	}
}

// Image is a backing image kept alive past its frame. It stays readable
// until Release.
type Image struct {
	r   *Renderer
	img *atlas.Image
}

// Size returns the image size, or zero for a buffer without backing.
func (i *Image) Size() image.Point {
	if i.img == nil {
		return image.Point{}
	}
	return i.img.Size()
}

// At returns the color of pixel (x, y).
func (i *Image) At(x, y int) color.RGBA {
	return i.r.atlas.At(i.img, x, y)
}

// View returns the image as an image.Image.
func (i *Image) View() image.Image {
	if i.img == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	return i.r.atlas.View(i.img)
}

// TileType returns the type of tile (tx, ty).
func (i *Image) TileType(tx, ty int) TileType {
	if i.img == nil {
		return TileEmpty
	}
	return i.img.TileType(tx, ty)
}

// Release drops the reference. Releasing twice is a no-op.
func (i *Image) Release() {
	if i.img != nil {
		i.r.releaseImage(i.img)
		i.img = nil
	}
}
