package render

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/gogpu/vbuf"
	"github.com/gogpu/vbuf/internal/atlas"
	"github.com/gogpu/vbuf/internal/backend"
	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
)

// placed is a buffer packed into a wave with its origin on the scratch or
// shadow surface.
type placed struct {
	b      *buffer
	origin image.Point
	window image.Rectangle
}

// schedule renders every finished buffer except render targets in waves.
// A buffer joins the first wave after all of its dependencies rendered.
// Buffers that need no pass (degenerate, assembled, failed) complete as
// soon as they are ready, without taking a wave.
func (r *Renderer) schedule() {
	var pending []int32
	r.buffers.All(func(idx int, b *buffer) {
		if b.kind != KindRenderTarget && b.state != StateRendered {
			pending = append(pending, int32(idx)) //nolint:gosec // per-frame sizes
		}
	})

	for len(pending) > 0 {
		pending = r.completeTrivial(pending)
		if len(pending) == 0 {
			break
		}
		var ready, rest []int32
		for _, id := range pending {
			if r.buffers.At(int(id)).remaining == 0 {
				ready = append(ready, id)
			} else {
				rest = append(rest, id)
			}
		}
		if len(ready) == 0 {
			vbuf.Logger().Error("render: dependency graph stalled", "frame", r.frame, "pending", len(rest))
			for _, id := range rest {
				b := r.buffers.At(int(id))
				b.failed = true
				r.complete(b)
			}
			return
		}
		later := r.renderWave(ready)
		pending = append(later, rest...)
	}
}

// completeTrivial completes ready buffers that need no pass, repeating as
// completions make more of them ready, and returns the rest.
func (r *Renderer) completeTrivial(pending []int32) []int32 {
	for {
		n := len(pending)
		pending = slices.DeleteFunc(pending, func(id int32) bool {
			b := r.buffers.At(int(id))
			if b.state == StateRendered {
				return true
			}
			if b.remaining > 0 || !b.trivial() {
				return false
			}
			r.complete(b)
			return true
		})
		if len(pending) == n {
			return pending
		}
	}
}

// trivial reports whether b completes without being drawn.
func (b *buffer) trivial() bool {
	switch {
	case b.failed, b.image == nil:
		return true
	case b.kind == KindDegenerate, b.kind == KindAssembled:
		return true
	}
	return b.image.CountTiles(atlas.TileBacked) == 0
}

// renderWave packs ready into the scratch and shadow surfaces, renders
// them and returns the buffers that did not fit this wave.
func (r *Renderer) renderWave(ready []int32) (later []int32) {
	slices.SortFunc(ready, func(a, b int32) int {
		sa := r.buffers.At(int(a)).group.Size()
		sb := r.buffers.At(int(b)).group.Size()
		if c := cmp.Compare(sb.X*sb.Y, sa.X*sa.Y); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	r.rects.Reset()
	r.strips.Reset()
	r.stats.Waves++
	wave := r.stats.Waves

	var images, shadows []placed
	for _, id := range ready {
		b := r.buffers.At(int(id))
		size := b.group.Size()
		if b.kind == KindShadowMap {
			if !r.strips.Fits(size.X) {
				r.failAndComplete(b, fmt.Errorf("%w: shadow map length %d", ErrInvalidSize, size.X))
				continue
			}
			iv := r.strips.Allocate(size.X)
			if !iv.IsValid() {
				later = append(later, id)
				continue
			}
			b.strip = iv
			origin := image.Pt(iv.Offset, iv.Layer)
			shadows = append(shadows, placed{b: b, origin: origin, window: image.Rect(iv.Offset, iv.Layer, iv.End(), iv.Layer+1)})
		} else {
			if !r.rects.Fits(size.X, size.Y) {
				r.failAndComplete(b, fmt.Errorf("%w: %v exceeds the scratch surface", ErrInvalidSize, size))
				continue
			}
			slot := r.rects.Allocate(size.X, size.Y)
			if !slot.IsValid() {
				later = append(later, id)
				continue
			}
			b.slot = slot
			images = append(images, placed{b: b, origin: slot.Rect.Min, window: slot.Rect})
		}
		b.wave = wave
		b.state = StateScheduled
	}

	r.stats.ScratchLayers = max(r.stats.ScratchLayers, r.rects.LayersUsed())
	r.stats.ShadowLayers = max(r.stats.ShadowLayers, r.strips.LayersUsed())
	vbuf.Logger().Debug("render: wave",
		"wave", wave, "images", len(images), "shadows", len(shadows), "deferred", len(later),
		"layers", r.rects.LayersUsed(), "fill", r.rects.Utilization())

	for layer := range r.rects.LayersUsed() {
		var batch []placed
		for _, p := range images {
			if p.b.slot.Layer == layer {
				batch = append(batch, p)
			}
		}
		target := r.scratchLayer(layer)
		r.renderPass(target, fmt.Sprintf("wave %d layer %d", wave, layer), true, batch)
		r.blit(target, batch)
	}
	if len(shadows) > 0 {
		target := r.shadowTarget()
		r.renderPass(target, fmt.Sprintf("wave %d shadows", wave), true, shadows)
		r.blit(target, shadows)
	}

	for _, p := range images {
		r.complete(p.b)
	}
	for _, p := range shadows {
		r.complete(p.b)
	}
	return later
}

func (r *Renderer) failAndComplete(b *buffer, err error) {
	r.fail(b, err)
	r.complete(b)
}

func (r *Renderer) scratchLayer(layer int) *backend.ImageTarget {
	for len(r.scratch) <= layer {
		r.scratch = append(r.scratch, backend.NewImageTarget(r.cfg.ScratchWidth, r.cfg.ScratchHeight))
	}
	return r.scratch[layer]
}

func (r *Renderer) shadowTarget() *backend.ImageTarget {
	if r.shadow == nil {
		r.shadow = backend.NewImageTarget(r.cfg.ShadowLength, r.cfg.ShadowLayers)
	}
	return r.shadow
}

// commands returns the list b replays and the pixel window it is replayed
// over. Split pieces replay the region of their parent's list they cover.
func (r *Renderer) commands(b *buffer) (*command.List, geom.Rect, bool) {
	if b.parent >= 0 {
		return r.buffers.At(int(b.parent)).list, b.group.Bounds().PixelWindow(), true
	}
	return b.list, geom.Rect{}, false
}

// renderPass opens one pass over target and draws every buffer of batch
// at its origin. A pass that cannot begin fails its buffers.
func (r *Renderer) renderPass(target backend.Target, label string, clearTarget bool, batch []placed) {
	if len(batch) == 0 {
		return
	}
	key := r.backend.CreateUberShadingKey()
	for _, p := range batch {
		l, _, _ := r.commands(p.b)
		if l == nil {
			continue
		}
		for _, id := range l.Shaders() {
			if err := r.backend.AddShader(key, id); err != nil {
				vbuf.Logger().Warn("render: shader not added to pass", "pass", label, "shader", id, "err", err)
			}
		}
	}

	if err := r.backend.BeginPass(backend.Pass{Target: target, Shaders: key, Clear: clearTarget, Label: label}); err != nil {
		r.stats.PassFailures++
		vbuf.Logger().Warn("render: pass failed", "pass", label, "buffers", len(batch), "err", err)
		for _, p := range batch {
			p.b.failed = true
		}
		return
	}
	for _, p := range batch {
		r.drawBuffer(p)
	}
	if err := r.backend.EndPass(); err != nil {
		vbuf.Logger().Warn("render: end pass", "pass", label, "err", err)
	}
}

// drawBuffer issues the commands of one buffer, mapped from pixel space
// onto its place in the pass target.
func (r *Renderer) drawBuffer(p placed) {
	l, window, region := r.commands(p.b)
	if l == nil {
		return
	}
	t := p.b.group.ToImage().Translated(geom.Pt(float64(p.origin.X), float64(p.origin.Y)))
	emit := func(_ int, d *command.RectDraw) {
		rec := r.records[d.Command.Item]
		dd := backend.DrawData{
			Z:          d.Command.Z,
			Shader:     d.Command.Shader,
			Blend:      d.Command.Blend,
			Values:     rec.values,
			Vertices:   d.Command.Vertices,
			Box:        t.ApplyRect(d.Box),
			ClipWindow: p.window,
		}
		dd.Source, dd.SourceMap = r.resolve(rec.source, t)
		dd.Mask, dd.MaskMap = r.resolve(rec.mask, t)
		r.backend.DrawRenderData(dd)
	}
	if region {
		l.ReplayRegion(window, emit)
	} else {
		l.Replay(emit)
	}
}

var (
	opaqueMask      = image.NewUniform(color.Opaque)
	transparentMask = image.NewUniform(color.Transparent)
)

// resolve returns the image a sampler reads and the map from target
// pixels to its image pixels. t maps pixel space onto the target.
func (r *Renderer) resolve(s sampler, t geom.Transform) (image.Image, geom.Transform) {
	if s.uniform {
		return opaqueMask, geom.Identity()
	}
	img, st := s.img, s.toImage
	if s.buf >= 0 {
		sb := r.buffers.At(int(s.buf))
		img, st = sb.image, sb.group.ToImage()
		if sb.failed {
			img = nil
		}
	}
	if img == nil {
		if s.buf < 0 {
			return nil, geom.Identity()
		}
		return transparentMask, geom.Identity()
	}
	if img.Released() {
		return transparentMask, geom.Identity()
	}
	return r.atlas.View(img), t.Inverse().Then(st)
}

// blit copies the rendered pixels of each buffer from the pass target into
// the backed tiles of its image.
func (r *Renderer) blit(target *backend.ImageTarget, batch []placed) {
	src := target.Image()
	for _, p := range batch {
		if p.b.failed || p.b.image == nil {
			continue
		}
		size := p.b.group.Size()
		r.stats.TilesBlitted += r.atlas.CopyPixels(p.b.image, image.Rectangle{Max: size}, src, p.origin)
	}
}

// complete marks b rendered, unblocks its users and releases the backing
// of dependencies whose readers have all rendered.
func (r *Renderer) complete(b *buffer) {
	if b.state == StateRendered {
		return
	}
	b.state = StateRendered
	if !b.failed && b.kind != KindDegenerate {
		r.stats.BuffersRendered++
	}
	for _, u := range b.users {
		r.buffers.At(int(u)).remaining--
	}
	for _, d := range b.deps {
		db := r.buffers.At(int(d))
		db.completed++
		if db.completed == len(db.users) && db.owned {
			r.disown(db)
			r.stats.ImagesReclaimed++
		}
	}
}

// renderTargets renders every render target of the frame in creation
// order, after all other buffers.
func (r *Renderer) renderTargets() {
	r.buffers.All(func(_ int, b *buffer) {
		if b.kind != KindRenderTarget || b.state == StateRendered {
			return
		}
		if b.remaining > 0 {
			b.failed = true
		}
		if !b.failed {
			size := b.group.Size()
			label := "target"
			if b.label != "" {
				label += " " + b.label
			}
			r.renderPass(b.target, label, !b.keep, []placed{{b: b, window: image.Rectangle{Max: size}}})
		}
		r.complete(b)
	})
}
