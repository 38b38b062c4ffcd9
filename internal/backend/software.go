package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/shader"
)

// Backend errors.
var (
	// ErrPassActive is returned by BeginPass while a pass is open.
	ErrPassActive = errors.New("backend: pass already active")
	// ErrNoPass is returned by EndPass without an open pass.
	ErrNoPass = errors.New("backend: no active pass")
	// ErrUnsupportedTarget is returned for targets without CPU pixels.
	ErrUnsupportedTarget = errors.New("backend: unsupported target")
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

type pixelTarget interface {
	Image() *image.RGBA
}

// Stats counts the work done by a Software backend.
type Stats struct {
	Passes   int
	Draws    int
	Culled   int // draws rejected by the scissor or an empty box
	Pixels   int // pixels written
	Programs int // uber shaders compiled for device targets
}

// Software executes passes on the CPU.
//
// Every draw fills its box, clipped to the scissor window, with the color
// produced by its shader, combined with the target through the pipeline
// blend state of its BlendMode. Every draw is tested against depth with
// command.DepthCompare; only opaque draws write depth.
//
// When a pass targets a DeviceTarget whose provider exposes a HAL device,
// the pass's uber shader is also compiled and uploaded so the device has
// the program the GPU path would use.
type Software struct {
	lib    *shader.Library
	logger atomic.Pointer[slog.Logger]

	active bool
	pass   Pass
	img    *image.RGBA
	depth  []uint32
	calls  []DrawData
	record bool
	stats  Stats
}

// NewSoftware returns a software backend using lib for shader sets.
func NewSoftware(lib *shader.Library) *Software {
	s := &Software{lib: lib}
	s.logger.Store(slog.New(nopHandler{}))
	return s
}

// SetLogger sets the logger used for pass diagnostics. nil silences it.
func (s *Software) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	s.logger.Store(l)
}

// Record makes the backend keep a copy of every draw of later passes.
func (s *Software) Record(on bool) {
	s.record = on
	s.calls = s.calls[:0]
}

// Calls returns the recorded draws.
func (s *Software) Calls() []DrawData {
	return s.calls
}

// Stats returns the work counters.
func (s *Software) Stats() Stats {
	return s.stats
}

// CreateUberShadingKey implements Backend.
func (s *Software) CreateUberShadingKey() *shader.UberKey {
	return s.lib.CreateUberShadingKey()
}

// AddShader implements Backend.
func (s *Software) AddShader(key *shader.UberKey, id shader.ID) error {
	return s.lib.AddShader(key, id)
}

// BeginPass implements Backend.
func (s *Software) BeginPass(p Pass) error {
	if s.active {
		return ErrPassActive
	}
	pt, ok := p.Target.(pixelTarget)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedTarget, p.Target)
	}
	if dt, ok := p.Target.(*DeviceTarget); ok && p.Shaders != nil && p.Shaders.Len() > 0 {
		if err := s.prepareDevice(dt, p.Shaders); err != nil {
			return err
		}
	}

	s.active = true
	s.pass = p
	s.img = pt.Image()
	n := s.img.Bounds().Dx() * s.img.Bounds().Dy()
	if cap(s.depth) < n {
		s.depth = make([]uint32, n)
	}
	s.depth = s.depth[:n]
	clear(s.depth)
	if p.Clear {
		clear(s.img.Pix)
	}
	s.stats.Passes++
	s.logger.Load().Debug("backend: begin pass",
		"label", p.Label, "size", p.Target.Size(), "format", p.Target.Format())
	return nil
}

func (s *Software) prepareDevice(dt *DeviceTarget, key *shader.UberKey) error {
	type halProvider interface {
		HalDevice() any
	}
	if _, ok := dt.Provider().(halProvider); !ok {
		return nil
	}
	prog, err := s.lib.Compile(key)
	if err != nil {
		return err
	}
	if _, err := s.lib.Module(dt.Provider(), prog); err != nil {
		return err
	}
	s.stats.Programs++
	return nil
}

// EndPass implements Backend.
func (s *Software) EndPass() error {
	if !s.active {
		return ErrNoPass
	}
	s.active = false
	s.img = nil
	return nil
}

// DrawRenderData implements Backend.
func (s *Software) DrawRenderData(d DrawData) {
	if !s.active {
		return
	}
	if s.record {
		s.calls = append(s.calls, d)
	}
	s.stats.Draws++

	r := d.Box.RoundOut().Intersect(s.img.Bounds())
	if !d.ClipWindow.Empty() {
		r = r.Intersect(d.ClipWindow)
	}
	if r.Empty() {
		s.stats.Culled++
		return
	}

	c := itemColor(d.Values)
	width := s.img.Bounds().Dx()
	state := d.Blend.State()
	opaque := d.Blend.IsOpaque()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			di := y*width + x
			if !depthPasses(command.DepthCompare, d.Z, s.depth[di]) {
				continue
			}
			src := shade(d, c, x, y)
			dst := s.img.RGBAAt(x, y)
			s.img.SetRGBA(x, y, blend(state, src, dst))
			if opaque {
				s.depth[di] = d.Z
			}
			s.stats.Pixels++
		}
	}
}

// rgba is a premultiplied color with components in [0, 1].
type rgba struct{ r, g, b, a float32 }

func itemColor(v []float32) rgba {
	if len(v) < 4 {
		return rgba{1, 1, 1, 1}
	}
	return rgba{v[0], v[1], v[2], v[3]}
}

func coverage(img image.Image, p image.Point) float32 {
	if img == nil || !p.In(img.Bounds()) {
		return 0
	}
	_, _, _, a := img.At(p.X, p.Y).RGBA()
	return float32(a) / 0xffff
}

func sample(img image.Image, p image.Point) rgba {
	if img == nil || !p.In(img.Bounds()) {
		return rgba{}
	}
	r, g, b, a := img.At(p.X, p.Y).RGBA()
	return rgba{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff, float32(a) / 0xffff}
}

func scale(c rgba, k float32) rgba {
	return rgba{c.r * k, c.g * k, c.b * k, c.a * k}
}

// texel returns the image pixel under the center of target pixel (x, y).
func texel(m geom.Transform, x, y int) image.Point {
	p := m.Apply(geom.Pt(float64(x)+0.5, float64(y)+0.5))
	return image.Pt(int(math.Floor(p.X)), int(math.Floor(p.Y)))
}

func shade(d DrawData, c rgba, x, y int) rgba {
	switch d.Shader {
	case shader.Image:
		return scale(sample(d.Source, texel(d.SourceMap, x, y)), c.a)
	case shader.MaskIntersect:
		v := coverage(d.Mask, texel(d.MaskMap, x, y)) * coverage(d.Source, texel(d.SourceMap, x, y))
		return rgba{v, v, v, v}
	case shader.MaskSubtract:
		v := coverage(d.Mask, texel(d.MaskMap, x, y)) * (1 - coverage(d.Source, texel(d.SourceMap, x, y)))
		return rgba{v, v, v, v}
	case shader.MaskExclude:
		v := (1 - coverage(d.Mask, texel(d.MaskMap, x, y))) * (1 - coverage(d.Source, texel(d.SourceMap, x, y)))
		return rgba{v, v, v, v}
	case shader.MaskTile:
		return scale(c, coverage(d.Mask, texel(d.MaskMap, x, y)))
	case shader.MixedTile:
		in := coverage(d.Source, texel(d.SourceMap, x, y))
		out := coverage(d.Mask, texel(d.MaskMap, x, y))
		return rgba{c.r * in, c.g * in, c.b * in, in + out*(1-in)}
	}
	return c
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

// depthPasses evaluates a depth compare function for a fragment at z
// against the stored depth.
func depthPasses(f gputypes.CompareFunction, z, stored uint32) bool {
	switch f {
	case gputypes.CompareFunctionNever:
		return false
	case gputypes.CompareFunctionLess:
		return z < stored
	case gputypes.CompareFunctionEqual:
		return z == stored
	case gputypes.CompareFunctionLessEqual:
		return z <= stored
	case gputypes.CompareFunctionGreater:
		return z > stored
	case gputypes.CompareFunctionNotEqual:
		return z != stored
	case gputypes.CompareFunctionGreaterEqual:
		return z >= stored
	}
	return true
}

// blend combines src with dst the way a pipeline with state st would.
func blend(st gputypes.BlendState, src rgba, dst color.RGBA) color.RGBA {
	d := rgba{float32(dst.R) / 255, float32(dst.G) / 255, float32(dst.B) / 255, float32(dst.A) / 255}
	out := rgba{
		r: component(st.Color, src.r, d.r, src, d, false),
		g: component(st.Color, src.g, d.g, src, d, false),
		b: component(st.Color, src.b, d.b, src, d, false),
		a: component(st.Alpha, src.a, d.a, src, d, true),
	}
	return color.RGBA{
		R: uint8(clamp01(out.r)*255 + 0.5),
		G: uint8(clamp01(out.g)*255 + 0.5),
		B: uint8(clamp01(out.b)*255 + 0.5),
		A: uint8(clamp01(out.a)*255 + 0.5),
	}
}

// component blends one channel, s and d being its source and destination
// values.
func component(bc gputypes.BlendComponent, s, d float32, src, dst rgba, alpha bool) float32 {
	sf := factor(bc.SrcFactor, s, d, src, dst, alpha)
	df := factor(bc.DstFactor, s, d, src, dst, alpha)
	switch bc.Operation {
	case gputypes.BlendOperationSubtract:
		return s*sf - d*df
	case gputypes.BlendOperationReverseSubtract:
		return d*df - s*sf
	case gputypes.BlendOperationMin:
		return min(s, d)
	case gputypes.BlendOperationMax:
		return max(s, d)
	}
	return s*sf + d*df
}

// factor returns a blend factor for one channel. The blend constant is
// transparent black.
func factor(f gputypes.BlendFactor, s, d float32, src, dst rgba, alpha bool) float32 {
	switch f {
	case gputypes.BlendFactorZero, gputypes.BlendFactorConstant:
		return 0
	case gputypes.BlendFactorSrc:
		return s
	case gputypes.BlendFactorOneMinusSrc:
		return 1 - s
	case gputypes.BlendFactorSrcAlpha:
		return src.a
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return 1 - src.a
	case gputypes.BlendFactorDst:
		return d
	case gputypes.BlendFactorOneMinusDst:
		return 1 - d
	case gputypes.BlendFactorDstAlpha:
		return dst.a
	case gputypes.BlendFactorOneMinusDstAlpha:
		return 1 - dst.a
	case gputypes.BlendFactorSrcAlphaSaturated:
		if alpha {
			return 1
		}
		return min(src.a, 1-dst.a)
	}
	return 1
}
