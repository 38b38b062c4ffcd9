package backend

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/vbuf/internal/command"
	"github.com/gogpu/vbuf/internal/geom"
	"github.com/gogpu/vbuf/internal/shader"
)

var (
	red   = []float32{1, 0, 0, 1}
	green = []float32{0, 1, 0, 1}
	half  = []float32{0, 0, 0.5, 0.5} // premultiplied 50% blue
)

func newSoftware() *Software {
	return NewSoftware(shader.NewLibrary(4, func(string) ([]byte, error) { return make([]byte, 8), nil }))
}

func TestSoftware_PassLifecycle(t *testing.T) {
	s := newSoftware()
	target := NewImageTarget(8, 8)
	if err := s.EndPass(); !errors.Is(err, ErrNoPass) {
		t.Errorf("EndPass() without pass error = %v", err)
	}
	if err := s.BeginPass(Pass{Target: target}); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginPass(Pass{Target: target}); !errors.Is(err, ErrPassActive) {
		t.Errorf("nested BeginPass() error = %v", err)
	}
	if err := s.EndPass(); err != nil {
		t.Errorf("EndPass() error = %v", err)
	}

	type bare struct{ Target }
	if err := s.BeginPass(Pass{Target: bare{target}}); !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("BeginPass(bare) error = %v, want ErrUnsupportedTarget", err)
	}
}

func TestSoftware_DepthOrdering(t *testing.T) {
	s := newSoftware()
	target := NewImageTarget(16, 16)
	if err := s.BeginPass(Pass{Target: target, Clear: true}); err != nil {
		t.Fatal(err)
	}
	box := geom.NewRect(0, 0, 16, 16)

	// Submission order: green blended (z 0), red opaque (z 1).
	// Replay order puts the opaque draw first.
	s.DrawRenderData(DrawData{Z: 1, Shader: shader.Solid, Blend: command.BlendOpaque, Values: red, Box: box})
	s.DrawRenderData(DrawData{Z: 0, Shader: shader.Solid, Blend: command.BlendSourceOver, Values: green, Box: box})
	// A blended draw submitted after the opaque one shows on top.
	s.DrawRenderData(DrawData{Z: 1, Shader: shader.Solid, Blend: command.BlendSourceOver, Values: half, Box: geom.NewRect(0, 0, 4, 4)})
	if err := s.EndPass(); err != nil {
		t.Fatal(err)
	}

	img := target.Image()
	if got := img.RGBAAt(8, 8); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("pixel (8,8) = %v, want opaque red", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 128, B: 128, A: 255}) {
		t.Errorf("pixel (1,1) = %v, want red with blue over it", got)
	}
}

func TestSoftware_ClipWindow(t *testing.T) {
	s := newSoftware()
	target := NewImageTarget(16, 16)
	_ = s.BeginPass(Pass{Target: target})
	s.DrawRenderData(DrawData{Shader: shader.Solid, Blend: command.BlendOpaque, Values: red,
		Box: geom.NewRect(0, 0, 16, 16), ClipWindow: image.Rect(4, 4, 8, 8)})
	s.DrawRenderData(DrawData{Shader: shader.Solid, Values: red,
		Box: geom.NewRect(0, 0, 4, 4), ClipWindow: image.Rect(8, 8, 12, 12)})
	_ = s.EndPass()

	if got := s.Stats(); got.Pixels != 16 || got.Culled != 1 || got.Draws != 2 {
		t.Errorf("Stats() = %+v, want 16 pixels, 1 culled, 2 draws", got)
	}
	if target.Image().RGBAAt(3, 3).A != 0 || target.Image().RGBAAt(4, 4).A != 255 {
		t.Error("scissor not applied")
	}
}

func TestSoftware_MaskShaders(t *testing.T) {
	fill := image.NewAlpha(image.Rect(0, 0, 4, 1))
	old := image.NewAlpha(image.Rect(0, 0, 4, 1))
	for x, v := range []uint8{0, 255, 255, 128} {
		fill.SetAlpha(x, 0, color.Alpha{A: v})
	}
	for x := range 4 {
		old.SetAlpha(x, 0, color.Alpha{A: 255})
	}

	tests := []struct {
		id   shader.ID
		want []uint8
	}{
		{shader.MaskIntersect, []uint8{0, 255, 255, 128}},
		{shader.MaskSubtract, []uint8{255, 0, 0, 127}},
		{shader.MaskExclude, []uint8{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		s := newSoftware()
		target := NewImageTarget(4, 1)
		_ = s.BeginPass(Pass{Target: target})
		s.DrawRenderData(DrawData{Shader: tt.id, Blend: command.BlendOpaque,
			Box: geom.NewRect(0, 0, 4, 1), Source: fill, SourceMap: geom.Identity(), Mask: old, MaskMap: geom.Identity()})
		_ = s.EndPass()
		for x, want := range tt.want {
			if got := target.Image().RGBAAt(x, 0).A; got != want {
				t.Errorf("shader %d pixel %d alpha = %d, want %d", tt.id, x, got, want)
			}
		}
	}
}

func TestSoftware_SourceMap(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.SetRGBA(2, 2, color.RGBA{R: 255, A: 255})
	src.SetRGBA(3, 3, color.RGBA{R: 255, A: 255})

	tests := []struct {
		name string
		m    geom.Transform
		at   image.Point
		want color.RGBA
	}{
		{"identity", geom.Identity(), image.Pt(2, 2), color.RGBA{R: 255, A: 255}},
		{"translate", geom.Transform{Scale: 1, Translate: geom.Pt(-3, -3)}, image.Pt(5, 5), color.RGBA{R: 255, A: 255}},
		{"minify", geom.Transform{Scale: 0.5}, image.Pt(4, 4), color.RGBA{R: 255, A: 255}},
		{"minify neighbor", geom.Transform{Scale: 0.5}, image.Pt(5, 5), color.RGBA{R: 255, A: 255}},
		{"minify outside", geom.Transform{Scale: 0.5}, image.Pt(2, 2), color.RGBA{}},
		{"magnify", geom.Transform{Scale: 2}, image.Pt(1, 1), color.RGBA{R: 255, A: 255}},
		{"magnify outside", geom.Transform{Scale: 2}, image.Pt(2, 2), color.RGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSoftware()
			target := NewImageTarget(8, 8)
			_ = s.BeginPass(Pass{Target: target, Clear: true})
			s.DrawRenderData(DrawData{Shader: shader.Image, Blend: command.BlendOpaque, Values: []float32{1, 1, 1, 1},
				Box: geom.NewRect(0, 0, 8, 8), Source: src, SourceMap: tt.m})
			_ = s.EndPass()
			if got := target.Image().RGBAAt(tt.at.X, tt.at.Y); got != tt.want {
				t.Errorf("RGBAAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSoftware_BlendState(t *testing.T) {
	blue := color.RGBA{B: 255, A: 255}
	tests := []struct {
		name   string
		mode   command.BlendMode
		values []float32
		want   color.RGBA
	}{
		{"opaque", command.BlendOpaque, []float32{1, 0, 0, 1}, color.RGBA{R: 255, A: 255}},
		{"source-over", command.BlendSourceOver, []float32{0.5, 0, 0, 0.5}, color.RGBA{R: 128, B: 128, A: 255}},
		{"alpha", command.BlendAlpha, []float32{1, 0, 0, 0.5}, color.RGBA{R: 128, B: 128, A: 255}},
		{"additive", command.BlendAdditive, []float32{0.5, 0, 0, 0.5}, color.RGBA{R: 128, B: 255, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSoftware()
			target := NewImageTarget(2, 2)
			for y := range 2 {
				for x := range 2 {
					target.Image().SetRGBA(x, y, blue)
				}
			}
			_ = s.BeginPass(Pass{Target: target})
			s.DrawRenderData(DrawData{Shader: shader.Solid, Blend: tt.mode, Values: tt.values, Box: geom.NewRect(0, 0, 2, 2)})
			_ = s.EndPass()
			if got := target.Image().RGBAAt(1, 1); got != tt.want {
				t.Errorf("blend %v = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestBlend_ComponentOperations(t *testing.T) {
	src := rgba{0.6, 0.2, 0, 0.6}
	dst := color.RGBA{R: 51, G: 255, A: 255}
	one := func(op gputypes.BlendOperation) gputypes.BlendState {
		c := gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne, Operation: op}
		return gputypes.BlendState{Color: c, Alpha: c}
	}
	tests := []struct {
		name string
		st   gputypes.BlendState
		want color.RGBA
	}{
		{"replace", gputypes.BlendStateReplace(), color.RGBA{R: 153, G: 51, A: 153}},
		{"subtract", one(gputypes.BlendOperationSubtract), color.RGBA{R: 102}},
		{"reverse subtract", one(gputypes.BlendOperationReverseSubtract), color.RGBA{G: 204, A: 102}},
		{"min", one(gputypes.BlendOperationMin), color.RGBA{R: 51, G: 51, A: 153}},
		{"max", one(gputypes.BlendOperationMax), color.RGBA{R: 153, G: 255, A: 255}},
	}
	for _, tt := range tests {
		if got := blend(tt.st, src, dst); got != tt.want {
			t.Errorf("blend(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDepthPasses(t *testing.T) {
	tests := []struct {
		f         gputypes.CompareFunction
		z, stored uint32
		want      bool
	}{
		{command.DepthCompare, 2, 2, true},
		{command.DepthCompare, 3, 2, true},
		{command.DepthCompare, 1, 2, false},
		{gputypes.CompareFunctionLess, 1, 2, true},
		{gputypes.CompareFunctionLess, 2, 2, false},
		{gputypes.CompareFunctionEqual, 2, 2, true},
		{gputypes.CompareFunctionNotEqual, 2, 2, false},
		{gputypes.CompareFunctionNever, 2, 2, false},
		{gputypes.CompareFunctionAlways, 0, 9, true},
	}
	for _, tt := range tests {
		if got := depthPasses(tt.f, tt.z, tt.stored); got != tt.want {
			t.Errorf("depthPasses(%v, %d, %d) = %v, want %v", tt.f, tt.z, tt.stored, got, tt.want)
		}
	}
}

func TestSoftware_Record(t *testing.T) {
	s := newSoftware()
	s.Record(true)
	_ = s.BeginPass(Pass{Target: NewImageTarget(2, 2)})
	s.DrawRenderData(DrawData{Z: 3, Box: geom.NewRect(0, 0, 1, 1)})
	_ = s.EndPass()
	if calls := s.Calls(); len(calls) != 1 || calls[0].Z != 3 {
		t.Errorf("Calls() = %+v", calls)
	}
}

type fakeProvider struct {
	format gputypes.TextureFormat
	kind   gpucontext.AdapterType
	device hal.Device
}

func (p *fakeProvider) Device() gpucontext.Device { return nil }
func (p *fakeProvider) Queue() gpucontext.Queue   { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return p.format
}
func (p *fakeProvider) Adapter() gpucontext.Adapter { return nil }
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "fake", Type: p.kind}
}
func (p *fakeProvider) HalDevice() any { return p.device }

func TestDeviceTarget(t *testing.T) {
	headless := NewDeviceTarget(&fakeProvider{kind: gpucontext.AdapterTypeSoftware}, 4, 4)
	if headless.Format() != gputypes.TextureFormatRGBA8Unorm || !headless.Software() {
		t.Errorf("headless Format() = %v, Software() = %v", headless.Format(), headless.Software())
	}

	p := &fakeProvider{format: gputypes.TextureFormatBGRA8Unorm, device: &noop.Device{}}
	target := NewDeviceTarget(p, 8, 8)
	if target.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v", target.Format())
	}

	s := newSoftware()
	key := s.CreateUberShadingKey()
	if err := s.AddShader(key, shader.Solid); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginPass(Pass{Target: target, Shaders: key}); err != nil {
		t.Fatalf("BeginPass(device) error = %v", err)
	}
	s.DrawRenderData(DrawData{Shader: shader.Solid, Blend: command.BlendOpaque, Values: green, Box: geom.NewRect(0, 0, 8, 8)})
	_ = s.EndPass()
	if s.Stats().Programs != 1 {
		t.Errorf("Programs = %d, want 1", s.Stats().Programs)
	}
	if got := target.Image().RGBAAt(7, 7); got != (color.RGBA{G: 255, A: 255}) {
		t.Errorf("frame pixel = %v", got)
	}
}
