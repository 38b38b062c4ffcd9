package render

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gogpu/vbuf"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// testConfig keeps scratch surfaces small so tests stay fast.
func testConfig() vbuf.Config {
	cfg := vbuf.DefaultConfig()
	cfg.ScratchWidth = 512
	cfg.ScratchHeight = 512
	cfg.ScratchLayers = 2
	cfg.ShadowLength = 256
	cfg.ShadowLayers = 4
	cfg.MaxRenderSize = 512
	return cfg
}

func newTestRenderer(t *testing.T, edit func(*vbuf.Config)) *Renderer {
	t.Helper()
	cfg := testConfig()
	if edit != nil {
		edit(&cfg)
	}
	r, err := NewRenderer(WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func begin(t *testing.T, r *Renderer) {
	t.Helper()
	if err := r.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
}

func end(t *testing.T, r *Renderer) Stats {
	t.Helper()
	s, err := r.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	return s
}

func rectGroup(x, y, w, h float64) GeometryGroup {
	return NewGroup(NewRectGeometry(NewRect(x, y, w, h), 1, 0))
}

func mustImage(t *testing.T, r *Renderer, w, h float64, label string) Buffer {
	t.Helper()
	b, err := r.CreateImage(rectGroup(0, 0, w, h), WithLabel(label))
	if err != nil {
		t.Fatalf("CreateImage(%s) error = %v", label, err)
	}
	return b
}

func mustColor(t *testing.T, r *Renderer, c color.Color) ItemData {
	t.Helper()
	d, err := r.CreateColor(c)
	if err != nil {
		t.Fatalf("CreateColor() error = %v", err)
	}
	return d
}

func fill(t *testing.T, b Buffer, box Rect, item ItemData) {
	t.Helper()
	if err := b.Draw(Draw{Shader: ShaderSolid, Blend: BlendSourceOver, Item: item, Box: box}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
}

func copyFrom(t *testing.T, b, src Buffer, box Rect) {
	t.Helper()
	if err := b.Draw(Draw{Shader: ShaderImage, Blend: BlendSourceOver, Source: src, Box: box}); err != nil {
		t.Fatalf("Draw(image) error = %v", err)
	}
}

func finish(t *testing.T, b Buffer) {
	t.Helper()
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
}

func pixel(t *testing.T, b Buffer, x, y int) color.RGBA {
	t.Helper()
	img, err := b.Pixels()
	if err != nil {
		t.Fatalf("Pixels() error = %v", err)
	}
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestNewRendererInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRenderSize = 4096
	if _, err := NewRenderer(WithConfig(cfg)); !errors.Is(err, vbuf.ErrInvalidConfig) {
		t.Errorf("NewRenderer() error = %v, want %v", err, vbuf.ErrInvalidConfig)
	}
}

func TestFrameLifecycle(t *testing.T) {
	r := newTestRenderer(t, nil)

	if _, err := r.End(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("End() without frame error = %v, want %v", err, ErrNoFrame)
	}
	if err := r.EndAbort(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("EndAbort() without frame error = %v, want %v", err, ErrNoFrame)
	}
	if _, err := r.CreateImage(rectGroup(0, 0, 10, 10)); !errors.Is(err, ErrNoFrame) {
		t.Errorf("CreateImage() without frame error = %v, want %v", err, ErrNoFrame)
	}

	begin(t, r)
	if err := r.Begin(); !errors.Is(err, ErrFrameActive) {
		t.Errorf("Begin() twice error = %v, want %v", err, ErrFrameActive)
	}
	if !r.Active() || r.Frame() != 1 {
		t.Errorf("Active() = %v, Frame() = %d, want true, 1", r.Active(), r.Frame())
	}
	s := end(t, r)
	if s.Frame != 1 || r.Active() {
		t.Errorf("after End: Frame = %d, Active() = %v", s.Frame, r.Active())
	}

	begin(t, r)
	if r.Frame() != 2 {
		t.Errorf("Frame() = %d, want 2", r.Frame())
	}
	end(t, r)
}

func TestStaleHandles(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	b := mustImage(t, r, 64, 64, "old")
	item := mustColor(t, r, red)
	end(t, r)

	begin(t, r)
	defer end(t, r)

	if b.Valid() {
		t.Error("buffer of previous frame is still valid")
	}
	if err := b.Draw(Draw{Shader: ShaderSolid, Box: NewRect(0, 0, 8, 8)}); !errors.Is(err, ErrStaleBuffer) {
		t.Errorf("Draw() on stale buffer error = %v, want %v", err, ErrStaleBuffer)
	}
	nb := mustImage(t, r, 64, 64, "new")
	if err := nb.Draw(Draw{Shader: ShaderSolid, Item: item, Box: NewRect(0, 0, 8, 8)}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Draw() with stale item error = %v, want %v", err, ErrStaleHandle)
	}
	var zero Buffer
	if _, err := zero.Pixels(); !errors.Is(err, ErrStaleBuffer) {
		t.Errorf("Pixels() on zero buffer error = %v, want %v", err, ErrStaleBuffer)
	}
}

func TestEndAbort(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	b := mustImage(t, r, 128, 128, "aborted")
	fill(t, b, NewRect(0, 0, 128, 128), mustColor(t, r, red))
	finish(t, b)
	if got := r.atlas.Stats().InUse; got != 16 {
		t.Errorf("atlas slots in use = %d, want 16", got)
	}
	if got, want := r.Stats().AtlasBytesInUse, 16*32*32*4; got != want {
		t.Errorf("AtlasBytesInUse = %d, want %d", got, want)
	}
	if err := r.EndAbort(); err != nil {
		t.Fatalf("EndAbort() error = %v", err)
	}
	if r.Active() {
		t.Error("frame still active after EndAbort")
	}
	if got := r.atlas.Stats().InUse; got != 0 {
		t.Errorf("atlas slots in use after EndAbort = %d, want 0", got)
	}
	if r.Stats().BuffersRendered != 0 {
		t.Errorf("BuffersRendered = %d, want 0", r.Stats().BuffersRendered)
	}
}

func TestSharedAtlas(t *testing.T) {
	a := NewAtlas(AtlasConfig{TileBudget: 6})
	var rs [2]*Renderer
	for i := range rs {
		r, err := NewRenderer(WithConfig(testConfig()), WithAtlas(a))
		if err != nil {
			t.Fatalf("NewRenderer() error = %v", err)
		}
		t.Cleanup(r.Close)
		rs[i] = r
	}

	begin(t, rs[0])
	first := mustImage(t, rs[0], 64, 64, "first")
	fill(t, first, NewRect(0, 0, 64, 64), mustColor(t, rs[0], red))
	end(t, rs[0])

	begin(t, rs[1])
	second := mustImage(t, rs[1], 64, 64, "second")
	fill(t, second, NewRect(0, 0, 64, 64), mustColor(t, rs[1], green))
	s := end(t, rs[1])

	if first.Failed() {
		t.Error("first.Failed() = true, want false")
	}
	if !second.Failed() {
		t.Error("second.Failed() = false, want true once the shared budget is spent")
	}
	if s.AllocationFailures != 1 {
		t.Errorf("AllocationFailures = %d, want 1", s.AllocationFailures)
	}
	if got := a.Stats().InUse; got != 4 {
		t.Errorf("shared atlas InUse = %d, want 4", got)
	}
	if got := s.AtlasTilesInUse; got != 4 {
		t.Errorf("AtlasTilesInUse = %d, want 4", got)
	}
}

func TestRetainAcrossFrames(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	b := mustImage(t, r, 64, 64, "kept")
	if _, err := b.Retain(); !errors.Is(err, ErrNotFinished) {
		t.Errorf("Retain() while recording error = %v, want %v", err, ErrNotFinished)
	}
	fill(t, b, NewRect(0, 0, 16, 16), mustColor(t, r, red))
	finish(t, b)
	img, err := b.Retain()
	if err != nil {
		t.Fatalf("Retain() error = %v", err)
	}
	end(t, r)

	begin(t, r)
	end(t, r)
	if got := img.At(4, 4); got != red {
		t.Errorf("retained At(4, 4) = %v, want %v", got, red)
	}
	if got := img.TileType(1, 1); got != TileEmpty {
		t.Errorf("retained TileType(1, 1) = %v, want %v", got, TileEmpty)
	}
	img.Release()
	img.Release()
	if got := r.atlas.Stats().InUse; got != 0 {
		t.Errorf("atlas slots in use after Release = %d, want 0", got)
	}
}

func TestItemData(t *testing.T) {
	r := newTestRenderer(t, nil)
	if _, err := r.CreateItemData(1); !errors.Is(err, ErrNoFrame) {
		t.Errorf("CreateItemData() without frame error = %v, want %v", err, ErrNoFrame)
	}
	begin(t, r)
	defer end(t, r)

	d, err := r.CreateItemData(0.5, 0.25)
	if err != nil {
		t.Fatalf("CreateItemData() error = %v", err)
	}
	got, err := r.itemValues(d)
	if err != nil || len(got) != 2 || got[0] != 0.5 || got[1] != 0.25 {
		t.Errorf("itemValues() = %v, %v, want [0.5 0.25]", got, err)
	}
	c := mustColor(t, r, color.NRGBA{R: 0xff, A: 0x80})
	got, _ = r.itemValues(c)
	if got[3] < 0.5 || got[3] > 0.51 || got[0] != got[3] {
		t.Errorf("CreateColor() values = %v, want premultiplied half red", got)
	}
	if got, _ := r.itemValues(ItemData{}); got != nil {
		t.Errorf("itemValues(zero) = %v, want nil", got)
	}
}

func TestRegisterShader(t *testing.T) {
	r := newTestRenderer(t, nil)
	src := "fn shade_flat(in: Fragment) -> vec4<f32> { return in.color; }\n"
	id, err := r.RegisterShader("flat", src)
	if err != nil {
		t.Fatalf("RegisterShader() error = %v", err)
	}
	begin(t, r)
	defer end(t, r)
	b := mustImage(t, r, 32, 32, "user shader")
	if err := b.Draw(Draw{Shader: id, Box: NewRect(0, 0, 32, 32)}); err != nil {
		t.Errorf("Draw(user shader) error = %v", err)
	}
	if err := b.Draw(Draw{Shader: id + 100, Box: NewRect(0, 0, 32, 32)}); err == nil {
		t.Error("Draw(unknown shader) succeeded")
	}
}
