package render

import (
	"errors"
	"image"
	"testing"
)

// maskBuffer records a finished 256x256 mask with one opaque red box.
func maskBuffer(t *testing.T, r *Renderer, box Rect) Buffer {
	t.Helper()
	m := mustImage(t, r, 256, 256, "mask")
	fill(t, m, box, mustColor(t, r, red))
	finish(t, m)
	return m
}

func TestCombineClipFullOld(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)

	old := r.NullClipElement(false)
	defer old.Release()
	m := maskBuffer(t, r, NewRect(69, 101, 10, 10))
	res, err := r.CombineClip(old, m)
	if err != nil {
		t.Fatalf("CombineClip() error = %v", err)
	}
	defer res.Release()

	if got := res.Grid(); got != image.Pt(8, 8) {
		t.Errorf("Grid() = %v, want (8,8)", got)
	}
	tests := []struct {
		tx, ty int
		want   TileProperties
	}{
		{2, 3, TileProperties{ClipIn: TilePartial, ClipOut: TilePartial, Classification: ClassMixed}},
		{0, 0, TileProperties{ClipIn: TileEmpty, ClipOut: TileFull, Classification: ClassFullClipOut}},
		{7, 7, TileProperties{ClipIn: TileEmpty, ClipOut: TileFull, Classification: ClassFullClipOut}},
		{9, 9, TileProperties{Classification: ClassEmpty}},
	}
	for _, tt := range tests {
		if got := res.TileProperties(tt.tx, tt.ty); got != tt.want {
			t.Errorf("TileProperties(%d, %d) = %+v, want %+v", tt.tx, tt.ty, got, tt.want)
		}
	}
	if got := res.Count(ClassMixed); got != 1 {
		t.Errorf("Count(mixed) = %d, want 1", got)
	}
	if got := res.Count(ClassFullClipOut); got != 63 {
		t.Errorf("Count(full_clip_out) = %d, want 63", got)
	}
	if got := res.ClipInRange(); got != image.Rect(2, 3, 3, 4) {
		t.Errorf("ClipInRange() = %v, want (2,3)-(3,4)", got)
	}

	in, out := res.ClipIn(), res.ClipOut()
	if in.IsNull() || out.IsNull() {
		t.Fatalf("IsNull() = %v, %v, want false, false", in.IsNull(), out.IsNull())
	}
	if got := in.TileType(2, 3); got != TilePartial {
		t.Errorf("ClipIn().TileType(2, 3) = %v, want %v", got, TilePartial)
	}
	if got := in.TileType(0, 0); got != TileEmpty {
		t.Errorf("ClipIn().TileType(0, 0) = %v, want %v", got, TileEmpty)
	}
	if got := out.TileType(0, 0); got != TileFull {
		t.Errorf("ClipOut().TileType(0, 0) = %v, want %v", got, TileFull)
	}
	if in.Channel(MaskCoverage) != ChannelA || in.Channel(MaskDistance) != ChannelNone {
		t.Errorf("Channel() = %v, %v, want a, none", in.Channel(MaskCoverage), in.Channel(MaskDistance))
	}

	dst := mustImage(t, r, 256, 256, "composite")
	if err := res.Composite(dst, mustColor(t, r, green)); err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	s := end(t, r)

	if s.Waves != 3 {
		t.Errorf("Waves = %d, want 3", s.Waves)
	}
	pixels := []struct {
		x, y int
		want any
	}{
		{75, 105, green},
		{66, 99, black},
		{10, 10, black},
		{200, 200, black},
	}
	for _, tt := range pixels {
		if got := pixel(t, dst, tt.x, tt.y); got != tt.want {
			t.Errorf("composite pixel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCombineClipEmptyOld(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	defer end(t, r)

	old := r.NullClipElement(true)
	defer old.Release()
	res, err := r.CombineClip(old, maskBuffer(t, r, NewRect(0, 0, 40, 40)))
	if err != nil {
		t.Fatalf("CombineClip() error = %v", err)
	}
	defer res.Release()

	for _, cls := range []Classification{ClassFullClipIn, ClassFullClipOut, ClassPartialClipIn, ClassPartialClipOut, ClassMixed} {
		if got := res.Count(cls); got != 0 {
			t.Errorf("Count(%v) = %d, want 0", cls, got)
		}
	}
	if got := res.ClipIn().TileType(0, 0); got != TileEmpty {
		t.Errorf("ClipIn().TileType(0, 0) = %v, want %v", got, TileEmpty)
	}
}

func TestCombineClipNested(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)

	first, err := r.CreateClipElement(maskBuffer(t, r, NewRect(0, 0, 100, 100)), MaskCoverage, ChannelA)
	if err != nil {
		t.Fatalf("CreateClipElement() error = %v", err)
	}
	defer first.Release()
	res, err := r.CombineClip(first, maskBuffer(t, r, NewRect(50, 50, 100, 100)))
	if err != nil {
		t.Fatalf("CombineClip() error = %v", err)
	}
	defer res.Release()

	tests := []struct {
		tx, ty int
		want   Classification
	}{
		// Both masks cover this tile partially.
		{2, 2, ClassMixed},
		// Only the old clip reaches here.
		{0, 0, ClassPartialClipOut},
		// Only the fill reaches here, outside the old clip.
		{4, 4, ClassEmpty},
		{7, 0, ClassEmpty},
	}
	for _, tt := range tests {
		if got := res.TileProperties(tt.tx, tt.ty).Classification; got != tt.want {
			t.Errorf("classification(%d, %d) = %v, want %v", tt.tx, tt.ty, got, tt.want)
		}
	}

	dst := mustImage(t, r, 256, 256, "composite")
	if err := res.Composite(dst, mustColor(t, r, green)); err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	end(t, r)

	pixels := []struct {
		x, y int
		want any
	}{
		{75, 75, green},
		{10, 10, black},
		{10, 75, black},
	}
	for _, tt := range pixels {
		if got := pixel(t, dst, tt.x, tt.y); got != tt.want {
			t.Errorf("composite pixel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if got := pixel(t, dst, 120, 120); got.A != 0 {
		t.Errorf("composite pixel(120, 120) = %v, want transparent", got)
	}
}

func TestCombineClipDegenerateFill(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	defer end(t, r)

	old := r.NullClipElement(false)
	fillBuf, err := r.CreateImage(rectGroup(0, 0, 0, 0))
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	finish(t, fillBuf)
	res, err := r.CombineClip(old, fillBuf)
	if err != nil {
		t.Fatalf("CombineClip() error = %v", err)
	}
	old.Release()

	in, out := res.ClipIn(), res.ClipOut()
	if !in.IsNull() || in.TileType(0, 0) != TileEmpty {
		t.Errorf("ClipIn() = null %v, type %v, want null empty", in.IsNull(), in.TileType(0, 0))
	}
	if !out.Valid() || out.TileType(3, 3) != TileFull {
		t.Errorf("ClipOut() = valid %v, type %v, want the old clip", out.Valid(), out.TileType(3, 3))
	}
	res.Release()
	if out.Valid() {
		t.Error("old clip still valid after its last reference was released")
	}
}

func TestCombineClipErrors(t *testing.T) {
	r := newTestRenderer(t, nil)
	old := r.NullClipElement(false)
	defer old.Release()
	if _, err := r.CombineClip(old, Buffer{}); !errors.Is(err, ErrNoFrame) {
		t.Errorf("CombineClip() without frame error = %v, want %v", err, ErrNoFrame)
	}

	begin(t, r)
	defer end(t, r)
	open := mustImage(t, r, 32, 32, "open")
	if _, err := r.CombineClip(old, open); !errors.Is(err, ErrUnfinishedDependency) {
		t.Errorf("CombineClip(unfinished) error = %v, want %v", err, ErrUnfinishedDependency)
	}
	if _, err := r.CreateClipElement(open, MaskCoverage, ChannelA); !errors.Is(err, ErrUnfinishedDependency) {
		t.Errorf("CreateClipElement(unfinished) error = %v, want %v", err, ErrUnfinishedDependency)
	}
	finish(t, open)
	if _, err := r.CreateClipElement(open, maskTypeCount, ChannelA); err == nil {
		t.Error("CreateClipElement(invalid mask type) succeeded")
	}
	if _, err := r.CombineClip(ClipElement{}, open); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("CombineClip(zero element) error = %v, want %v", err, ErrStaleHandle)
	}
}

func TestClipElementInverse(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)
	defer end(t, r)

	reject := r.NullClipElement(true)
	inv, err := reject.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error = %v", err)
	}
	if !inv.IsNull() || inv.Inverted() || inv.TileType(0, 0) != TileFull {
		t.Errorf("Inverse(null) = null %v, inverted %v, type %v", inv.IsNull(), inv.Inverted(), inv.TileType(0, 0))
	}

	m := mustImage(t, r, 64, 64, "mask")
	fill(t, m, NewRect(5, 5, 10, 10), mustColor(t, r, red))
	finish(t, m)
	e, err := r.CreateClipElement(m, MaskDistance, ChannelR)
	if err != nil {
		t.Fatalf("CreateClipElement() error = %v", err)
	}
	ie, err := e.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error = %v", err)
	}
	if !ie.Inverted() || e.Inverted() {
		t.Errorf("Inverted() = %v, %v, want true, false", ie.Inverted(), e.Inverted())
	}
	if ie.Preferred() != MaskDistance || ie.Channel(MaskDistance) != ChannelR {
		t.Errorf("Preferred(), Channel() = %v, %v, want distance, r", ie.Preferred(), ie.Channel(MaskDistance))
	}
	tests := []struct {
		tx, ty     int
		elem, want TileType
	}{
		{0, 0, TilePartial, TilePartial},
		{1, 1, TileEmpty, TileFull},
		{5, 5, TileEmpty, TileFull},
	}
	for _, tt := range tests {
		if got := e.TileType(tt.tx, tt.ty); got != tt.elem {
			t.Errorf("TileType(%d, %d) = %v, want %v", tt.tx, tt.ty, got, tt.elem)
		}
		if got := ie.TileType(tt.tx, tt.ty); got != tt.want {
			t.Errorf("inverse TileType(%d, %d) = %v, want %v", tt.tx, tt.ty, got, tt.want)
		}
	}

	for _, c := range []ClipElement{reject, inv, e, ie} {
		c.Release()
	}
	if e.Valid() || ie.Valid() {
		t.Error("elements still valid after Release")
	}
}

func TestClipElementRefcount(t *testing.T) {
	r := newTestRenderer(t, nil)
	begin(t, r)

	m := maskBuffer(t, r, NewRect(0, 0, 16, 16))
	e, err := r.CreateClipElement(m, MaskCoverage, ChannelA)
	if err != nil {
		t.Fatalf("CreateClipElement() error = %v", err)
	}
	if err := e.Retain(); err != nil {
		t.Fatalf("Retain() error = %v", err)
	}
	end(t, r)

	begin(t, r)
	e.Release()
	if !e.Valid() || e.TileType(0, 0) != TilePartial {
		t.Errorf("element after one Release: valid %v, type %v", e.Valid(), e.TileType(0, 0))
	}
	res, err := r.CombineClip(e, maskBuffer(t, r, NewRect(0, 0, 256, 8)))
	if err != nil {
		t.Fatalf("CombineClip() across frames error = %v", err)
	}
	if got := res.TileProperties(0, 0).Classification; got != ClassMixed {
		t.Errorf("classification(0, 0) = %v, want %v", got, ClassMixed)
	}
	if got := res.TileProperties(3, 0).Classification; got != ClassEmpty {
		t.Errorf("classification(3, 0) = %v, want %v", got, ClassEmpty)
	}

	in := res.ClipIn()
	if err := in.Retain(); err != nil {
		t.Fatalf("ClipIn().Retain() error = %v", err)
	}
	res.Release()
	if res.Valid() || !in.Valid() {
		t.Errorf("after result Release: result valid %v, clip-in valid %v", res.Valid(), in.Valid())
	}
	if err := res.Retain(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Retain() on released result error = %v, want %v", err, ErrStaleHandle)
	}
	in.Release()
	e.Release()
	end(t, r)

	if e.Valid() || in.Valid() {
		t.Error("elements still valid after their last Release")
	}
	begin(t, r)
	end(t, r)
	if got := r.atlas.Stats().InUse; got != 0 {
		t.Errorf("atlas slots in use = %d, want 0", got)
	}
}
