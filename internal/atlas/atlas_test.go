package atlas

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vbuf/internal/tile"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// rendered returns a fully backed image holding a copy of src.
func rendered(t *testing.T, a *TileAtlas, src *image.RGBA) *Image {
	t.Helper()
	img, err := a.CreateImage(src.Bounds().Size(), nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	a.CopyPixels(img, src.Bounds(), src, image.Point{})
	return img
}

func TestNew_Defaults(t *testing.T) {
	a := New(Config{})
	if a.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", a.Format())
	}
	if a.Available() != -1 {
		t.Errorf("Available() = %d, want -1 for unlimited", a.Available())
	}
	if a.BytesPerTile() != tile.Size*tile.Size*4 {
		t.Errorf("BytesPerTile() = %d", a.BytesPerTile())
	}
}

func TestCreateImage_TileKinds(t *testing.T) {
	a := New(Config{})
	img, err := a.CreateImage(image.Pt(100, 40),
		[]image.Point{{0, 0}},
		[]image.Point{{1, 0}},
		nil)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if img.Grid() != image.Pt(4, 2) {
		t.Fatalf("Grid() = %v, want (4,2)", img.Grid())
	}

	tests := []struct {
		tx, ty int
		want   TileKind
		typ    tile.Type
	}{
		{0, 0, TileEmpty, tile.Empty},
		{1, 0, TileFull, tile.Full},
		{2, 0, TileBacked, tile.Partial},
		{3, 1, TileBacked, tile.Partial},
		{9, 9, TileEmpty, tile.Empty},
	}
	for _, tt := range tests {
		if got := img.TileKind(tt.tx, tt.ty); got != tt.want {
			t.Errorf("TileKind(%d, %d) = %v, want %v", tt.tx, tt.ty, got, tt.want)
		}
		if got := img.TileType(tt.tx, tt.ty); got != tt.typ {
			t.Errorf("TileType(%d, %d) = %v, want %v", tt.tx, tt.ty, got, tt.typ)
		}
	}
	if n := img.CountTiles(TileBacked); n != 6 {
		t.Errorf("CountTiles(backed) = %d, want 6", n)
	}
	if s := a.Stats(); s.InUse != 6 || s.Images != 1 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestCreateImage_Errors(t *testing.T) {
	a := New(Config{})
	if _, err := a.CreateImage(image.Pt(0, 10), nil, nil, nil); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero width error = %v, want ErrInvalidSize", err)
	}
	if _, err := a.CreateImage(image.Pt(32, 32), []image.Point{{1, 0}}, nil, nil); !errors.Is(err, ErrTileOutOfRange) {
		t.Errorf("out of range error = %v, want ErrTileOutOfRange", err)
	}
}

func TestCreateImage_Budget(t *testing.T) {
	a := New(Config{TileBudget: 4})

	first, err := a.CreateImage(image.Pt(64, 64), nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if a.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", a.Available())
	}

	// Storage-less tiles do not count against the budget.
	if _, err := a.CreateImage(image.Pt(64, 32), []image.Point{{0, 0}}, []image.Point{{1, 0}}, nil); err != nil {
		t.Errorf("CreateImage(no storage) error = %v", err)
	}

	_, err = a.CreateImage(image.Pt(32, 32), nil, nil, nil)
	if !errors.Is(err, ErrAtlasFull) {
		t.Fatalf("CreateImage() over budget error = %v, want ErrAtlasFull", err)
	}
	if a.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", a.Stats().Failures)
	}

	a.Release(first)
	if a.Available() != 4 {
		t.Errorf("Available() after Release = %d, want 4", a.Available())
	}
	if _, err := a.CreateImage(image.Pt(32, 32), nil, nil, nil); err != nil {
		t.Errorf("CreateImage() after Release error = %v", err)
	}
}

func TestCopyPixels_OnlyBackedTiles(t *testing.T) {
	a := New(Config{})
	img, err := a.CreateImage(image.Pt(64, 32), []image.Point{{1, 0}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	red := color.RGBA{R: 0xff, A: 0xff}
	n := a.CopyPixels(img, image.Rect(0, 0, 64, 32), solid(64, 32, red), image.Point{})
	if n != 1 {
		t.Errorf("CopyPixels() wrote %d tiles, want 1", n)
	}
	if got := a.At(img, 5, 5); got != red {
		t.Errorf("At(5,5) = %v, want %v", got, red)
	}
	if got := a.At(img, 40, 5); got != (color.RGBA{}) {
		t.Errorf("At(40,5) = %v, want transparent", got)
	}
}

func TestCopyPixels_SubRectAndSourceOffset(t *testing.T) {
	a := New(Config{})
	img, err := a.CreateImage(image.Pt(64, 64), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	blue := color.RGBA{B: 0xff, A: 0xff}
	src.SetRGBA(50, 60, blue)

	// Destination pixel (30, 40) reads source pixel (50, 60).
	n := a.CopyPixels(img, image.Rect(20, 20, 44, 44), src, image.Pt(40, 40))
	if n != 4 {
		t.Errorf("CopyPixels() wrote %d tiles, want 4", n)
	}
	if got := a.At(img, 30, 40); got != blue {
		t.Errorf("At(30,40) = %v, want %v", got, blue)
	}
	if got := a.At(img, 31, 40); got == blue {
		t.Error("neighbouring pixel picked up the source color")
	}
}

func TestSharedTiles(t *testing.T) {
	a := New(Config{TileBudget: 8})
	green := color.RGBA{G: 0xff, A: 0xff}
	src := rendered(t, a, solid(64, 32, green))
	full, err := a.CreateImage(image.Pt(32, 32), nil, []image.Point{{0, 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	dst, err := a.CreateImage(image.Pt(96, 32), nil, nil, []SharedTile{
		{Tile: image.Pt(0, 0), Source: src, SourceTile: image.Pt(1, 0)},
		{Tile: image.Pt(1, 0), Source: full, SourceTile: image.Pt(0, 0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if dst.TileKind(0, 0) != TileShared || dst.TileKind(1, 0) != TileFull || dst.TileKind(2, 0) != TileBacked {
		t.Fatalf("tile kinds = %v %v %v", dst.TileKind(0, 0), dst.TileKind(1, 0), dst.TileKind(2, 0))
	}
	if a.Stats().InUse != 3 {
		t.Errorf("InUse = %d, want 3", a.Stats().InUse)
	}

	a.Release(src)
	if got := a.At(dst, 3, 3); got != green {
		t.Errorf("shared tile after source release = %v, want %v", got, green)
	}
	if a.Stats().InUse != 2 {
		t.Errorf("InUse = %d, want 2", a.Stats().InUse)
	}

	a.Release(dst)
	a.Release(dst)
	if a.Stats().InUse != 0 || a.Stats().Images != 1 {
		t.Errorf("Stats() after release = %v", a.Stats())
	}

	if _, err := a.CreateImage(image.Pt(32, 32), nil, nil, []SharedTile{{Source: dst}}); !errors.Is(err, ErrReleased) {
		t.Errorf("sharing a released image error = %v, want ErrReleased", err)
	}
}

func TestReusedSlotsAreCleared(t *testing.T) {
	a := New(Config{TileBudget: 1})
	img := rendered(t, a, solid(32, 32, color.RGBA{R: 1, A: 0xff}))
	a.Release(img)
	img, err := a.CreateImage(image.Pt(32, 32), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.At(img, 0, 0); got != (color.RGBA{}) {
		t.Errorf("reused slot = %v, want transparent", got)
	}
}

func TestView(t *testing.T) {
	a := New(Config{})
	blue := color.RGBA{B: 0xff, A: 0xff}
	img, err := a.CreateImage(image.Pt(40, 10), nil, []image.Point{{1, 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.CopyPixels(img, image.Rect(0, 0, 40, 10), solid(40, 10, blue), image.Point{})

	v := a.View(img)
	if v.Bounds() != image.Rect(0, 0, 40, 10) {
		t.Errorf("Bounds() = %v", v.Bounds())
	}
	if got := v.At(2, 2); got != blue {
		t.Errorf("At(2,2) = %v, want %v", got, blue)
	}
	if got := v.At(35, 2); got != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("At(35,2) = %v, want opaque white for a full tile", got)
	}
}
