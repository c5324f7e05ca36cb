package pipeline_test

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/Skryldev/image-slicer/geometry"
	"github.com/Skryldev/image-slicer/pipeline"
)

// gradient returns an opaque image whose every pixel is unique enough to
// catch an off-by-one row.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func samePixels(t *testing.T, got image.Image, src image.Image, srcOffsetY int) {
	t.Helper()
	gb, sb := got.Bounds(), src.Bounds()
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			g := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			s := color.NRGBAModel.Convert(src.At(sb.Min.X+x, sb.Min.Y+srcOffsetY+y))
			if g != s {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, g, s)
			}
		}
	}
}

func TestRenderSlice_CopiesBand(t *testing.T) {
	src := gradient(40, 100)
	b := geometry.Boundary{StartRow: 37, EndRow: 61}

	got, err := pipeline.RenderSlice(src, b)
	if err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}
	if got.Bounds() != image.Rect(0, 0, 40, 24) {
		t.Fatalf("bounds: got %v, want 40x24 at origin", got.Bounds())
	}
	samePixels(t, got, src, 37)
}

func TestRenderSlice_SubImageSource(t *testing.T) {
	full := gradient(60, 60)
	src := full.SubImage(image.Rect(10, 20, 50, 60))

	got, err := pipeline.RenderSlice(src, geometry.Boundary{StartRow: 5, EndRow: 15})
	if err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}
	if got.Bounds().Dx() != 40 || got.Bounds().Dy() != 10 {
		t.Fatalf("size: got %v", got.Bounds())
	}
	samePixels(t, got, src, 5)
}

func TestRenderSlice_DoesNotAliasSource(t *testing.T) {
	src := gradient(8, 8)
	got, err := pipeline.RenderSlice(src, geometry.Boundary{StartRow: 0, EndRow: 4})
	if err != nil {
		t.Fatal(err)
	}
	got.SetNRGBA(1, 1, color.NRGBA{R: 9, A: 255})
	if src.NRGBAAt(1, 1).R != 1 {
		t.Error("writing to the slice modified the source")
	}
}

func TestRenderSlice_Invalid(t *testing.T) {
	src := gradient(10, 10)
	tests := []geometry.Boundary{
		{StartRow: -1, EndRow: 3},
		{StartRow: 5, EndRow: 11},
		{StartRow: 4, EndRow: 4},
	}
	for _, b := range tests {
		if _, err := pipeline.RenderSlice(src, b); err == nil {
			t.Errorf("RenderSlice(%+v): expected error", b)
		}
	}
	if _, err := pipeline.RenderSlice(nil, geometry.Boundary{EndRow: 1}); err == nil {
		t.Error("RenderSlice(nil): expected error")
	}
}

func TestRenderAll_KeepsOrder(t *testing.T) {
	src := gradient(30, 200)
	l, err := geometry.Compute(30, 200)
	if err != nil {
		t.Fatal(err)
	}

	out, err := pipeline.RenderAll(context.Background(), src, l.Boundaries[:], 2)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if len(out) != geometry.SliceCount {
		t.Fatalf("got %d slices", len(out))
	}
	for i, img := range out {
		b := l.Boundaries[i]
		if img.Bounds().Dy() != b.Height() {
			t.Errorf("slice %d: height %d, want %d", i, img.Bounds().Dy(), b.Height())
		}
		samePixels(t, img, src, b.StartRow)
	}
}

func TestRenderAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bounds := []geometry.Boundary{{StartRow: 0, EndRow: 1}}
	if _, err := pipeline.RenderAll(ctx, gradient(4, 4), bounds, 1); err == nil {
		t.Error("expected cancellation error")
	}
}
