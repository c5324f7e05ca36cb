package imageslicer_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	imageslicer "github.com/Skryldev/image-slicer"
	"github.com/Skryldev/image-slicer/config"
	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
	"github.com/Skryldev/image-slicer/hooks"
	"github.com/Skryldev/image-slicer/pipeline"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

// gradient returns an opaque image whose every row is distinguishable.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(y >> 8), A: 255})
		}
	}
	return img
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newRedJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newSlicer(t testing.TB, watermark bool) *imageslicer.Slicer {
	t.Helper()
	cfg := imageslicer.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.Watermark.Enabled = watermark
	s, err := imageslicer.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid png: %v", err)
	}
	return img
}

// sameRows reports whether got equals rows [start, start+got height) of src.
func sameRows(src image.Image, got image.Image, start int) bool {
	gb, sb := got.Bounds(), src.Bounds()
	if gb.Dx() != sb.Dx() {
		return false
	}
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			a := color.NRGBAModel.Convert(got.At(gb.Min.X+x, gb.Min.Y+y))
			b := color.NRGBAModel.Convert(src.At(sb.Min.X+x, sb.Min.Y+start+y))
			if a != b {
				return false
			}
		}
	}
	return true
}

// ── Unit tests ────────────────────────────────────────────────────────────────

func TestSlice_FourSlicesWithGaps(t *testing.T) {
	s := newSlicer(t, false)
	src := gradient(300, 436)

	res, err := s.Slice(context.Background(), encodePNG(t, src))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}

	// 300px wide is narrower than the assumed display, so the gap is 12 rows.
	wantStarts := []int{0, 112, 224, 336}
	for i, sl := range res.Slices {
		if sl.Index != i {
			t.Errorf("slice %d: index %d", i, sl.Index)
		}
		if sl.Boundary.StartRow != wantStarts[i] || sl.Boundary.EndRow != wantStarts[i]+100 {
			t.Errorf("slice %d: rows [%d,%d), want [%d,%d)", i,
				sl.Boundary.StartRow, sl.Boundary.EndRow, wantStarts[i], wantStarts[i]+100)
		}
		out := decodePNG(t, sl.Data)
		if out.Bounds().Dx() != 300 || out.Bounds().Dy() != 100 {
			t.Errorf("slice %d: got %v", i, out.Bounds())
		}
		if !sameRows(src, out, sl.Boundary.StartRow) {
			t.Errorf("slice %d: pixels differ from source rows", i)
		}
	}
	if res.GapSourcePx != 12 || res.DisplayScale != 1 {
		t.Errorf("gap %v scale %v, want 12 and 1", res.GapSourcePx, res.DisplayScale)
	}
	if res.Watermarked {
		t.Error("watermark drawn although disabled")
	}
}

func TestSlice_Names(t *testing.T) {
	s := newSlicer(t, false)
	res, err := s.Slice(context.Background(), encodePNG(t, gradient(40, 80)))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	want := []string{
		"tap-the-post-segment-1.png",
		"tap-the-post-segment-2.png",
		"tap-the-post-segment-3.png",
		"tap-the-post-segment-4.png",
	}
	for i, name := range res.Names() {
		if name != want[i] {
			t.Errorf("name %d = %q, want %q", i, name, want[i])
		}
	}
	if len(res.Bytes()) != 4 {
		t.Errorf("Bytes: got %d entries", len(res.Bytes()))
	}
}

func TestSlice_WatermarkOnlyOnLastSlice(t *testing.T) {
	s := newSlicer(t, true)
	src := gradient(300, 436)

	res, err := s.Slice(context.Background(), encodePNG(t, src))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if !res.Watermarked || !res.LogoUsed {
		t.Fatalf("watermarked=%v logo=%v, want both", res.Watermarked, res.LogoUsed)
	}
	for i, sl := range res.Slices {
		untouched := sameRows(src, decodePNG(t, sl.Data), sl.Boundary.StartRow)
		if i < 3 && !untouched {
			t.Errorf("slice %d was modified", i)
		}
		if i == 3 && untouched {
			t.Error("last slice carries no badge")
		}
	}
}

func TestSlice_TextOnlyBadge(t *testing.T) {
	cfg := imageslicer.DefaultConfig()
	cfg.Watermark.LogoPath = config.NoLogo
	s, err := imageslicer.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Slice(context.Background(), encodePNG(t, gradient(300, 436)))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if !res.Watermarked || res.LogoUsed {
		t.Errorf("watermarked=%v logo=%v, want text-only badge", res.Watermarked, res.LogoUsed)
	}
}

func TestSlice_Deterministic(t *testing.T) {
	s := newSlicer(t, true)
	raw := encodePNG(t, gradient(500, 900))

	a, err := s.Slice(context.Background(), raw)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	b, err := s.Slice(context.Background(), raw)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	for i := range a.Slices {
		if !bytes.Equal(a.Slices[i].Data, b.Slices[i].Data) {
			t.Errorf("slice %d differs between runs", i)
		}
	}
}

func TestSlice_TinyImage(t *testing.T) {
	s := newSlicer(t, true)
	res, err := s.Slice(context.Background(), encodePNG(t, gradient(3, 3)))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	for i, sl := range res.Slices {
		if !sl.Boundary.Fallback {
			t.Errorf("slice %d: expected quartile fallback", i)
		}
		if out := decodePNG(t, sl.Data); out.Bounds().Dy() < 1 {
			t.Errorf("slice %d: empty output", i)
		}
	}
}

func TestSlice_JPEGInput(t *testing.T) {
	s := newSlicer(t, true)
	res, err := s.SliceReader(context.Background(), bytes.NewReader(newRedJPEG(t, 1080, 1350)))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	for i, sl := range res.Slices {
		if sl.Width != 1080 {
			t.Errorf("slice %d: width %d", i, sl.Width)
		}
		if sl.Height != sl.Boundary.Height() {
			t.Errorf("slice %d: height %d, boundary %d", i, sl.Height, sl.Boundary.Height())
		}
	}
}

func TestSliceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, encodePNG(t, gradient(64, 128)), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newSlicer(t, false)
	if _, err := s.SliceFile(context.Background(), path); err != nil {
		t.Fatalf("SliceFile: %v", err)
	}

	_, err := s.SliceFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if !apperrors.IsCategory(err, apperrors.CategoryInput) {
		t.Errorf("missing file: got %v, want input error", err)
	}
}

// ── Error handling ────────────────────────────────────────────────────────────

func TestSlice_Errors(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		category apperrors.Category
		sentinel error
	}{
		{"empty", nil, apperrors.CategoryInput, apperrors.ErrEmptyInput},
		{"not an image", []byte("just some text, nothing to see"), apperrors.CategoryDecode, apperrors.ErrUnsupportedFormat},
		{"corrupt png", append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xAB}, 64)...), apperrors.CategoryDecode, nil},
	}
	s := newSlicer(t, true)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Slice(context.Background(), tc.data)
			if !apperrors.IsCategory(err, tc.category) {
				t.Fatalf("got %v, want %s error", err, tc.category)
			}
			if tc.sentinel != nil && !errors.Is(err, tc.sentinel) {
				t.Errorf("got %v, want %v", err, tc.sentinel)
			}
		})
	}
}

func TestSlice_TooLarge(t *testing.T) {
	cfg := imageslicer.DefaultConfig()
	cfg.MaxImageBytes = 128
	s, err := imageslicer.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Slice(context.Background(), encodePNG(t, gradient(100, 100)))
	if !errors.Is(err, apperrors.ErrImageTooLarge) {
		t.Fatalf("got %v, want ErrImageTooLarge", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryInput) {
		t.Errorf("got %v, want input category", err)
	}
}

func TestSlice_ContextCancel(t *testing.T) {
	s := newSlicer(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := s.Slice(ctx, encodePNG(t, gradient(50, 50)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation error, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := imageslicer.DefaultConfig()
	cfg.Encode.CompressionLevel = "lossy"
	if _, err := imageslicer.New(cfg); !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Errorf("got %v, want config error", err)
	}
}

func TestNew_RejectsVipsBackend(t *testing.T) {
	cfg := imageslicer.DefaultConfig()
	cfg.Backend = config.BackendVips
	s, err := imageslicer.New(cfg)
	if s != nil || !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Fatalf("got %v, %v; want config error", s, err)
	}
	if !strings.Contains(err.Error(), "RegisterVipsBackend") {
		t.Errorf("error %q does not point at RegisterVipsBackend", err)
	}
}

func TestGeometry(t *testing.T) {
	l, err := imageslicer.Geometry(1200, 1204)
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if l.Boundaries[3].EndRow != 1204 || l.Boundaries[0].StartRow != 0 {
		t.Errorf("unexpected layout %+v", l.Boundaries)
	}
	if _, err := imageslicer.Geometry(0, 10); !apperrors.IsCategory(err, apperrors.CategoryGeometry) {
		t.Errorf("got %v, want geometry error", err)
	}
}

// ── Concurrency ───────────────────────────────────────────────────────────────

func TestSlice_ConcurrentSafety(t *testing.T) {
	s := newSlicer(t, true)
	raw := encodePNG(t, gradient(400, 700))

	const goroutines = 12
	var wg sync.WaitGroup
	results := make([]*core.SliceResult, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = s.Slice(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
		for j := range results[i].Slices {
			if !bytes.Equal(results[i].Slices[j].Data, results[0].Slices[j].Data) {
				t.Errorf("goroutine %d slice %d differs", i, j)
			}
		}
	}
	if processed, failed := s.Stats(); processed != goroutines || failed != 0 {
		t.Errorf("stats: processed=%d failed=%d", processed, failed)
	}
}

// ── Hooks / Metrics ───────────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	s := newSlicer(t, true)
	s.SetMetrics(m)

	raw := encodePNG(t, gradient(120, 240))
	if _, err := s.Slice(context.Background(), raw); err != nil {
		t.Fatalf("Slice: %v", err)
	}

	snap := m.Snapshot()
	for _, step := range []string{
		pipeline.StepDecode, pipeline.StepGeometry, pipeline.StepRender,
		pipeline.StepWatermark, pipeline.StepEncode,
	} {
		if snap.StepCalls[step] != 1 {
			t.Errorf("step %s recorded %d times, want 1", step, snap.StepCalls[step])
		}
	}
	if snap.TotalThroughputB != int64(len(raw)) {
		t.Errorf("throughput %d, want %d", snap.TotalThroughputB, len(raw))
	}
}

func TestMetricsHook(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	s := newSlicer(t, false)
	s.AddHook(hooks.NewMetricsHook(m))

	if _, err := s.Slice(context.Background(), []byte("garbage input")); err == nil {
		t.Fatal("expected an error")
	}
	snap := m.Snapshot()
	if snap.StepErrors[pipeline.StepDecode] != 1 || snap.ErrorCategories["decode"] != 1 {
		t.Errorf("decode failure not recorded: %+v", snap)
	}
	if _, ok := snap.StepCalls[pipeline.StepWatermark]; ok {
		t.Error("watermark stage ran although disabled")
	}
}

// ── Benchmarks ────────────────────────────────────────────────────────────────

func BenchmarkSlice_PNG_1080x1350(b *testing.B) {
	s := newSlicer(b, true)
	raw := encodePNG(b, gradient(1080, 1350))

	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Slice(context.Background(), raw); err != nil {
			b.Fatalf("Slice: %v", err)
		}
	}
}

func BenchmarkSlice_JPEG_4000x5000(b *testing.B) {
	s := newSlicer(b, true)
	raw := newRedJPEG(b, 4000, 5000)

	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Slice(context.Background(), raw); err != nil {
			b.Fatalf("Slice: %v", err)
		}
	}
}

func BenchmarkGeometry(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := imageslicer.Geometry(1179, 2556); err != nil {
			b.Fatal(err)
		}
	}
}
