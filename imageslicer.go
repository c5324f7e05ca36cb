// Package imageslicer cuts an image into four full-width slices separated by
// a fixed on-screen gap, so the slices line up when posted as consecutive
// images in a feed, and stamps a small badge on the last one.
package imageslicer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skryldev/image-slicer/adapters/decoder"
	"github.com/Skryldev/image-slicer/adapters/encoder"
	"github.com/Skryldev/image-slicer/config"
	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
	"github.com/Skryldev/image-slicer/geometry"
	"github.com/Skryldev/image-slicer/watermark"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	GIF  = core.FormatGIF
	WebP = core.FormatWebP
	BMP  = core.FormatBMP
	TIFF = core.FormatTIFF
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Slicer is the primary entry point.
type Slicer struct {
	inner      *core.Processor
	reg        *core.DefaultRegistry
	compositor *watermark.Compositor
}

// New creates a fully wired Slicer with the pure-Go decoders, the PNG encoder
// and, unless disabled, the badge compositor.  The libvips backend needs cgo,
// so New only accepts config.BackendStdlib; to decode with libvips build a
// stdlib Slicer and call adapters/vips.RegisterVipsBackend on its registry.
func New(cfg config.Config) (*Slicer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "imageslicer.new", err)
	}
	if cfg.Backend == config.BackendVips {
		return nil, apperrors.New(apperrors.CategoryConfig, "imageslicer.new",
			fmt.Errorf("backend %q is registered with vips.RegisterVipsBackend, not through New", cfg.Backend))
	}

	reg := core.NewRegistry()
	decoder.RegisterAll(reg)
	enc, err := encoder.NewPNG(cfg.Encode.CompressionLevel)
	if err != nil {
		return nil, err
	}
	reg.SetEncoder(enc)

	s := &Slicer{inner: core.New(cfg, reg), reg: reg}
	if cfg.Watermark.Enabled {
		c, err := watermark.NewCompositor(cfg.Watermark.LogoPath, nil)
		if err != nil {
			return nil, err
		}
		s.compositor = c
		s.inner.SetCompositor(c)
	}
	return s, nil
}

// SetLogger attaches a structured logger to the pipeline and the badge.
func (s *Slicer) SetLogger(l core.Logger) {
	s.inner.SetLogger(l)
	if s.compositor != nil && l != nil {
		s.compositor.Logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (s *Slicer) SetMetrics(m core.MetricsCollector) { s.inner.SetMetrics(m) }

// AddHook registers an observer for pipeline stage events.
func (s *Slicer) AddHook(h core.Hook) { s.inner.AddHook(h) }

// RegisterDecoder registers a custom decoder for the given format.
func (s *Slicer) RegisterDecoder(f core.Format, d core.Decoder) { s.reg.RegisterDecoder(f, d) }

// Slice cuts an encoded image held in memory.
func (s *Slicer) Slice(ctx context.Context, data []byte) (*core.SliceResult, error) {
	return s.inner.Slice(ctx, FromReaderWithMeta(bytes.NewReader(data), int64(len(data)), "", ""))
}

// SliceReader cuts an encoded image read from r.
func (s *Slicer) SliceReader(ctx context.Context, r io.Reader) (*core.SliceResult, error) {
	return s.inner.Slice(ctx, FromReader(r))
}

// SliceSource cuts an image described by a Source.
func (s *Slicer) SliceSource(ctx context.Context, src core.Source) (*core.SliceResult, error) {
	return s.inner.Slice(ctx, src)
}

// SliceFile cuts the image stored at path.
func (s *Slicer) SliceFile(ctx context.Context, path string) (*core.SliceResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryInput, "imageslicer.open", err)
	}
	defer f.Close()

	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return s.inner.Slice(ctx, FromReaderWithMeta(f, size, "", filepath.Base(path)))
}

// Stats returns lightweight processing statistics.
func (s *Slicer) Stats() (processed, errors int64) {
	return s.inner.ProcessedCount(), s.inner.ErrorCount()
}

// Geometry returns the slice layout for an image of the given size without
// touching any pixels.
func Geometry(width, height int) (geometry.Layout, error) {
	return geometry.Compute(width, height)
}

// ── Source constructors ────────────────────────────────────────────────────────

// FromReader creates a Source from an io.Reader.
func FromReader(r io.Reader) core.Source { return core.Source{Reader: r, Size: -1} }

// FromReaderWithMeta creates a Source with known size and content-type hints.
func FromReaderWithMeta(r io.Reader, size int64, contentType, name string) core.Source {
	return core.Source{Reader: r, Size: size, ContentType: contentType, Name: name}
}
