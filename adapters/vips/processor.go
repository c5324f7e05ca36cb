//go:build vips

// Package vips provides a libvips-backed decoder.  Slices are still cut and
// encoded in Go; libvips widens the accepted inputs (HEIF, AVIF, animated
// WebP, EXIF-rotated JPEG) and decodes large uploads faster.
package vips

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
	"github.com/Skryldev/image-slicer/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
	// ChunkSize is the read size used while draining the input.
	ChunkSize int
}

// Backend is a libvips-powered Decoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.LoggingSettings(nil, govips.LogLevelWarning)
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// CanDecode accepts every hint; libvips sniffs the buffer itself.
func (b *Backend) CanDecode(core.Format) bool { return true }

// Decode loads the image with libvips, applies its EXIF orientation and
// hands the pixels back as a Go image.
func (b *Backend) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	buf, err := utils.DrainReader(ctx, r, b.cfg.ChunkSize, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	defer ref.Close()

	format := vipsFormatToCore(ref.Format())
	colorSpace := vipsInterpretationToColorSpace(ref.Interpretation())
	hasAlpha := ref.HasAlpha()

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.rotate", err)
	}
	img, err := toImage(ref)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.decode", apperrors.ErrInvalidDimensions)
	}
	return &core.ImageData{
		Data:   raw,
		Format: format,
		Image:  img,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     format,
			ColorSpace: colorSpace,
			HasAlpha:   hasAlpha,
			SizeBytes:  int64(len(raw)),
		},
		OriginalSize: int64(len(raw)),
	}, nil
}

// toImage moves pixels out of libvips through an uncompressed PNG, which
// keeps 16-bit depth and alpha intact.
func toImage(ref *govips.ImageRef) (image.Image, error) {
	ep := govips.NewPngExportParams()
	ep.Compression = 0
	ep.StripMetadata = true
	data, _, err := ref.ExportPng(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	return img, nil
}

// RegisterVipsBackend replaces the pure-Go decoders with libvips for every
// format, including ones sniffing cannot name.
func RegisterVipsBackend(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{
		core.FormatJPEG, core.FormatPNG, core.FormatGIF, core.FormatWebP,
		core.FormatBMP, core.FormatTIFF, core.FormatUnknown,
	} {
		reg.RegisterDecoder(f, b)
	}
}

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeGIF:
		return core.FormatGIF
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeBMP:
		return core.FormatBMP
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	default:
		return core.FormatUnknown
	}
}

func vipsInterpretationToColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationBW, govips.InterpretationGrey16:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	default:
		return core.ColorSpaceRGB
	}
}

var _ core.Decoder = (*Backend)(nil)
