// Package encoder provides the lossless output encoder.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
)

// PNG encodes images to PNG format.  Every compression level is lossless.
type PNG struct {
	enc *png.Encoder
}

// NewPNG returns a PNG encoder for one of "default", "none", "best-speed"
// or "best-compression".  An empty level means "default".
func NewPNG(level string) (*PNG, error) {
	cl, err := compressionLevel(level)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "png.encoder", err)
	}
	return &PNG{enc: &png.Encoder{
		CompressionLevel: cl,
		BufferPool:       &bufferPool{},
	}}, nil
}

func (p *PNG) Format() core.Format { return core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "png.encode", apperrors.ErrEmptyInput)
	}

	var buf bytes.Buffer
	if err := p.enc.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	return buf.Bytes(), nil
}

func compressionLevel(level string) (png.CompressionLevel, error) {
	switch level {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "best-speed":
		return png.BestSpeed, nil
	case "best-compression":
		return png.BestCompression, nil
	}
	return 0, fmt.Errorf("unknown compression level %q", level)
}

// bufferPool lets concurrent slice encodes share zlib state.
type bufferPool struct {
	pool sync.Pool
}

func (b *bufferPool) Get() *png.EncoderBuffer {
	v, _ := b.pool.Get().(*png.EncoderBuffer)
	return v
}

func (b *bufferPool) Put(e *png.EncoderBuffer) { b.pool.Put(e) }

var _ core.Encoder = (*PNG)(nil)
