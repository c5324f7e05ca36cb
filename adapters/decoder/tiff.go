package decoder

import (
	"context"
	"io"

	"golang.org/x/image/tiff"

	"github.com/Skryldev/image-slicer/core"
)

// TIFF decodes the first page of a TIFF using golang.org/x/image/tiff.
type TIFF struct{}

func NewTIFF() *TIFF { return &TIFF{} }

func (t *TIFF) CanDecode(format core.Format) bool {
	return format == core.FormatTIFF
}

func (t *TIFF) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeWith(ctx, r, core.FormatTIFF, tiff.Decode)
}
