package core

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/Skryldev/image-slicer/geometry"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatUnknown Format = "unknown"
)

// SliceCount is the fixed number of output slices.
const SliceCount = geometry.SliceCount

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Metadata holds image information gathered while decoding.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	SizeBytes  int64
}

// ImageData is the in-memory representation handed between pipeline stages.
// Data holds encoded bytes; Image holds the decoded pixel buffer.
type ImageData struct {
	// Encoded bytes: raw input before decode, PNG output after encode.
	Data   []byte
	Format Format

	// Decoded pixel buffer.  Treated as read-only once decoded.
	Image image.Image

	Meta Metadata

	// Size of the original raw input.
	OriginalSize int64
}

// SliceBoundary is a half-open row range in source pixels.
type SliceBoundary = geometry.Boundary

// Slice is one encoded output image.
type Slice struct {
	Index    int // 0 = topmost
	Boundary SliceBoundary
	Width    int
	Height   int
	Data     []byte // PNG bytes
}

// SliceNamePattern is the download name of each slice; %d is 1-based.
const SliceNamePattern = "tap-the-post-segment-%d.png"

// Name returns the download file name of the slice.
func (s Slice) Name() string { return fmt.Sprintf(SliceNamePattern, s.Index+1) }

// SliceResult is returned to the caller after the full pipeline completes.
type SliceResult struct {
	Slices [SliceCount]Slice

	// DisplayScale and GapSourcePx describe the geometry used.
	DisplayScale float64
	GapSourcePx  float64

	// Watermarked is false when the badge was disabled or did not fit.
	Watermarked bool
	// LogoUsed is false when the badge degraded to text only.
	LogoUsed bool

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// Bytes returns the four encoded images in top-to-bottom order.
func (r *SliceResult) Bytes() [][]byte {
	out := make([][]byte, 0, SliceCount)
	for _, s := range r.Slices {
		out = append(out, s.Data)
	}
	return out
}

// Names returns the download names in top-to-bottom order.
func (r *SliceResult) Names() []string {
	out := make([]string, 0, SliceCount)
	for _, s := range r.Slices {
		out = append(out, s.Name())
	}
	return out
}

// Source abstracts where raw bytes come from (reader, file path, etc.).
type Source struct {
	Reader      io.Reader
	ContentType string // optional hint
	Name        string // optional logical name / filename
	Size        int64  // -1 if unknown
}

// Hook is an optional observer invoked around pipeline stages.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
