// Package pipeline renders slice bands and names the processing stages.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Skryldev/image-slicer/errors"
	"github.com/Skryldev/image-slicer/geometry"
)

// Stage names reported to hooks and metrics.
const (
	StepDecode    = "decode"
	StepGeometry  = "geometry"
	StepRender    = "render"
	StepWatermark = "watermark"
	StepEncode    = "encode"
)

// RenderSlice copies the full-width band described by b out of src into a
// new buffer.  Pixels are copied, never resampled; src is not modified.
func RenderSlice(src image.Image, b geometry.Boundary) (*image.NRGBA, error) {
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, StepRender, apperrors.ErrEmptyInput)
	}
	sb := src.Bounds()
	if b.StartRow < 0 || b.EndRow > sb.Dy() || b.Height() < 1 {
		return nil, apperrors.New(apperrors.CategoryPipeline, StepRender,
			fmt.Errorf("%w: rows [%d,%d) outside image height %d",
				apperrors.ErrInvalidDimensions, b.StartRow, b.EndRow, sb.Dy()))
	}

	rect := image.Rect(sb.Min.X, sb.Min.Y+b.StartRow, sb.Max.X, sb.Min.Y+b.EndRow)
	return imaging.Crop(src, rect), nil
}

// RenderAll renders every boundary concurrently, at most workers at a time
// (workers <= 0 means runtime.NumCPU()).  The result keeps the order of
// bounds.
func RenderAll(ctx context.Context, src image.Image, bounds []geometry.Boundary, workers int) ([]*image.NRGBA, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]*image.NRGBA, len(bounds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, b := range bounds {
		i, b := i, b // per-iteration copies (go.mod targets Go 1.21)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return apperrors.Wrap(apperrors.CategoryPipeline, StepRender, err)
			}
			img, err := RenderSlice(src, b)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
