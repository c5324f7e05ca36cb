// Package geometry converts the fixed on-screen gap of a 4-up post into
// source-image row ranges.
//
// A display surface shows the image at AssumedDisplayWidth CSS pixels and
// inserts GapDisplayPx between adjacent images.  Compute trims that gap's
// worth of source rows between consecutive slices so the posted set lines up
// visually.  Rounding is done against absolute content positions, never by
// accumulating a rounded step, so the four heights never drift.
package geometry

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	apperrors "github.com/Skryldev/image-slicer/errors"
)

const (
	// SliceCount is the fixed number of slices in a 4-up post.
	SliceCount = 4
	// GapDisplayPx is the gap the display surface inserts between images.
	GapDisplayPx = 12.0
	// AssumedDisplayWidth is the viewport width, in CSS pixels, the layout
	// is tuned for (a typical phone).
	AssumedDisplayWidth = 390.0
)

// Boundary is a half-open row range [StartRow, EndRow) in source pixels.
type Boundary struct {
	StartRow int
	EndRow   int
	// Fallback is set when gap trimming collapsed the slice and the
	// untrimmed quartile split was used instead.
	Fallback bool
}

// Height returns the number of rows covered by the boundary.
func (b Boundary) Height() int { return b.EndRow - b.StartRow }

// Layout is the complete geometry of one image.
type Layout struct {
	Width, Height int

	// DisplayScale maps source pixels to display pixels, capped at 1.
	DisplayScale float64
	// GapSourcePx is GapDisplayPx expressed in source pixels.
	GapSourcePx float64
	// ContentHeight is the height left for the slices once the gaps are
	// removed, floored at one row per slice.
	ContentHeight float64

	Boundaries [SliceCount]Boundary
}

// VisibleRows returns the total number of rows covered by the slices.
func (l Layout) VisibleRows() int {
	n := 0
	for _, b := range l.Boundaries {
		n += b.Height()
	}
	return n
}

// GapRows returns the rows skipped between consecutive slices.  An entry is
// negative only when a degenerate image forced two slices to share rows.
func (l Layout) GapRows() [SliceCount - 1]int {
	var out [SliceCount - 1]int
	for i := 0; i < SliceCount-1; i++ {
		out[i] = l.Boundaries[i+1].StartRow - l.Boundaries[i].EndRow
	}
	return out
}

// DisplayScale returns assumedDisplayWidth / imageWidth capped at 1.
// imageWidth must be positive.
func DisplayScale(imageWidth int, assumedDisplayWidth float64) float64 {
	return math.Min(1, assumedDisplayWidth/float64(imageWidth))
}

// Compute returns the layout for an image using the fixed display constants.
func Compute(width, height int) (Layout, error) {
	return ComputeBoundaries(width, height, GapDisplayPx, AssumedDisplayWidth)
}

// ComputeBoundaries splits an image of the given size into SliceCount row
// ranges separated by gapDisplayPx display pixels.
//
// Every returned boundary covers at least one row and lies inside
// [0, height].  Start and end rows never decrease from one slice to the next.
func ComputeBoundaries(width, height int, gapDisplayPx, assumedDisplayWidth float64) (Layout, error) {
	if width <= 0 || height <= 0 {
		return Layout{}, apperrors.New(apperrors.CategoryGeometry, "geometry.compute",
			fmt.Errorf("%w: %dx%d", apperrors.ErrInvalidDimensions, width, height))
	}
	if gapDisplayPx < 0 || assumedDisplayWidth <= 0 ||
		math.IsNaN(gapDisplayPx) || math.IsNaN(assumedDisplayWidth) ||
		math.IsInf(gapDisplayPx, 0) || math.IsInf(assumedDisplayWidth, 0) {
		return Layout{}, apperrors.New(apperrors.CategoryGeometry, "geometry.compute",
			fmt.Errorf("%w: gap=%v display width=%v", apperrors.ErrInvalidDimensions, gapDisplayPx, assumedDisplayWidth))
	}

	scale := DisplayScale(width, assumedDisplayWidth)
	gap := gapDisplayPx / scale
	content := math.Max(SliceCount, float64(height)-gap*(SliceCount-1))
	base := content / SliceCount

	l := Layout{
		Width:         width,
		Height:        height,
		DisplayScale:  scale,
		GapSourcePx:   gap,
		ContentHeight: content,
	}

	cursor := 0.0 // position in the source, gaps included
	prevEnd := 0
	for i := 0; i < SliceCount; i++ {
		targetStart := math.Round(float64(i) * base)
		targetEnd := content
		if i < SliceCount-1 {
			targetEnd = math.Round(float64(i+1) * base)
		}
		visible := math.Max(1, targetEnd-targetStart)

		start := lo.Clamp(roundRow(cursor), 0, height)
		end := lo.Clamp(roundRow(cursor+visible), 0, height)

		var b Boundary
		if end-start < 1 {
			if prevEnd >= height {
				// Earlier slices already reach the bottom.
				l.Boundaries = quarterAll(height)
				return l, nil
			}
			b = quartile(i, height, prevEnd)
		} else {
			b = Boundary{StartRow: start, EndRow: end}
		}
		l.Boundaries[i] = b
		cursor = float64(b.EndRow) + gap
		prevEnd = b.EndRow
	}
	return l, nil
}

// quartile is the untrimmed split used when trimming leaves no rows.  The
// start is lifted past the previous slice so ranges stay ordered; on images
// shorter than SliceCount rows it falls back to the last row.
func quartile(i, height, prevEnd int) Boundary {
	start := max(i*height/SliceCount, prevEnd)
	start = min(start, height-1)
	end := ((i+1)*height + SliceCount - 1) / SliceCount // ceil
	end = max(start+1, min(end, height))
	return Boundary{StartRow: start, EndRow: end, Fallback: true}
}

// quarterAll splits the whole image without any gap.  Ranges are disjoint
// whenever height >= SliceCount.
func quarterAll(height int) [SliceCount]Boundary {
	var out [SliceCount]Boundary
	prevEnd := 0
	for i := range out {
		out[i] = quartile(i, height, prevEnd)
		prevEnd = out[i].EndRow
	}
	return out
}

// roundRow rounds half up, saturating instead of overflowing.
func roundRow(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v + 0.5))
}
