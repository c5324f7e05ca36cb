package watermark

import (
	"math"

	"github.com/samber/lo"

	"github.com/Skryldev/image-slicer/geometry"
)

const (
	// Label is the badge text.
	Label = "tap-the-post"
	// Fraction is the share of the assumed display width the badge aims for.
	Fraction = 0.06

	// Display-pixel typography, divided by the display scale to get source
	// pixels.
	baseFontPx   = 12.0
	minFontPx    = 10.0
	maxFontPx    = 18.0
	baseMarginPx = 12.0
	minMarginSrc = 8.0

	// Below this many source pixels the text is unreadable and the badge is
	// skipped.
	minVisibleFont = 1.0
	fitAttempts    = 8
)

// Params describes the slice and badge content a layout is computed for.
type Params struct {
	SliceWidth, SliceHeight int
	DisplayScale            float64

	// LogoAspect is the logo's natural width/height; 0 means no logo.
	LogoAspect float64

	Label    string  // default Label
	Fraction float64 // default Fraction
}

// Metrics is the badge layout in slice pixel coordinates.
type Metrics struct {
	FontSize    float64
	TextWidth   float64
	TextHeight  float64
	Ascent      float64
	PadX, PadY  float64
	Spacing     float64
	LogoWidth   float64 // box width, 0 when there is no logo
	LogoHeight  float64
	BlockWidth  float64
	BlockHeight float64
	Margin      float64
	Radius      float64
	X, Y        float64

	// Visible is false when the badge cannot fit the slice.
	Visible bool
}

// HasLogo reports whether the layout reserves room for a logo.
func (m Metrics) HasLogo() bool { return m.LogoWidth > 0 }

// Contained reports whether the badge lies inside a w×h slice.
func (m Metrics) Contained(w, h int) bool {
	return m.X >= 0 && m.Y >= 0 &&
		m.X+m.BlockWidth <= float64(w) && m.Y+m.BlockHeight <= float64(h)
}

// Compute lays the badge out for one slice.
//
// The font starts at 12 display pixels, is scaled once by the tightest of
// the target width, the free width and the free height, then clamped to
// 10..18 display pixels.  If the clamped badge still overflows the slice the
// font shrinks until it fits; failing that the logo is dropped, and failing
// that the badge is not Visible.
func Compute(p Params, tm TextMeasurer) Metrics {
	scale := p.DisplayScale
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}
	label := p.Label
	if label == "" {
		label = Label
	}
	fraction := p.Fraction
	if fraction <= 0 {
		fraction = Fraction
	}

	sw, sh := float64(p.SliceWidth), float64(p.SliceHeight)
	margin := math.Max(minMarginSrc, baseMarginPx/scale)
	margin = math.Min(margin, math.Min(sw, sh)/4)
	availW, availH := sw-2*margin, sh-2*margin
	if availW <= 0 || availH <= 0 {
		return Metrics{Margin: margin}
	}

	desired := geometry.AssumedDisplayWidth * fraction / scale

	aspect := p.LogoAspect
	for {
		m := fit(label, aspect, scale, desired, availW, availH, tm)
		if m.Visible || aspect == 0 {
			if m.Visible {
				m.Margin = margin
				m.X = sw - margin - m.BlockWidth
				m.Y = sh - margin - m.BlockHeight
			}
			return m
		}
		aspect = 0 // retry text-only
	}
}

func fit(label string, aspect, scale, desired, availW, availH float64, tm TextMeasurer) Metrics {
	f := baseFontPx / scale
	m := measure(label, f, aspect, tm)

	s := math.Min(desired/m.BlockWidth, math.Min(availW/m.BlockWidth, availH/m.BlockHeight))
	f = lo.Clamp(f*s, minFontPx/scale, maxFontPx/scale)
	m = measure(label, f, aspect, tm)

	for i := 0; i < fitAttempts && (m.BlockWidth > availW || m.BlockHeight > availH); i++ {
		r := math.Min(availW/m.BlockWidth, availH/m.BlockHeight)
		f *= r * 0.995
		if f < minVisibleFont {
			return Metrics{}
		}
		m = measure(label, f, aspect, tm)
	}
	m.Visible = m.BlockWidth <= availW && m.BlockHeight <= availH && f >= minVisibleFont
	return m
}

// measure derives every badge dimension from the font size.
func measure(label string, f, aspect float64, tm TextMeasurer) Metrics {
	tw, th, ascent := tm.Measure(label, f)
	m := Metrics{
		FontSize:   f,
		TextWidth:  tw,
		TextHeight: th,
		Ascent:     ascent,
		PadX:       0.75 * f,
		PadY:       0.6 * f,
	}
	contentH := th
	if aspect > 0 {
		m.Spacing = 0.6 * f
		m.LogoHeight = math.Max(1.35*f, f+2)
		m.LogoWidth = math.Max(m.LogoHeight, m.LogoHeight*aspect)
		contentH = math.Max(contentH, m.LogoHeight)
	}
	m.BlockWidth = 2*m.PadX + tw + m.Spacing + m.LogoWidth
	m.BlockHeight = 2*m.PadY + contentH
	m.Radius = math.Min(m.BlockHeight/2, m.BlockWidth/2)
	return m
}
