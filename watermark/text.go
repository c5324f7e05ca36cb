package watermark

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// TextMeasurer reports the advance width, line height and ascent of a label
// set at size source pixels.
type TextMeasurer interface {
	Measure(label string, size float64) (width, height, ascent float64)
}

// smallest face opentype is asked to build
const minFaceSize = 0.01

var (
	badgeFontOnce sync.Once
	badgeFont     *opentype.Font
	badgeFontErr  error
)

// loadBadgeFont parses the bundled Go Bold face once per process.
func loadBadgeFont() (*opentype.Font, error) {
	badgeFontOnce.Do(func() {
		badgeFont, badgeFontErr = opentype.Parse(gobold.TTF)
		if badgeFontErr != nil {
			badgeFontErr = fmt.Errorf("watermark: parse font: %w", badgeFontErr)
		}
	})
	return badgeFont, badgeFontErr
}

// FontMeasurer measures and draws with an OpenType font.
type FontMeasurer struct {
	font *opentype.Font
}

// NewFontMeasurer returns a measurer backed by the bundled Go Bold font.
func NewFontMeasurer() (*FontMeasurer, error) {
	f, err := loadBadgeFont()
	if err != nil {
		return nil, err
	}
	return &FontMeasurer{font: f}, nil
}

// Face builds an unhinted face at size source pixels (72 DPI, so points
// equal pixels).
func (m *FontMeasurer) Face(size float64) (font.Face, error) {
	if size < minFaceSize {
		size = minFaceSize
	}
	return opentype.NewFace(m.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func (m *FontMeasurer) Measure(label string, size float64) (width, height, ascent float64) {
	face, err := m.Face(size)
	if err != nil {
		// Only reachable with a corrupt font; fall back to a rough estimate.
		return 0.6 * size * float64(len(label)), 1.2 * size, 0.95 * size
	}
	defer face.Close()

	met := face.Metrics()
	return fromFixed(font.MeasureString(face, normalizeLabel(label))),
		fromFixed(met.Ascent + met.Descent),
		fromFixed(met.Ascent)
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(v * 64) }

// normalizeLabel composes the label so measured and drawn glyphs agree.
func normalizeLabel(label string) string { return norm.NFC.String(label) }
