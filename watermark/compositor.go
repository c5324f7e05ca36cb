// Package watermark lays out and draws the badge placed on the last slice.
//
// All sizes are specified in display pixels and converted to source pixels
// with the same display scale the gap geometry uses, so the badge looks the
// same size on screen whatever the resolution of the upload.
package watermark

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/Skryldev/image-slicer/config"
	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
)

// Style holds the badge colours.
type Style struct {
	Fill   color.NRGBA
	Border color.NRGBA
	Text   color.NRGBA
}

// DefaultStyle is a translucent dark pill with a faint light outline.
var DefaultStyle = Style{
	Fill:   color.NRGBA{R: 15, G: 20, B: 25, A: 150},
	Border: color.NRGBA{R: 255, G: 255, B: 255, A: 90},
	Text:   color.NRGBA{R: 255, G: 255, B: 255, A: 240},
}

// Compositor draws the badge.  It is safe for concurrent use.
type Compositor struct {
	// LogoPath selects the logo: "" for the embedded one, config.NoLogo for
	// none, anything else is a file path.
	LogoPath string
	Logos    *LogoCache
	Style    Style
	Logger   core.Logger

	fonts *FontMeasurer
}

// NewCompositor returns a Compositor using the process-wide logo cache.
func NewCompositor(logoPath string, logger core.Logger) (*Compositor, error) {
	fm, err := NewFontMeasurer()
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "watermark.font", err)
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Compositor{
		LogoPath: logoPath,
		Logos:    DefaultLogos,
		Style:    DefaultStyle,
		Logger:   logger,
		fonts:    fm,
	}, nil
}

// logo returns the configured logo, or nil when there is none or it failed
// to load.  A failure only downgrades the badge to text.
func (c *Compositor) logo() image.Image {
	if c.LogoPath == config.NoLogo {
		return nil
	}
	img, err := c.Logos.Logo(c.LogoPath)
	if err != nil {
		c.Logger.Warn("watermark.logo.unavailable", "path", c.LogoPath, "error", err.Error())
		return nil
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}
	return img
}

// Layout computes the badge metrics for dst without drawing.
func (c *Compositor) Layout(dst image.Image, displayScale float64) (Metrics, image.Image) {
	logo := c.logo()
	aspect := 0.0
	if logo != nil {
		lb := logo.Bounds()
		aspect = float64(lb.Dx()) / float64(lb.Dy())
	}
	b := dst.Bounds()
	m := Compute(Params{
		SliceWidth:   b.Dx(),
		SliceHeight:  b.Dy(),
		DisplayScale: displayScale,
		LogoAspect:   aspect,
	}, c.fonts)
	if !m.HasLogo() {
		logo = nil
	}
	return m, logo
}

// Apply draws the badge onto the bottom-right corner of dst in place.
func (c *Compositor) Apply(ctx context.Context, dst draw.Image, displayScale float64) (drawn, withLogo bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, false, apperrors.Wrap(apperrors.CategoryPipeline, "watermark", err)
	}
	m, logo := c.Layout(dst, displayScale)
	if !m.Visible {
		c.Logger.Debug("watermark.skipped", "width", dst.Bounds().Dx(), "height", dst.Bounds().Dy())
		return false, false, nil
	}

	origin := dst.Bounds().Min
	c.drawPill(dst, m, displayScale)
	if err := c.drawLabel(dst, m, origin); err != nil {
		return false, false, apperrors.New(apperrors.CategoryPipeline, "watermark.text", err)
	}
	if logo != nil {
		drawLogo(dst, m, logo, origin)
	}
	return true, logo != nil, nil
}

func (c *Compositor) drawPill(dst draw.Image, m Metrics, displayScale float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	x0, y0 := m.X, m.Y
	x1, y1 := m.X+m.BlockWidth, m.Y+m.BlockHeight

	scanner := rasterx.NewScannerGV(w, h, dst, b)

	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(c.Style.Fill)
	rasterx.AddRoundRect(x0, y0, x1, y1, m.Radius, m.Radius, 0, rasterx.RoundGap, filler)
	filler.Draw()
	filler.Clear()

	// One display pixel, drawn inside the block so it never leaves the slice.
	hairline := math.Max(1, 1/displayScale)
	inset := hairline / 2
	if x1-x0 <= hairline || y1-y0 <= hairline {
		return
	}
	stroker := rasterx.NewStroker(w, h, scanner)
	stroker.SetStroke(toFixed(hairline), toFixed(4), rasterx.ButtCap, rasterx.ButtCap, rasterx.RoundGap, rasterx.Round)
	stroker.SetColor(c.Style.Border)
	r := math.Max(0, m.Radius-inset)
	rasterx.AddRoundRect(x0+inset, y0+inset, x1-inset, y1-inset, r, r, 0, rasterx.RoundGap, stroker)
	stroker.Draw()
}

func (c *Compositor) drawLabel(dst draw.Image, m Metrics, origin image.Point) error {
	face, err := c.fonts.Face(m.FontSize)
	if err != nil {
		return err
	}
	defer face.Close()

	contentH := math.Max(m.TextHeight, m.LogoHeight)
	top := m.Y + m.PadY + (contentH-m.TextHeight)/2
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c.Style.Text),
		Face: face,
		Dot: fixed.Point26_6{
			X: toFixed(float64(origin.X) + m.X + m.PadX),
			Y: toFixed(float64(origin.Y) + top + m.Ascent),
		},
	}
	d.DrawString(normalizeLabel(Label))
	return nil
}

// drawLogo scales the logo into its box, centred, keeping its aspect ratio.
func drawLogo(dst draw.Image, m Metrics, logo image.Image, origin image.Point) {
	lb := logo.Bounds()
	dh := m.LogoHeight
	dw := dh * float64(lb.Dx()) / float64(lb.Dy())
	if dw > m.LogoWidth {
		dw = m.LogoWidth
		dh = dw * float64(lb.Dy()) / float64(lb.Dx())
	}

	contentH := math.Max(m.TextHeight, m.LogoHeight)
	boxX := m.X + m.PadX + m.TextWidth + m.Spacing
	x := boxX + (m.LogoWidth-dw)/2
	y := m.Y + m.PadY + (contentH-dh)/2

	rect := image.Rect(
		origin.X+int(math.Round(x)), origin.Y+int(math.Round(y)),
		origin.X+int(math.Round(x+dw)), origin.Y+int(math.Round(y+dh)),
	).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(dst, rect, logo, lb, xdraw.Over, nil)
}

var _ core.Compositor = (*Compositor)(nil)
