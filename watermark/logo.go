package watermark

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"

	apperrors "github.com/Skryldev/image-slicer/errors"
)

//go:embed assets/logo.svg
var embeddedLogo []byte

// EmbeddedLogoKey is the cache key of the bundled logo.
const EmbeddedLogoKey = "embedded:logo.svg"

// svgRasterHeight is the height SVG logos are rasterised at before caching;
// the badge always scales down from it.
const svgRasterHeight = 256

// LogoCache holds decoded logos for the lifetime of the process.  Each key
// is loaded at most once, failures included; concurrent first callers wait
// for the same load.
type LogoCache struct {
	entries sync.Map // string → *logoEntry
}

type logoEntry struct {
	once sync.Once
	img  image.Image
	err  error
}

// DefaultLogos is the process-wide logo cache.
var DefaultLogos = &LogoCache{}

// Get returns the logo cached under key, calling load on first access.
func (c *LogoCache) Get(key string, load func() (image.Image, error)) (image.Image, error) {
	v, _ := c.entries.LoadOrStore(key, &logoEntry{})
	e := v.(*logoEntry)
	e.once.Do(func() {
		e.img, e.err = load()
	})
	return e.img, e.err
}

// Logo returns the logo referenced by path through the cache.  An empty path
// selects the embedded logo.
func (c *LogoCache) Logo(path string) (image.Image, error) {
	if path == "" {
		return c.Get(EmbeddedLogoKey, func() (image.Image, error) {
			return RasterizeSVG(bytes.NewReader(embeddedLogo), svgRasterHeight)
		})
	}
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	return c.Get(key, func() (image.Image, error) { return LoadLogo(path) })
}

// LoadLogo reads an SVG or raster logo from disk without caching.
func LoadLogo(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryLogo, "logo.open", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return RasterizeSVG(f, svgRasterHeight)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryLogo, "logo.decode", err)
	}
	return img, nil
}

// RasterizeSVG renders an SVG document at the given pixel height, keeping
// its view box aspect ratio.
func RasterizeSVG(r io.Reader, height int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(r)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryLogo, "logo.svg.parse", err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, apperrors.New(apperrors.CategoryLogo, "logo.svg.parse",
			fmt.Errorf("%w: empty view box", apperrors.ErrLogoUnavailable))
	}

	w := int(float64(height)*vw/vh + 0.5)
	if w < 1 {
		w = 1
	}
	icon.SetTarget(0, 0, float64(w), float64(height))

	img := image.NewNRGBA(image.Rect(0, 0, w, height))
	scanner := rasterx.NewScannerGV(w, height, img, img.Bounds())
	raster := rasterx.NewDasher(w, height, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}
