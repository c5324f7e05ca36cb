package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/image-slicer/config"
	apperrors "github.com/Skryldev/image-slicer/errors"
	"github.com/Skryldev/image-slicer/geometry"
	"github.com/Skryldev/image-slicer/pipeline"
	"github.com/Skryldev/image-slicer/utils"
)

// Processor is the central orchestrator.  It runs one decode, computes the
// gap geometry, renders the four bands, draws the badge on the last one and
// encodes them.  It is safe for concurrent use once configured.
type Processor struct {
	cfg        config.Config
	registry   Registry
	compositor Compositor
	hooks      []Hook
	logger     Logger
	metrics    MetricsCollector

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// New creates a Processor with the given config.
func New(cfg config.Config, reg Registry) *Processor {
	return &Processor{
		cfg:      cfg,
		registry: reg,
		logger:   NopLogger{},
	}
}

// SetLogger attaches a structured logger.  nil restores the no-op logger.
func (p *Processor) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	p.logger = l
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// SetCompositor sets the badge compositor; nil disables the badge.
func (p *Processor) SetCompositor(c Compositor) { p.compositor = c }

// AddHook registers a pipeline hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the underlying registry so callers can register
// decoders after construction.
func (p *Processor) Registry() Registry { return p.registry }

// Slice reads src and returns the four encoded slices, top to bottom.
func (p *Processor) Slice(ctx context.Context, src Source) (*SliceResult, error) {
	start := time.Now()
	res, err := p.slice(ctx, src)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.logger.Warn("slice.failed",
			"source", src.Name,
			"category", apperrors.CategoryOf(err),
			"error", err.Error(),
		)
		return nil, err
	}
	atomic.AddInt64(&p.processedCount, 1)
	res.ProcessingTime = time.Since(start)
	p.logger.Info("slice.done",
		"source", src.Name,
		"watermarked", res.Watermarked,
		"logo", res.LogoUsed,
		"duration_ms", res.ProcessingTime.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) slice(ctx context.Context, src Source) (*SliceResult, error) {
	if src.Reader == nil {
		return nil, apperrors.New(apperrors.CategoryInput, "slice.read", apperrors.ErrEmptyInput)
	}

	// --- 1. Drain source into memory (respecting max size limit) -------------
	buf, err := utils.DrainReader(ctx, src.Reader, p.cfg.ChunkSize, p.cfg.MaxImageBytes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "slice.read", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "slice.read", apperrors.ErrEmptyInput)
	}
	if p.metrics != nil {
		p.metrics.RecordThroughput(int64(len(raw)))
	}

	// --- 2. Detect format ----------------------------------------------------
	format := Format(utils.DetectFormat(raw))
	if format == FormatUnknown && src.ContentType != "" {
		format = contentTypeToFormat(src.ContentType)
	}
	input := &ImageData{Data: raw, Format: format, OriginalSize: int64(len(raw))}

	timings := make(map[string]time.Duration, 5)

	// --- 3. Decode -----------------------------------------------------------
	decoded, err := p.runStage(ctx, pipeline.StepDecode, input, timings, func() (*ImageData, error) {
		return p.decode(ctx, input)
	})
	if err != nil {
		return nil, err
	}

	// --- 4. Geometry ---------------------------------------------------------
	var layout geometry.Layout
	_, err = p.runStage(ctx, pipeline.StepGeometry, decoded, timings, func() (*ImageData, error) {
		var gerr error
		layout, gerr = geometry.Compute(decoded.Meta.Width, decoded.Meta.Height)
		return nil, gerr
	})
	if err != nil {
		return nil, err
	}
	for i, b := range layout.Boundaries {
		if b.Fallback {
			p.logger.Debug("geometry.fallback",
				"slice", i,
				"start", b.StartRow,
				"end", b.EndRow,
				"height", layout.Height,
				"gap_px", layout.GapSourcePx,
			)
		}
	}

	// --- 5. Render -----------------------------------------------------------
	var bands [SliceCount]*image.NRGBA
	_, err = p.runStage(ctx, pipeline.StepRender, decoded, timings, func() (*ImageData, error) {
		out, rerr := pipeline.RenderAll(ctx, decoded.Image, layout.Boundaries[:], p.cfg.WorkerCount)
		if rerr != nil {
			return nil, rerr
		}
		copy(bands[:], out)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	res := &SliceResult{
		DisplayScale: layout.DisplayScale,
		GapSourcePx:  layout.GapSourcePx,
		StepTimings:  timings,
	}

	// --- 6. Watermark --------------------------------------------------------
	if p.compositor != nil {
		last := bands[SliceCount-1]
		_, err = p.runStage(ctx, pipeline.StepWatermark, decoded, timings, func() (*ImageData, error) {
			drawn, withLogo, werr := p.compositor.Apply(ctx, last, layout.DisplayScale)
			res.Watermarked, res.LogoUsed = drawn, withLogo
			return nil, werr
		})
		if err != nil {
			return nil, err
		}
		if !res.Watermarked {
			p.logger.Debug("watermark.skipped", "width", last.Bounds().Dx(), "height", last.Bounds().Dy())
		}
	}

	// --- 7. Encode -----------------------------------------------------------
	_, err = p.runStage(ctx, pipeline.StepEncode, decoded, timings, func() (*ImageData, error) {
		return p.encode(ctx, layout, bands, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) decode(ctx context.Context, input *ImageData) (*ImageData, error) {
	dec, ok := p.registry.DecoderFor(input.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, input.Format))
	}
	out, err := dec.Decode(ctx, bytes.NewReader(input.Data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode", err)
	}
	if out == nil || out.Image == nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrEmptyInput)
	}
	b := out.Image.Bounds()
	out.Data = input.Data
	out.OriginalSize = input.OriginalSize
	out.Meta.Width, out.Meta.Height = b.Dx(), b.Dy()
	out.Meta.SizeBytes = input.OriginalSize
	if out.Format == FormatUnknown {
		out.Format = input.Format
	}
	return out, nil
}

// encode serialises the bands concurrently; slices are independent.
func (p *Processor) encode(ctx context.Context, layout geometry.Layout, bands [SliceCount]*image.NRGBA, res *SliceResult) (*ImageData, error) {
	enc := p.registry.Encoder()
	if enc == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "encode",
			fmt.Errorf("%w: no encoder registered", apperrors.ErrUnsupportedFormat))
	}
	workers := p.cfg.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range bands {
		i := i // per-iteration copy (go.mod targets Go 1.21)
		g.Go(func() error {
			data, err := enc.Encode(gctx, bands[i])
			if err != nil {
				return apperrors.Wrap(apperrors.CategoryEncode, fmt.Sprintf("encode.slice%d", i+1), err)
			}
			b := bands[i].Bounds()
			res.Slices[i] = Slice{
				Index:    i,
				Boundary: layout.Boundaries[i],
				Width:    b.Dx(),
				Height:   b.Dy(),
				Data:     data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int64
	for _, s := range res.Slices {
		total += int64(len(s.Data))
	}
	return &ImageData{
		Format: enc.Format(),
		Meta: Metadata{
			Width:     layout.Width,
			Height:    layout.VisibleRows(),
			Format:    enc.Format(),
			SizeBytes: total,
		},
	}, nil
}

// runStage wraps fn with hooks, timing and metrics.
func (p *Processor) runStage(ctx context.Context, name string, in *ImageData, timings map[string]time.Duration, fn func() (*ImageData, error)) (*ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, name, err)
	}
	p.notifyBefore(ctx, name, in)
	t := time.Now()
	out, err := fn()
	elapsed := time.Since(t)
	timings[name] = elapsed
	p.notifyAfter(ctx, name, out, elapsed, err)
	if p.metrics != nil {
		p.metrics.RecordProcessingTime(name, elapsed)
		if err != nil {
			p.metrics.RecordError(name, string(apperrors.CategoryOf(err)))
		}
	}
	return out, err
}

func (p *Processor) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, img *ImageData, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}

// contentTypeToFormat maps MIME types to Format values.  It is only
// consulted when sniffing the bytes fails.
func contentTypeToFormat(ct string) Format {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(strings.ToLower(ct)) {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	case "image/webp":
		return FormatWebP
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP
	case "image/tiff":
		return FormatTIFF
	}
	return FormatUnknown
}

// ProcessedCount returns the total number of successfully sliced images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of failed invocations.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
