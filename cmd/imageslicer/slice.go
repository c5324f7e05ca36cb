package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	imageslicer "github.com/Skryldev/image-slicer"
	"github.com/Skryldev/image-slicer/archive"
	"github.com/Skryldev/image-slicer/config"
	"github.com/Skryldev/image-slicer/hooks"
	"github.com/Skryldev/image-slicer/session"
)

type sliceOptions struct {
	outDir      string
	bundle      string
	noWatermark bool
	logo        string
	backend     string
}

func newSliceCommand(root *rootOptions) *cobra.Command {
	opts := &sliceOptions{}
	cmd := &cobra.Command{
		Use:   "slice <input>",
		Short: "Slice an image and write the four PNGs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if opts.noWatermark {
				cfg.Watermark.Enabled = false
			}
			if cmd.Flags().Changed("logo") {
				cfg.Watermark.LogoPath = opts.logo
			}
			if opts.backend != "" {
				cfg.Backend = config.Backend(opts.backend)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return runSlice(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.outDir, "out", "o", ".", "directory for the slice PNGs")
	f.StringVar(&opts.bundle, "zip", "", "also write a bundle (.zip or .tar.zst)")
	f.BoolVar(&opts.noWatermark, "no-watermark", false, "skip the badge on the last slice")
	f.StringVar(&opts.logo, "logo", "", `logo file (SVG or raster), "-" for a text-only badge`)
	f.StringVar(&opts.backend, "backend", "", "decoder backend: stdlib or vips")
	return cmd
}

func runSlice(ctx context.Context, w io.Writer, cfg config.Config, input string, opts *sliceOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := newLogger(cfg)
	libCfg := cfg
	libCfg.Backend = config.BackendStdlib
	s, err := imageslicer.New(libCfg)
	if err != nil {
		return err
	}
	s.SetLogger(logger)
	s.AddHook(hooks.NewLoggingHook(logger))
	metrics := hooks.NewInMemoryMetrics()
	s.SetMetrics(metrics)

	if cfg.Backend == config.BackendVips {
		shutdown, err := useVips(s, cfg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	sess := session.New(s.Slice, logger)
	sess.Submit(ctx, input, data)
	snap, err := sess.Wait(ctx)
	if err != nil {
		return err
	}
	if snap.State == session.Failed {
		return snap.Err
	}
	res := snap.Result

	paths, err := archive.WriteDir(opts.outDir, res)
	if err != nil {
		return err
	}
	if opts.bundle != "" {
		if err := archive.WriteFile(opts.bundle, res); err != nil {
			return err
		}
		paths = append(paths, opts.bundle)
	}

	p := message.NewPrinter(language.English)
	for i, sl := range res.Slices {
		p.Fprintf(w, "%s\t%dx%d\trows %d-%d\t%d bytes\n",
			paths[i], sl.Width, sl.Height, sl.Boundary.StartRow, sl.Boundary.EndRow, len(sl.Data))
	}
	if opts.bundle != "" {
		p.Fprintf(w, "%s\n", opts.bundle)
	}
	snapM := metrics.Snapshot()
	logger.Debug("slice.metrics", "stage_ms", snapM.StepDurationsMs, "input_bytes", snapM.TotalThroughputB)
	return nil
}
