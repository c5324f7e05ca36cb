package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	imageslicer "github.com/Skryldev/image-slicer"
	"github.com/Skryldev/image-slicer/geometry"
)

func newGeometryCommand() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Print the slice rows for an image size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := imageslicer.Geometry(width, height)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLayout(l))
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func formatLayout(l geometry.Layout) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString(p.Sprintf("image %dx%d, scale %.4f, gap %.2f px\n", l.Width, l.Height, l.DisplayScale, l.GapSourcePx))
	lines := lo.Map(l.Boundaries[:], func(bd geometry.Boundary, i int) string {
		note := ""
		if bd.Fallback {
			note = " (fallback)"
		}
		return p.Sprintf("slice %d: rows %d-%d, %d px%s", i+1, bd.StartRow, bd.EndRow, bd.Height(), note)
	})
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.String()
}
