//go:build !vips

package main

import (
	"errors"

	imageslicer "github.com/Skryldev/image-slicer"
	"github.com/Skryldev/image-slicer/config"
)

func useVips(*imageslicer.Slicer, config.Config) (func(), error) {
	return nil, errors.New("this build has no libvips support; rebuild with -tags vips")
}
