//go:build vips

package main

import (
	imageslicer "github.com/Skryldev/image-slicer"
	"github.com/Skryldev/image-slicer/adapters/vips"
	"github.com/Skryldev/image-slicer/config"
)

// useVips starts libvips and routes every input format through it.
func useVips(s *imageslicer.Slicer, cfg config.Config) (func(), error) {
	backend := vips.NewBackend(vips.BackendConfig{
		MaxWorkers: cfg.WorkerCount,
		ChunkSize:  cfg.ChunkSize,
	})
	vips.RegisterVipsBackend(s.Inner().Registry(), backend)
	return backend.Shutdown, nil
}
