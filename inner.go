package imageslicer

import "github.com/Skryldev/image-slicer/core"

// Inner exposes the underlying core.Processor for advanced use, such as
// installing the libvips backend on its registry.  Prefer the high-level API
// for normal usage.
func (s *Slicer) Inner() *core.Processor { return s.inner }
