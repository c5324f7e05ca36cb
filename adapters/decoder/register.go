package decoder

import "github.com/Skryldev/image-slicer/core"

// RegisterAll installs the pure-Go decoders for every supported format.
func RegisterAll(reg core.Registry) {
	reg.RegisterDecoder(core.FormatJPEG, NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, NewPNG())
	reg.RegisterDecoder(core.FormatGIF, NewGIF())
	reg.RegisterDecoder(core.FormatWebP, NewWebP())
	reg.RegisterDecoder(core.FormatBMP, NewBMP())
	reg.RegisterDecoder(core.FormatTIFF, NewTIFF())
}
