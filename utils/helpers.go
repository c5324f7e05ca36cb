package utils

import (
	"bytes"
	"net/http"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatGIF     = "gif"
	formatWebP    = "webp"
	formatBMP     = "bmp"
	formatTIFF    = "tiff"
	formatUnknown = "unknown"
)

var (
	gifMagic87 = []byte("GIF87a")
	gifMagic89 = []byte("GIF89a")
	tiffLE     = []byte{'I', 'I', 0x2A, 0x00}
	tiffBE     = []byte{'M', 'M', 0x00, 0x2A}
)

// DetectFormat sniffs the first bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	if bytes.HasPrefix(data, gifMagic87) || bytes.HasPrefix(data, gifMagic89) {
		return formatGIF
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	// BMP: "BM" followed by the file header.
	if len(data) >= 14 && data[0] == 'B' && data[1] == 'M' {
		return formatBMP
	}
	if bytes.HasPrefix(data, tiffLE) || bytes.HasPrefix(data, tiffBE) {
		return formatTIFF
	}
	// Fallback to net/http sniffing.
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/gif":
		return formatGIF
	case "image/webp":
		return formatWebP
	case "image/bmp":
		return formatBMP
	}
	return formatUnknown
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
