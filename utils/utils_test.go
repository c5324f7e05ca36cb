package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Skryldev/image-slicer/errors"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, formatJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, formatPNG},
		{"gif", []byte("GIF89a\x01\x00"), formatGIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), formatWebP},
		{"bmp", append([]byte("BM"), make([]byte, 16)...), formatBMP},
		{"tiff", []byte{'I', 'I', 0x2A, 0x00, 8, 0, 0, 0}, formatTIFF},
		{"short", []byte{0xFF}, formatUnknown},
		{"text", []byte("hello, world"), formatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.data); got != tc.want {
				t.Errorf("DetectFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDrainReader_ExactLimit(t *testing.T) {
	data := strings.Repeat("x", 100)
	buf, err := DrainReader(context.Background(), strings.NewReader(data), 7, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ReleaseBuffer(buf)
	if buf.String() != data {
		t.Errorf("got %d bytes, want %d", buf.Len(), len(data))
	}
}

func TestDrainReader_OverLimit(t *testing.T) {
	_, err := DrainReader(context.Background(), bytes.NewReader(make([]byte, 101)), 16, 100)
	if !errors.Is(err, apperrors.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestDrainReader_NoLimit(t *testing.T) {
	buf, err := DrainReader(context.Background(), bytes.NewReader(make([]byte, 1<<16)), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ReleaseBuffer(buf)
	if buf.Len() != 1<<16 {
		t.Errorf("got %d bytes", buf.Len())
	}
}

func TestDrainReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DrainReader(ctx, strings.NewReader("abc"), 0, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
