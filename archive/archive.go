// Package archive bundles the four slices for download: one PNG file per
// slice in a directory, a zip, or a zstd-compressed tar.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/Skryldev/image-slicer/core"
	apperrors "github.com/Skryldev/image-slicer/errors"
)

// modTime is stamped on every entry so identical slices give identical
// bundles.
var modTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Kind selects the bundle container.
type Kind string

const (
	KindZip    Kind = "zip"
	KindTarZst Kind = "tar.zst"
)

// KindFromPath picks the container from a file name's extension.
func KindFromPath(path string) (Kind, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return KindZip, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return KindTarZst, nil
	}
	return "", apperrors.New(apperrors.CategoryInput, "archive.kind",
		fmt.Errorf("unsupported bundle extension in %q (want .zip or .tar.zst)", filepath.Base(path)))
}

// Write writes res to w in the given container.
func Write(w io.Writer, kind Kind, res *core.SliceResult) error {
	switch kind {
	case KindZip:
		return WriteZip(w, res)
	case KindTarZst:
		return WriteTarZst(w, res)
	}
	return apperrors.New(apperrors.CategoryInput, "archive.write", fmt.Errorf("unknown bundle kind %q", kind))
}

// WriteZip writes the slices, top to bottom, as a zip archive.  PNG data is
// already deflated, so entries are stored.
func WriteZip(w io.Writer, res *core.SliceResult) error {
	zw := zip.NewWriter(w)
	for _, s := range res.Slices {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     s.Name(),
			Method:   zip.Store,
			Modified: modTime,
		})
		if err != nil {
			return apperrors.New(apperrors.CategoryEncode, "archive.zip", err)
		}
		if _, err := fw.Write(s.Data); err != nil {
			return apperrors.New(apperrors.CategoryEncode, "archive.zip", err)
		}
	}
	if err := zw.Close(); err != nil {
		return apperrors.New(apperrors.CategoryEncode, "archive.zip", err)
	}
	return nil
}

// WriteTarZst writes the slices as a tar stream compressed with zstd.
func WriteTarZst(w io.Writer, res *core.SliceResult) error {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		return apperrors.New(apperrors.CategoryEncode, "archive.zstd", err)
	}
	tw := tar.NewWriter(zw)
	for _, s := range res.Slices {
		hdr := &tar.Header{
			Name:    s.Name(),
			Mode:    0o644,
			Size:    int64(len(s.Data)),
			ModTime: modTime,
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			zw.Close()
			return apperrors.New(apperrors.CategoryEncode, "archive.tar", err)
		}
		if _, err := tw.Write(s.Data); err != nil {
			zw.Close()
			return apperrors.New(apperrors.CategoryEncode, "archive.tar", err)
		}
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		return apperrors.New(apperrors.CategoryEncode, "archive.tar", err)
	}
	if err := zw.Close(); err != nil {
		return apperrors.New(apperrors.CategoryEncode, "archive.zstd", err)
	}
	return nil
}

// WriteFile creates path and writes the bundle kind derived from its name.
func WriteFile(path string, res *core.SliceResult) error {
	kind, err := KindFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.New(apperrors.CategoryInput, "archive.create", err)
	}
	if err := Write(f, kind, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return apperrors.New(apperrors.CategoryInput, "archive.close", err)
	}
	return nil
}

// WriteDir writes each slice to dir under its download name and returns the
// paths in slice order.  dir is created if needed.
func WriteDir(dir string, res *core.SliceResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.New(apperrors.CategoryInput, "archive.mkdir", err)
	}
	paths := make([]string, 0, len(res.Slices))
	for _, s := range res.Slices {
		p := filepath.Join(dir, s.Name())
		if err := os.WriteFile(p, s.Data, 0o644); err != nil {
			return paths, apperrors.New(apperrors.CategoryInput, "archive.write", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
