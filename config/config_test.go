package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Skryldev/image-slicer/config"
)

func TestDefaultIsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("Validate(Default()): %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero chunk", func(c *config.Config) { c.ChunkSize = 0 }},
		{"negative limit", func(c *config.Config) { c.MaxImageBytes = -1 }},
		{"negative workers", func(c *config.Config) { c.WorkerCount = -2 }},
		{"unknown backend", func(c *config.Config) { c.Backend = "magick" }},
		{"unknown compression", func(c *config.Config) { c.Encode.CompressionLevel = "ultra" }},
		{"unknown level", func(c *config.Config) { c.LogLevel = "trace" }},
		{"unknown format", func(c *config.Config) { c.LogFormat = "xml" }},
	}
	for _, tc := range tests {
		cfg := config.Default()
		tc.mutate(&cfg)
		if err := config.Validate(cfg); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slicer.yaml")
	body := []byte("backend: vips\nwatermark:\n  enabled: false\n  logoPath: \"-\"\nencode:\n  compressionLevel: best-speed\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != config.BackendVips {
		t.Errorf("backend: got %q, want vips", cfg.Backend)
	}
	if cfg.Watermark.Enabled {
		t.Error("watermark should be disabled")
	}
	if cfg.Watermark.LogoPath != config.NoLogo {
		t.Errorf("logo path: got %q", cfg.Watermark.LogoPath)
	}
	if cfg.Encode.CompressionLevel != "best-speed" {
		t.Errorf("compression: got %q", cfg.Encode.CompressionLevel)
	}
	// Untouched keys keep their defaults.
	if cfg.ChunkSize != config.Default().ChunkSize {
		t.Errorf("chunk size: got %d", cfg.ChunkSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("logLevel: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
