package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend selects the RasterSource implementation.
type Backend string

const (
	BackendStdlib Backend = "stdlib"
	BackendVips   Backend = "vips"
)

// NoLogo disables the logo half of the badge when used as Watermark.LogoPath.
const NoLogo = "-"

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Render parallelism; default: runtime.NumCPU().
	WorkerCount int `yaml:"workerCount"`

	// Streaming / memory limits.
	MaxImageBytes int64 `yaml:"maxImageBytes"` // 0 = no limit
	ChunkSize     int   `yaml:"chunkSize"`     // streaming chunk size in bytes; default 32 KiB

	// Backend is read by the CLI, which registers libvips on top of the
	// stdlib decoders.  imageslicer.New rejects BackendVips.
	Backend   Backend         `yaml:"backend"`
	Encode    EncodeConfig    `yaml:"encode"`
	Watermark WatermarkConfig `yaml:"watermark"`

	// Logging.
	LogLevel  string `yaml:"logLevel"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"logFormat"` // "text" or "json"
}

// EncodeConfig controls the PNG output encoder.
type EncodeConfig struct {
	// CompressionLevel is one of "default", "none", "best-speed",
	// "best-compression".  Every level is lossless.
	CompressionLevel string `yaml:"compressionLevel"`
}

// WatermarkConfig controls the badge on the last slice.
type WatermarkConfig struct {
	Enabled bool `yaml:"enabled"`
	// LogoPath points at an SVG or raster logo.  Empty selects the embedded
	// logo; NoLogo renders a text-only badge.
	LogoPath string `yaml:"logoPath"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:   0, // resolved at runtime to NumCPU
		MaxImageBytes: 64 << 20,
		ChunkSize:     32 * 1024,
		Backend:       BackendStdlib,
		Encode:        EncodeConfig{CompressionLevel: "default"},
		Watermark:     WatermarkConfig{Enabled: true},
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads a YAML file and overlays it on Default().  Keys missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("config: MaxImageBytes must not be negative")
	}
	if c.WorkerCount < 0 {
		return errors.New("config: WorkerCount must not be negative")
	}
	switch c.Backend {
	case BackendStdlib, BackendVips:
	default:
		return fmt.Errorf("config: unknown Backend %q", c.Backend)
	}
	switch c.Encode.CompressionLevel {
	case "", "default", "none", "best-speed", "best-compression":
	default:
		return fmt.Errorf("config: unknown Encode.CompressionLevel %q", c.Encode.CompressionLevel)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown LogLevel %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown LogFormat %q", c.LogFormat)
	}
	return nil
}
