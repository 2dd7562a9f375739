package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/ocr"
	"github.com/MeKo-Tech/flatscan/internal/scan"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Codec: CodecConfig{
			AutoOrient:    true,
			MaxPixels:     100_000_000,
			DefaultFormat: "auto",
			JPEGQuality:   codec.DefaultJPEGQuality,
			WebPLossless:  false,
		},
		Scan: ScanConfig{
			MaxOutputSide: 0,
			Workers:       0,
		},
		OCR: OCRConfig{
			Enabled:    false,
			Language:   "en",
			TimeoutSec: 30,
		},
		Storage: StorageConfig{
			Enabled: false,
			Dir:     "scans",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        60,
			ShutdownTimeout:   10,
			MaxConcurrent:     8,
			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     500 * 1024 * 1024,
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := codec.ParseFormat(c.Codec.DefaultFormat); err != nil {
		return fmt.Errorf("invalid codec.default_format: %w", err)
	}
	if c.Codec.JPEGQuality < 1 || c.Codec.JPEGQuality > 100 {
		return fmt.Errorf("invalid codec.jpeg_quality: %d (must be between 1 and 100)", c.Codec.JPEGQuality)
	}
	if c.Codec.MaxPixels < 0 {
		return fmt.Errorf("invalid codec.max_pixels: %d (must not be negative)", c.Codec.MaxPixels)
	}

	if c.Scan.MaxOutputSide < 0 {
		return fmt.Errorf("invalid scan.max_output_side: %d (must not be negative)", c.Scan.MaxOutputSide)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("invalid scan.workers: %d (must not be negative)", c.Scan.Workers)
	}

	if _, err := ocr.ParseLanguages(c.OCR.Language); err != nil {
		return fmt.Errorf("invalid ocr.language: %w", err)
	}
	if c.OCR.TimeoutSec <= 0 {
		return fmt.Errorf("invalid ocr.timeout_sec: %d (must be positive)", c.OCR.TimeoutSec)
	}

	if c.Storage.Enabled && strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("storage.dir must be set when storage is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	if c.Server.MaxConcurrent < 0 {
		return fmt.Errorf("invalid max concurrent requests: %d (must not be negative)", c.Server.MaxConcurrent)
	}
	if c.Server.RateLimitEnabled {
		if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 ||
			c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
			return fmt.Errorf("rate limits must not be negative")
		}
	}

	return nil
}

// ToScanConfig converts the config to the scan service configuration.
func (c *Config) ToScanConfig() scan.Config {
	cfg := scan.DefaultConfig()
	cfg.Decode.AutoOrient = c.Codec.AutoOrient
	cfg.Decode.MaxPixels = c.Codec.MaxPixels
	if f, err := codec.ParseFormat(c.Codec.DefaultFormat); err == nil {
		cfg.Output.Format = f
	}
	cfg.Output.Quality = c.Codec.JPEGQuality
	cfg.Output.Lossless = c.Codec.WebPLossless
	cfg.Rectify.MaxOutputSide = c.Scan.MaxOutputSide
	cfg.Rectify.Workers = c.Scan.Workers
	cfg.Rectify.DebugDir = c.Scan.DebugDir
	cfg.OCR.Enabled = c.OCR.Enabled
	cfg.OCR.Language = c.OCR.Language
	cfg.OCR.Timeout = time.Duration(c.OCR.TimeoutSec) * time.Second
	return cfg
}

// SlogLevel maps LogLevel and Verbose to a slog level name.
func (c *Config) SlogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return c.LogLevel
}
