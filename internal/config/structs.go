//nolint:lll
package config

// Config represents the complete configuration for flatscan. It covers every
// command (rectify, filter, serve) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Image decoding and encoding
	Codec CodecConfig `mapstructure:"codec" yaml:"codec" json:"codec"`

	// Rectification
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// Text extraction
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Result persistence
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// CodecConfig contains image codec settings.
type CodecConfig struct {
	AutoOrient    bool   `mapstructure:"auto_orient" yaml:"auto_orient" json:"auto_orient"`
	MaxPixels     int    `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format" json:"default_format"`
	JPEGQuality   int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	WebPLossless  bool   `mapstructure:"webp_lossless" yaml:"webp_lossless" json:"webp_lossless"`
}

// ScanConfig contains rectification settings.
type ScanConfig struct {
	MaxOutputSide int    `mapstructure:"max_output_side" yaml:"max_output_side" json:"max_output_side"`
	Workers       int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	DebugDir      string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// OCRConfig contains text extraction settings.
type OCRConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Language   string `mapstructure:"language" yaml:"language" json:"language"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// StorageConfig contains result persistence settings.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxConcurrent   int    `mapstructure:"max_concurrent" yaml:"max_concurrent" json:"max_concurrent"`

	// Rate limiting
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}
