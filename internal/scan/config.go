package scan

import (
	"time"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/ocr"
	"github.com/MeKo-Tech/flatscan/internal/rectify"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

// Config holds configuration for the scan service and its components.
type Config struct {
	Decode  codec.DecodeOptions
	Rectify rectify.Config
	// Output is used for the fields a request leaves at their zero value.
	// An Auto format here keeps the format of the input image.
	Output codec.EncodeOptions
	OCR    OCRConfig
}

// OCRConfig controls best-effort text extraction.
type OCRConfig struct {
	Enabled  bool
	Language string
	Timeout  time.Duration
}

// DefaultConfig returns a default service config with component defaults.
func DefaultConfig() Config {
	return Config{
		Decode:  codec.DefaultDecodeOptions(),
		Rectify: rectify.DefaultConfig(),
		Output:  codec.EncodeOptions{Format: codec.Auto, Quality: codec.DefaultJPEGQuality},
		OCR: OCRConfig{
			Enabled:  false,
			Language: ocr.DefaultLanguage,
			Timeout:  30 * time.Second,
		},
	}
}

// Builder constructs a Service with fluent configuration.
type Builder struct {
	cfg    Config
	engine ocr.Engine
	store  storage.Store
}

// NewBuilder creates a new service builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithMaxOutputSide caps the longer side of rectified images.
func (b *Builder) WithMaxOutputSide(n int) *Builder {
	b.cfg.Rectify.MaxOutputSide = n
	return b
}

// WithWorkers sets the number of goroutines used by the warp.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Rectify.Workers = n
	return b
}

// WithMaxPixels rejects larger uploads before their pixels are decoded.
func (b *Builder) WithMaxPixels(n int) *Builder {
	b.cfg.Decode.MaxPixels = n
	return b
}

// WithOutput sets the default output encoding.
func (b *Builder) WithOutput(opts codec.EncodeOptions) *Builder {
	b.cfg.Output = opts
	return b
}

// WithOCR enables text extraction with engine.
func (b *Builder) WithOCR(engine ocr.Engine, language string, timeout time.Duration) *Builder {
	b.engine = engine
	b.cfg.OCR.Enabled = engine != nil
	if language != "" {
		b.cfg.OCR.Language = language
	}
	if timeout > 0 {
		b.cfg.OCR.Timeout = timeout
	}
	return b
}

// WithStore enables persistence of results.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

// Config returns the configuration collected so far.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and creates the service.
func (b *Builder) Build() (*Service, error) {
	if b.cfg.Rectify.MaxOutputSide < 0 {
		return nil, errInvalidConfig("max output side must not be negative")
	}
	if b.cfg.Decode.MaxPixels < 0 {
		return nil, errInvalidConfig("max pixels must not be negative")
	}
	if b.cfg.Output.Quality < 0 || b.cfg.Output.Quality > 100 {
		return nil, errInvalidConfig("output quality must be within [0, 100]")
	}
	if _, err := ocr.ParseLanguages(b.cfg.OCR.Language); err != nil {
		return nil, err
	}
	engine := b.engine
	if b.cfg.OCR.Enabled && engine == nil {
		engine = ocr.NewDefaultEngine()
	}
	return &Service{
		cfg:       b.cfg,
		rectifier: rectify.New(b.cfg.Rectify),
		engine:    engine,
		store:     b.store,
	}, nil
}
