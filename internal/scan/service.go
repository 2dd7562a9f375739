// Package scan implements the two document operations: rectifying a
// photographed page and running a filter pipeline over an image. It glues
// the codec, geometry, rectify and filter packages together and adds
// best-effort OCR and optional persistence on top.
package scan

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/common"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/ocr"
	"github.com/MeKo-Tech/flatscan/internal/rectify"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

// Service runs scan operations. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	cfg       Config
	rectifier *rectify.Rectifier
	engine    ocr.Engine
	store     storage.Store
}

// New creates a service from cfg without OCR or storage.
func New(cfg Config) (*Service, error) {
	return NewBuilder().WithConfig(cfg).Build()
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// OCREnabled reports whether text extraction can run.
func (s *Service) OCREnabled() bool { return s.cfg.OCR.Enabled && s.engine != nil }

// StorageEnabled reports whether results can be persisted.
func (s *Service) StorageEnabled() bool { return s.store != nil }

func errInvalidConfig(msg string) error {
	return scanerr.New(scanerr.InvalidInput, "scan", "%s", msg)
}

// RectifyPerspective decodes req.Image, maps the document bounded by
// req.Corners onto an upright rectangle and encodes the result. Corners and
// filters are validated before the image is decoded.
func (s *Service) RectifyPerspective(ctx context.Context, req RectifyRequest) (*Result, error) {
	timings := &common.Timings{}

	if err := geometry.ValidateNormalized(req.Corners); err != nil {
		return nil, err
	}
	if err := validateFilters(req.Filters, false); err != nil {
		return nil, err
	}
	if err := validateOutput(req.Output); err != nil {
		return nil, err
	}

	decoded, err := s.decode(ctx, req.Image, req.FormatHint, timings)
	if err != nil {
		return nil, err
	}

	stop := timings.Track("normalize")
	quad, err := geometry.Normalize(req.Corners)
	stop()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop = timings.Track("warp")
	rect, err := s.rectifier.RectifyQuad(decoded.Image, quad)
	stop()
	if err != nil {
		return nil, err
	}

	img := rect.Image
	if len(req.Filters) > 0 {
		if img, err = s.filter(ctx, img, req.Filters, timings); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Operation: OpRectify,
		Frame:     &rect.Frame,
		Corners:   &rect.Corners,
		Filters:   filter.Describe(req.Filters),
		Timings:   timings,
	}
	if rect.DebugErr != nil {
		res.DebugError = rect.DebugErr.Error()
	}
	if err := s.finish(ctx, res, img, decoded.Format, req.Output, req.OCR, req.Persist); err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyFilters decodes req.Image, runs req.Filters over it from left to
// right and encodes the result.
func (s *Service) ApplyFilters(ctx context.Context, req FilterRequest) (*Result, error) {
	timings := &common.Timings{}

	if err := validateFilters(req.Filters, true); err != nil {
		return nil, err
	}
	if err := validateOutput(req.Output); err != nil {
		return nil, err
	}

	decoded, err := s.decode(ctx, req.Image, req.FormatHint, timings)
	if err != nil {
		return nil, err
	}
	img, err := s.filter(ctx, decoded.Image, req.Filters, timings)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Operation: OpFilters,
		Filters:   filter.Describe(req.Filters),
		Timings:   timings,
	}
	if err := s.finish(ctx, res, img, decoded.Format, req.Output, req.OCR, req.Persist); err != nil {
		return nil, err
	}
	return res, nil
}

func validateFilters(specs []filter.Spec, required bool) error {
	if required && len(specs) == 0 {
		return scanerr.New(scanerr.InvalidInput, "filter", "empty filter list")
	}
	for i, f := range specs {
		if f == nil {
			return scanerr.New(scanerr.UnsupportedFilter, "filter", "filter %d is empty", i)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}

func validateOutput(opts codec.EncodeOptions) error {
	if opts.Quality < 0 || opts.Quality > 100 {
		return scanerr.New(scanerr.InvalidInput, "encode", "quality %d outside [1, 100]", opts.Quality)
	}
	return nil
}

func (s *Service) decode(ctx context.Context, data []byte, hint string, timings *common.Timings) (*codec.Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer timings.Track("decode")()
	return codec.DecodeWith(data, hint, s.cfg.Decode)
}

func (s *Service) filter(ctx context.Context, img image.Image, specs []filter.Spec, timings *common.Timings) (*image.NRGBA, error) {
	defer timings.Track("filters")()
	return filter.Apply(ctx, img, specs)
}

// outputOptions fills the zero fields of opts from the configured defaults.
// When neither names a format the input format is kept.
func (s *Service) outputOptions(opts codec.EncodeOptions, input codec.Format) codec.EncodeOptions {
	if opts.Format == codec.Auto {
		opts.Format = s.cfg.Output.Format
	}
	if opts.Format == codec.Auto {
		opts.Format = input
	}
	if opts.Quality == 0 {
		opts.Quality = s.cfg.Output.Quality
	}
	if !opts.Lossless && opts.Format == codec.WebP {
		opts.Lossless = s.cfg.Output.Lossless
	}
	return opts
}

// finish encodes img into res and runs the optional OCR and persistence
// steps. Only encoding can fail the operation.
func (s *Service) finish(ctx context.Context, res *Result, img *image.NRGBA, input codec.Format,
	out codec.EncodeOptions, ocrOpts *OCROptions, persist bool,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := s.outputOptions(out, input)

	stop := res.Timings.Track("encode")
	data, err := codec.Encode(img, opts)
	stop()
	if err != nil {
		return err
	}

	b := img.Bounds()
	res.Success = true
	res.Image = data
	res.Format = opts.Format
	res.ContentType = opts.Format.ContentType()
	res.Width, res.Height = b.Dx(), b.Dy()

	if ocrOpts != nil {
		s.extractText(ctx, res, img, *ocrOpts)
	}
	if persist {
		s.persist(ctx, res)
	}
	return nil
}

func (s *Service) extractText(ctx context.Context, res *Result, img image.Image, opts OCROptions) {
	if !s.OCREnabled() {
		res.OCRStatus = ocr.StatusSkipped
		return
	}
	lang := opts.Language
	if lang == "" {
		lang = s.cfg.OCR.Language
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.OCR.Timeout
	}

	stop := res.Timings.Track("ocr")
	outcome := ocr.Extract(ctx, s.engine, img, lang, timeout)
	stop()

	res.Text = outcome.Text
	res.OCRStatus = outcome.Status
	res.OCRLanguages = outcome.Languages
}

func (s *Service) persist(ctx context.Context, res *Result) {
	if s.store == nil {
		res.StorageError = "storage is disabled"
		return
	}
	defer res.Timings.Track("store")()

	key := storage.NewKey()
	meta := storage.Metadata{
		Format:      string(res.Format),
		ContentType: res.ContentType,
		Extension:   res.Format.Extension(),
		Width:       res.Width,
		Height:      res.Height,
		Operation:   res.Operation,
		Filters:     res.Filters,
		Text:        res.Text,
	}
	if err := s.store.Put(ctx, key, res.Image, meta); err != nil {
		res.StorageError = err.Error()
		return
	}
	res.StorageKey = key
}
