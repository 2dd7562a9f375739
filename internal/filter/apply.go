package filter

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// StageFunc observes each completed stage. It must not retain img.
type StageFunc func(index int, spec Spec, img *image.NRGBA)

// Apply folds specs over img from left to right. All specs are validated
// before any pixel work starts, and ctx is checked between stages. The input
// image is never modified.
func Apply(ctx context.Context, img image.Image, specs []Spec) (*image.NRGBA, error) {
	return ApplyObserved(ctx, img, specs, nil)
}

// ApplyObserved is Apply with a callback after every stage.
func ApplyObserved(ctx context.Context, img image.Image, specs []Spec, observe StageFunc) (*image.NRGBA, error) {
	if img == nil {
		return nil, invalid("nil image")
	}
	if len(specs) == 0 {
		return nil, invalid("empty filter list")
	}
	for i, s := range specs {
		if s == nil {
			return nil, scanerr.New(scanerr.UnsupportedFilter, "filter", "filter %d is empty", i)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
	}

	cur := img
	var out *image.NRGBA
	for i, s := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		out, err = ApplyOne(cur, s)
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", i, s.Name(), err)
		}
		if observe != nil {
			observe(i, s, out)
		}
		cur = out
	}
	return out, nil
}

// ApplyOne runs a single filter and returns a new image.
func ApplyOne(img image.Image, s Spec) (*image.NRGBA, error) {
	if img == nil {
		return nil, invalid("nil image")
	}
	switch f := s.(type) {
	case Grayscale:
		return imaging.Grayscale(img), nil
	case Rotate:
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return rotate(img, f.Degrees), nil
	case Crop:
		return crop(img, f)
	case Enhance:
		return enhance(img, f.Kind)
	case Adjust:
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return adjust(img, f), nil
	case Resize:
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return resize(img, f), nil
	default:
		return nil, scanerr.New(scanerr.UnsupportedFilter, "filter", "unsupported filter %T", s)
	}
}

// NormalizeDegrees maps any finite angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func rotate(img image.Image, degrees float64) *image.NRGBA {
	return imaging.Rotate(img, NormalizeDegrees(degrees), color.White)
}

func crop(img image.Image, c Crop) (*image.NRGBA, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if c.X < 0 || c.Y < 0 || c.Width > b.Dx()-c.X || c.Height > b.Dy()-c.Y {
		return nil, scanerr.New(scanerr.OutOfBounds, "crop",
			"rectangle (%d,%d %dx%d) exceeds %dx%d image", c.X, c.Y, c.Width, c.Height, b.Dx(), b.Dy())
	}
	r := image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height).Add(b.Min)
	return imaging.Crop(img, r), nil
}

func adjust(img image.Image, a Adjust) *image.NRGBA {
	out := imaging.Clone(img)
	if a.Gamma != 0 && a.Gamma != 1 {
		out = imaging.AdjustGamma(out, a.Gamma)
	}
	if a.Contrast != 0 {
		out = imaging.AdjustContrast(out, a.Contrast)
	}
	if a.Brightness != 0 {
		out = imaging.AdjustBrightness(out, a.Brightness)
	}
	if a.Saturation != 0 {
		out = imaging.AdjustSaturation(out, a.Saturation)
	}
	return out
}

func resize(img image.Image, r Resize) *image.NRGBA {
	b := img.Bounds()
	maxW, maxH := r.MaxWidth, r.MaxHeight
	if maxW == 0 {
		maxW = b.Dx()
	}
	if maxH == 0 {
		maxH = b.Dy()
	}
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}
