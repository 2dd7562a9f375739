// Package filter implements the post-rectification enhancement pipeline.
//
// A pipeline is an ordered list of Spec values folded left to right over an
// image. Spec is a closed set of variants; every variant is a pure function
// of its input image and never mutates it.
package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Spec identifies one filter operation and its parameters.
type Spec interface {
	// Name is the filter type as used on the wire ("grayscale", "rotate", ...).
	Name() string
	// Validate checks parameters that do not depend on the input image.
	Validate() error
	// String renders the filter in compact notation.
	String() string

	isSpec()
}

// Grayscale reduces color to luminance and keeps the channel layout.
type Grayscale struct{}

// Rotate turns the image counter-clockwise about its center by Degrees.
// The canvas grows to hold the rotated image; exposed areas are white.
type Rotate struct {
	Degrees float64
}

// Crop keeps the rectangle at (X, Y) of size Width x Height, in pixels.
type Crop struct {
	X, Y          int
	Width, Height int
}

// Enhance applies one named scanner-look adjustment.
type Enhance struct {
	Kind EnhanceKind
}

// Adjust applies explicit tone corrections. Brightness, Contrast and
// Saturation are percentages in [-100, 100]; Gamma 0 means unchanged.
type Adjust struct {
	Brightness float64
	Contrast   float64
	Gamma      float64
	Saturation float64
}

// Resize shrinks the image to fit MaxWidth x MaxHeight, keeping the aspect
// ratio. It never enlarges. A zero bound is unconstrained.
type Resize struct {
	MaxWidth, MaxHeight int
}

// EnhanceKind names an Enhance transform.
type EnhanceKind string

const (
	EnhanceContrast   EnhanceKind = "contrast"
	EnhanceSharpen    EnhanceKind = "sharpen"
	EnhanceBW         EnhanceKind = "bw"
	EnhanceAdaptiveBW EnhanceKind = "adaptive_bw"
	EnhanceMagicColor EnhanceKind = "magic_color"
	EnhanceLighten    EnhanceKind = "lighten"
	EnhanceDenoise    EnhanceKind = "denoise"
)

// EnhanceKinds lists the supported enhance kinds.
var EnhanceKinds = []EnhanceKind{
	EnhanceContrast, EnhanceSharpen, EnhanceBW, EnhanceAdaptiveBW,
	EnhanceMagicColor, EnhanceLighten, EnhanceDenoise,
}

// Filter type names.
const (
	TypeGrayscale = "grayscale"
	TypeRotate    = "rotate"
	TypeCrop      = "crop"
	TypeEnhance   = "enhance"
	TypeAdjust    = "adjust"
	TypeResize    = "resize"
)

// Types lists the supported filter type names.
var Types = []string{TypeGrayscale, TypeRotate, TypeCrop, TypeEnhance, TypeAdjust, TypeResize}

func (Grayscale) Name() string { return TypeGrayscale }
func (Rotate) Name() string    { return TypeRotate }
func (Crop) Name() string      { return TypeCrop }
func (Enhance) Name() string   { return TypeEnhance }
func (Adjust) Name() string    { return TypeAdjust }
func (Resize) Name() string    { return TypeResize }

func (Grayscale) isSpec() {}
func (Rotate) isSpec()    {}
func (Crop) isSpec()      {}
func (Enhance) isSpec()   {}
func (Adjust) isSpec()    {}
func (Resize) isSpec()    {}

func (Grayscale) Validate() error { return nil }

func (r Rotate) Validate() error {
	if math.IsNaN(r.Degrees) || math.IsInf(r.Degrees, 0) {
		return invalid("rotate: degrees must be finite")
	}
	return nil
}

func (c Crop) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return invalid("crop: width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}

func (e Enhance) Validate() error {
	for _, k := range EnhanceKinds {
		if e.Kind == k {
			return nil
		}
	}
	return scanerr.New(scanerr.UnsupportedFilter, "filter", "unknown enhance kind %q", string(e.Kind))
}

func (a Adjust) Validate() error {
	percentages := []struct {
		name string
		v    float64
	}{
		{"brightness", a.Brightness},
		{"contrast", a.Contrast},
		{"saturation", a.Saturation},
	}
	for _, p := range percentages {
		if math.IsNaN(p.v) || p.v < -100 || p.v > 100 {
			return invalid("adjust: %s %g outside [-100, 100]", p.name, p.v)
		}
	}
	if math.IsNaN(a.Gamma) || math.IsInf(a.Gamma, 0) || a.Gamma < 0 {
		return invalid("adjust: gamma must be positive, got %g", a.Gamma)
	}
	return nil
}

func (r Resize) Validate() error {
	if r.MaxWidth < 0 || r.MaxHeight < 0 {
		return invalid("resize: bounds must not be negative")
	}
	if r.MaxWidth == 0 && r.MaxHeight == 0 {
		return invalid("resize: at least one of max_width and max_height is required")
	}
	return nil
}

func (Grayscale) String() string { return TypeGrayscale }

func (r Rotate) String() string {
	return fmt.Sprintf("%s:%s", TypeRotate, formatFloat(r.Degrees))
}

func (c Crop) String() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d", TypeCrop, c.X, c.Y, c.Width, c.Height)
}

func (e Enhance) String() string { return TypeEnhance + ":" + string(e.Kind) }

func (a Adjust) String() string {
	parts := []string{TypeAdjust}
	add := func(name string, v float64) {
		if v != 0 {
			parts = append(parts, name+"="+formatFloat(v))
		}
	}
	add("brightness", a.Brightness)
	add("contrast", a.Contrast)
	add("gamma", a.Gamma)
	add("saturation", a.Saturation)
	return strings.Join(parts, ":")
}

func (r Resize) String() string {
	return fmt.Sprintf("%s:%d:%d", TypeResize, r.MaxWidth, r.MaxHeight)
}

// Describe renders a filter list in compact notation.
func Describe(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}

func invalid(format string, args ...any) error {
	return scanerr.New(scanerr.InvalidInput, "filter", format, args...)
}
