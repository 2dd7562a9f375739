package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Raw is the wire form of a filter: a type tag plus the union of all
// parameters. It is only used at the edges; the pipeline works on Spec.
type Raw struct {
	Type       string   `json:"type" yaml:"type"`
	Degrees    *float64 `json:"degrees,omitempty" yaml:"degrees,omitempty"`
	X          *int     `json:"x,omitempty" yaml:"x,omitempty"`
	Y          *int     `json:"y,omitempty" yaml:"y,omitempty"`
	Width      *int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height     *int     `json:"height,omitempty" yaml:"height,omitempty"`
	Kind       string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Brightness float64  `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	Contrast   float64  `json:"contrast,omitempty" yaml:"contrast,omitempty"`
	Gamma      float64  `json:"gamma,omitempty" yaml:"gamma,omitempty"`
	Saturation float64  `json:"saturation,omitempty" yaml:"saturation,omitempty"`
	MaxWidth   int      `json:"max_width,omitempty" yaml:"max_width,omitempty"`
	MaxHeight  int      `json:"max_height,omitempty" yaml:"max_height,omitempty"`
}

// Preset is a named, reusable filter list as stored in YAML files.
type Preset struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Filters     []Raw  `yaml:"filters"`
}

// Parse decodes a JSON array of filters and validates every entry.
func Parse(data []byte) ([]Spec, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, invalid("empty filter list")
	}
	var raws []Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, scanerr.Wrap(scanerr.InvalidInput, "filter", fmt.Errorf("decode filters: %w", err))
	}
	return FromRaw(raws)
}

// ParseYAML decodes either a bare YAML list of filters or a Preset document.
func ParseYAML(data []byte) ([]Spec, error) {
	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err == nil && len(preset.Filters) > 0 {
		return FromRaw(preset.Filters)
	}
	var raws []Raw
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, scanerr.Wrap(scanerr.InvalidInput, "filter", fmt.Errorf("decode filter preset: %w", err))
	}
	return FromRaw(raws)
}

// FromRaw converts wire filters into validated specs, preserving order.
func FromRaw(raws []Raw) ([]Spec, error) {
	if len(raws) == 0 {
		return nil, invalid("empty filter list")
	}
	specs := make([]Spec, 0, len(raws))
	for i, r := range raws {
		s, err := r.Spec()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Spec converts a single wire filter.
func (r Raw) Spec() (Spec, error) {
	var s Spec
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case TypeGrayscale:
		s = Grayscale{}
	case TypeRotate:
		if r.Degrees == nil {
			return nil, invalid("rotate: degrees is required")
		}
		s = Rotate{Degrees: *r.Degrees}
	case TypeCrop:
		if r.X == nil || r.Y == nil || r.Width == nil || r.Height == nil {
			return nil, invalid("crop: x, y, width and height are required")
		}
		s = Crop{X: *r.X, Y: *r.Y, Width: *r.Width, Height: *r.Height}
	case TypeEnhance:
		if r.Kind == "" {
			return nil, invalid("enhance: kind is required")
		}
		s = Enhance{Kind: EnhanceKind(strings.ToLower(r.Kind))}
	case TypeAdjust:
		s = Adjust{Brightness: r.Brightness, Contrast: r.Contrast, Gamma: r.Gamma, Saturation: r.Saturation}
	case TypeResize:
		s = Resize{MaxWidth: r.MaxWidth, MaxHeight: r.MaxHeight}
	case "":
		return nil, invalid("filter type is required")
	default:
		return nil, scanerr.New(scanerr.UnsupportedFilter, "filter", "unknown filter type %q", r.Type)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ToRaw converts specs back to their wire form.
func ToRaw(specs []Spec) []Raw {
	out := make([]Raw, 0, len(specs))
	for _, s := range specs {
		r := Raw{Type: s.Name()}
		switch f := s.(type) {
		case Rotate:
			r.Degrees = &f.Degrees
		case Crop:
			r.X, r.Y, r.Width, r.Height = &f.X, &f.Y, &f.Width, &f.Height
		case Enhance:
			r.Kind = string(f.Kind)
		case Adjust:
			r.Brightness, r.Contrast, r.Gamma, r.Saturation = f.Brightness, f.Contrast, f.Gamma, f.Saturation
		case Resize:
			r.MaxWidth, r.MaxHeight = f.MaxWidth, f.MaxHeight
		}
		out = append(out, r)
	}
	return out
}

// ParseCompact parses the command-line notation, e.g.
// "grayscale,rotate:90,crop:0:0:100:50,enhance:bw,adjust:brightness=10,resize:1600".
func ParseCompact(s string) ([]Spec, error) {
	var raws []Raw
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		r, err := parseCompactItem(item)
		if err != nil {
			return nil, err
		}
		raws = append(raws, r)
	}
	return FromRaw(raws)
}

func parseCompactItem(item string) (Raw, error) {
	fields := strings.Split(item, ":")
	r := Raw{Type: strings.ToLower(fields[0])}
	args := fields[1:]

	switch r.Type {
	case TypeRotate:
		if len(args) != 1 {
			return r, invalid("rotate expects rotate:<degrees>, got %q", item)
		}
		d, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return r, invalid("rotate: bad degrees %q", args[0])
		}
		r.Degrees = &d
	case TypeCrop:
		if len(args) != 4 {
			return r, invalid("crop expects crop:<x>:<y>:<width>:<height>, got %q", item)
		}
		vals, err := atoiAll(args)
		if err != nil {
			return r, invalid("crop: %v", err)
		}
		r.X, r.Y, r.Width, r.Height = &vals[0], &vals[1], &vals[2], &vals[3]
	case TypeEnhance:
		if len(args) != 1 {
			return r, invalid("enhance expects enhance:<kind>, got %q", item)
		}
		r.Kind = args[0]
	case TypeAdjust:
		for _, kv := range args {
			name, val, ok := strings.Cut(kv, "=")
			if !ok {
				return r, invalid("adjust expects name=value pairs, got %q", kv)
			}
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return r, invalid("adjust: bad value %q", val)
			}
			switch name {
			case "brightness":
				r.Brightness = v
			case "contrast":
				r.Contrast = v
			case "gamma":
				r.Gamma = v
			case "saturation":
				r.Saturation = v
			default:
				return r, invalid("adjust: unknown parameter %q", name)
			}
		}
	case TypeResize:
		if len(args) < 1 || len(args) > 2 {
			return r, invalid("resize expects resize:<max_width>[:<max_height>], got %q", item)
		}
		vals, err := atoiAll(args)
		if err != nil {
			return r, invalid("resize: %v", err)
		}
		r.MaxWidth = vals[0]
		if len(vals) == 2 {
			r.MaxHeight = vals[1]
		}
	default:
		if len(args) != 0 && r.Type == TypeGrayscale {
			return r, invalid("grayscale takes no arguments")
		}
	}
	return r, nil
}

func atoiAll(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", a)
		}
		out[i] = v
	}
	return out, nil
}
