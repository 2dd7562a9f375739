package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

func TestParse(t *testing.T) {
	data := []byte(`[
		{"type": "grayscale"},
		{"type": "rotate", "degrees": -90},
		{"type": "crop", "x": 0, "y": 5, "width": 100, "height": 50},
		{"type": "enhance", "kind": "BW"},
		{"type": "adjust", "brightness": 10, "gamma": 1.2},
		{"type": "resize", "max_width": 1600}
	]`)
	specs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []Spec{
		Grayscale{},
		Rotate{Degrees: -90},
		Crop{X: 0, Y: 5, Width: 100, Height: 50},
		Enhance{Kind: EnhanceBW},
		Adjust{Brightness: 10, Gamma: 1.2},
		Resize{MaxWidth: 1600},
	}, specs)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind scanerr.Kind
	}{
		{"empty payload", ``, scanerr.InvalidInput},
		{"empty list", `[]`, scanerr.InvalidInput},
		{"not json", `grayscale`, scanerr.InvalidInput},
		{"object instead of list", `{"type":"grayscale"}`, scanerr.InvalidInput},
		{"missing type", `[{"degrees": 90}]`, scanerr.InvalidInput},
		{"unknown type", `[{"type": "sepia"}]`, scanerr.UnsupportedFilter},
		{"unknown enhance kind", `[{"type": "enhance", "kind": "vintage"}]`, scanerr.UnsupportedFilter},
		{"rotate without degrees", `[{"type": "rotate"}]`, scanerr.InvalidInput},
		{"crop missing field", `[{"type": "crop", "x": 0, "y": 0, "width": 10}]`, scanerr.InvalidInput},
		{"crop zero size", `[{"type": "crop", "x": 0, "y": 0, "width": 0, "height": 10}]`, scanerr.InvalidInput},
		{"enhance without kind", `[{"type": "enhance"}]`, scanerr.InvalidInput},
		{"adjust out of range", `[{"type": "adjust", "contrast": 300}]`, scanerr.InvalidInput},
		{"resize without bounds", `[{"type": "resize"}]`, scanerr.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, tt.kind, scanerr.KindOf(err))
		})
	}
}

func TestParseYAML(t *testing.T) {
	preset := []byte(`
name: receipt
description: high contrast black and white
filters:
  - type: grayscale
  - type: enhance
    kind: adaptive_bw
  - type: rotate
    degrees: 90
`)
	specs, err := ParseYAML(preset)
	require.NoError(t, err)
	assert.Equal(t, []Spec{Grayscale{}, Enhance{Kind: EnhanceAdaptiveBW}, Rotate{Degrees: 90}}, specs)

	list := []byte(`
- type: crop
  x: 1
  y: 2
  width: 3
  height: 4
`)
	specs, err = ParseYAML(list)
	require.NoError(t, err)
	assert.Equal(t, []Spec{Crop{X: 1, Y: 2, Width: 3, Height: 4}}, specs)

	_, err = ParseYAML([]byte(`name: empty`))
	assert.Equal(t, scanerr.InvalidInput, scanerr.KindOf(err))
}

func TestParseCompact(t *testing.T) {
	specs, err := ParseCompact("grayscale, rotate:90,crop:0:0:100:50,enhance:bw,adjust:brightness=10:gamma=1.5,resize:1600")
	require.NoError(t, err)
	assert.Equal(t, []Spec{
		Grayscale{},
		Rotate{Degrees: 90},
		Crop{X: 0, Y: 0, Width: 100, Height: 50},
		Enhance{Kind: EnhanceBW},
		Adjust{Brightness: 10, Gamma: 1.5},
		Resize{MaxWidth: 1600},
	}, specs)
}

func TestParseCompact_Errors(t *testing.T) {
	tests := []struct {
		in   string
		kind scanerr.Kind
	}{
		{"", scanerr.InvalidInput},
		{"rotate", scanerr.InvalidInput},
		{"rotate:abc", scanerr.InvalidInput},
		{"crop:1:2:3", scanerr.InvalidInput},
		{"crop:a:2:3:4", scanerr.InvalidInput},
		{"adjust:brightness", scanerr.InvalidInput},
		{"adjust:hue=3", scanerr.InvalidInput},
		{"resize:1:2:3", scanerr.InvalidInput},
		{"grayscale:1", scanerr.InvalidInput},
		{"posterize", scanerr.UnsupportedFilter},
		{"enhance:vintage", scanerr.UnsupportedFilter},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseCompact(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, scanerr.KindOf(err))
		})
	}
}

func TestDescribeRoundTrip(t *testing.T) {
	specs := []Spec{
		Grayscale{},
		Rotate{Degrees: 12.5},
		Crop{X: 1, Y: 2, Width: 3, Height: 4},
		Enhance{Kind: EnhanceMagicColor},
		Adjust{Contrast: -20, Saturation: 15},
		Resize{MaxWidth: 800, MaxHeight: 600},
	}
	compact := Describe(specs)
	assert.Equal(t, "grayscale,rotate:12.5,crop:1:2:3:4,enhance:magic_color,adjust:contrast=-20:saturation=15,resize:800:600", compact)

	back, err := ParseCompact(compact)
	require.NoError(t, err)
	assert.Equal(t, specs, back)
}

func TestToRaw(t *testing.T) {
	specs := []Spec{Rotate{Degrees: 90}, Crop{X: 1, Y: 2, Width: 3, Height: 4}, Enhance{Kind: EnhanceSharpen}}
	data, err := json.Marshal(ToRaw(specs))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"rotate","degrees":90},
		{"type":"crop","x":1,"y":2,"width":3,"height":4},
		{"type":"enhance","kind":"sharpen"}
	]`, string(data))

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, specs, back)
}
