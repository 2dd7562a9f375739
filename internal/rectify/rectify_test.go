package rectify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

func TestRectify_Scenario800x600(t *testing.T) {
	r := New(DefaultConfig())
	src := gradient(800, 600)

	res, err := r.Rectify(src, []geometry.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}})
	require.NoError(t, err)
	assert.Equal(t, geometry.Frame{Width: 640, Height: 480}, res.Frame)
	assert.Equal(t, 640, res.Image.Bounds().Dx())
	assert.Equal(t, 480, res.Image.Bounds().Dy())
	assert.Equal(t, geometry.Quad{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}}, res.Corners)
}

func TestRectify_ScrambledIsByteIdentical(t *testing.T) {
	r := New(DefaultConfig())
	src := gradient(800, 600)

	ordered, err := r.Rectify(src, []geometry.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}})
	require.NoError(t, err)
	scrambled, err := r.Rectify(src, []geometry.Point{{X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.1}, {X: 0.1, Y: 0.9}, {X: 0.9, Y: 0.1}})
	require.NoError(t, err)

	assert.Equal(t, ordered.Corners, scrambled.Corners)
	assert.Equal(t, ordered.Image.Pix, scrambled.Image.Pix)
}

func TestRectify_MaxOutputSide(t *testing.T) {
	r := New(Config{MaxOutputSide: 320})
	res, err := r.Rectify(gradient(800, 600), []geometry.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}})
	require.NoError(t, err)
	assert.Equal(t, geometry.Frame{Width: 320, Height: 240}, res.Frame)
}

func TestRectify_FullImageHasNoBackground(t *testing.T) {
	src := gradient(120, 90)
	res, err := New(DefaultConfig()).Rectify(src, []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})
	require.NoError(t, err)
	require.Equal(t, geometry.Frame{Width: 120, Height: 90}, res.Frame)

	last := res.Image.NRGBAAt(119, 89)
	assert.Equal(t, src.NRGBAAt(119, 89), last)
}

func TestRectify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		corners []geometry.Point
		kind    scanerr.Kind
	}{
		{"out of range", []geometry.Point{{X: 1.5, Y: 0.2}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}}, scanerr.InvalidInput},
		{"three corners", []geometry.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}}, scanerr.InvalidInput},
		{"collinear", []geometry.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1, Y: 0}, {X: 0.5, Y: 0.5}}, scanerr.DegenerateGeometry},
	}
	r := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Rectify(gradient(100, 100), tt.corners)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, scanerr.KindOf(err))
		})
	}

	_, err := r.RectifyQuad(nil, geometry.Quad{})
	assert.Equal(t, scanerr.InvalidInput, scanerr.KindOf(err))
}
