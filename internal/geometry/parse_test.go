package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

func TestParseCorners(t *testing.T) {
	want := []Point{{0.1, 0.2}, {0.9, 0.1}, {0.8, 0.9}, {0.15, 0.85}}
	inputs := map[string]string{
		"pairs":   `[[0.1,0.2],[0.9,0.1],[0.8,0.9],[0.15,0.85]]`,
		"objects": `[{"x":0.1,"y":0.2},{"x":0.9,"y":0.1},{"x":0.8,"y":0.9},{"x":0.15,"y":0.85}]`,
		"list":    "0.1,0.2;0.9,0.1;0.8,0.9;0.15,0.85",
		"spaced":  " 0.1, 0.2 ; 0.9,0.1;0.8 ,0.9;0.15,0.85; ",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := ParseCorners(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseCorners_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"[[0.1]]",
		`[{"x":0.1}]`,
		`[{"x":0.1,"y":0.2,"z":1}]`,
		"[not json",
		"0.1;0.2",
		"a,b",
	} {
		_, err := ParseCorners(in)
		require.Error(t, err, in)
		assert.True(t, scanerr.Is(err, scanerr.InvalidInput), in)
	}
}

func TestParseCorners_CountLeftToValidation(t *testing.T) {
	pts, err := ParseCorners("0.1,0.1;0.9,0.1;0.9,0.9")
	require.NoError(t, err)
	assert.Len(t, pts, 3)
	assert.True(t, scanerr.Is(ValidateNormalized(pts), scanerr.InvalidInput))
}
