package geometry

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeFrame_Scenario(t *testing.T) {
	q, err := Normalize([]Point{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.9}, {0.1, 0.9}})
	require.NoError(t, err)

	f, err := SizeFrame(q.ToPixels(800, 600))
	require.NoError(t, err)
	assert.Equal(t, Frame{Width: 640, Height: 480}, f)
}

func TestSizeFrame_UsesLongerEdge(t *testing.T) {
	// Top edge 200 px, bottom edge 300 px, left 100 px, right ~111.8 px.
	q := PixelQuad{{100, 0}, {300, 0}, {350, 100}, {50, 100}}
	f, err := SizeFrame(q)
	require.NoError(t, err)
	assert.Equal(t, 300, f.Width)
	assert.Equal(t, int(math.Round(math.Hypot(50, 100))), f.Height)
}

func TestSizeFrame_MinimumOne(t *testing.T) {
	q := PixelQuad{{0, 0}, {0.2, 0}, {0.2, 0.3}, {0, 0.3}}
	f, err := SizeFrame(q)
	require.NoError(t, err)
	assert.Equal(t, Frame{Width: 1, Height: 1}, f)
}

func TestSizeFrame_NotFinite(t *testing.T) {
	q := PixelQuad{{0, 0}, {math.Inf(1), 0}, {10, 10}, {0, 10}}
	_, err := SizeFrame(q)
	require.Error(t, err)
}

func TestEdgeLengths(t *testing.T) {
	top, right, bottom, left := EdgeLengths(PixelQuad{{0, 0}, {4, 0}, {4, 3}, {0, 3}})
	assert.InDelta(t, 4, top, 1e-12)
	assert.InDelta(t, 3, right, 1e-12)
	assert.InDelta(t, 4, bottom, 1e-12)
	assert.InDelta(t, 3, left, 1e-12)
}

func TestFrameFit(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		maxSide int
		want    Frame
	}{
		{"no cap", Frame{4000, 3000}, 0, Frame{4000, 3000}},
		{"within cap", Frame{640, 480}, 1000, Frame{640, 480}},
		{"landscape", Frame{4000, 3000}, 2000, Frame{2000, 1500}},
		{"portrait", Frame{1000, 3000}, 1500, Frame{500, 1500}},
		{"sliver keeps one pixel", Frame{5000, 2}, 100, Frame{100, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frame.Fit(tt.maxSide))
		})
	}
}

// rotatedRect returns the corners of a w x h rectangle centred at (cx, cy)
// rotated by theta radians.
func rotatedRect(cx, cy, w, h, theta float64) [4]Point {
	s, c := math.Sin(theta), math.Cos(theta)
	local := [4]Point{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}}
	var out [4]Point
	for i, p := range local {
		out[i] = Point{X: cx + p.X*c - p.Y*s, Y: cy + p.X*s + p.Y*c}
	}
	return out
}

func TestSizeFrame_AspectPreservedUnderRotation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rotated rectangle keeps its aspect ratio", prop.ForAll(
		func(w, h, deg float64) bool {
			pts := rotatedRect(1000, 1000, w, h, deg*math.Pi/180)
			ordered, err := Order(pts)
			if err != nil {
				return false
			}
			top, right, bottom, left := EdgeLengths(PixelQuad(ordered))
			edgeRatio := math.Max(top, bottom) / math.Max(left, right)
			if math.Abs(edgeRatio-w/h) > 1e-9*w/h {
				return false
			}
			f, err := SizeFrame(PixelQuad(ordered))
			if err != nil {
				return false
			}
			return math.Abs(float64(f.Width)-w) <= 0.5+1e-9 && math.Abs(float64(f.Height)-h) <= 0.5+1e-9
		},
		gen.Float64Range(50, 800),
		gen.Float64Range(50, 800),
		gen.Float64Range(-40, 40),
	))

	properties.TestingRun(t)
}

// genQuad generates a slightly perspective-distorted rectangle that fits in
// the unit square, returned in canonical order.
func genQuad() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0.4, 0.6),
		gen.Float64Range(0.4, 0.6),
		gen.Float64Range(0.05, 0.2),
		gen.Float64Range(0.05, 0.2),
		gen.Float64Range(-math.Pi, math.Pi),
		gen.SliceOfN(8, gen.Float64Range(-0.01, 0.01)),
	).Map(func(vals []interface{}) [4]Point {
		cx, cy := vals[0].(float64), vals[1].(float64)
		hw, hh := vals[2].(float64), vals[3].(float64)
		pts := rotatedRect(cx, cy, 2*hw, 2*hh, vals[4].(float64))
		jitter := vals[5].([]float64)
		for i := range pts {
			pts[i].X += jitter[2*i]
			pts[i].Y += jitter[2*i+1]
		}
		return pts
	})
}

func TestNormalize_PermutationInvariantProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every permutation yields the same canonical quad", prop.ForAll(
		func(pts [4]Point) bool {
			perms := permutations(pts)
			want, err := Normalize(perms[0])
			if err != nil || !isConvexClockwise(want) {
				return false
			}
			for _, p := range perms[1:] {
				got, err := Normalize(p)
				if err != nil || got != want {
					return false
				}
			}
			return true
		},
		genQuad(),
	))

	properties.TestingRun(t)
}
