package geometry

import (
	"math"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Frame is the pixel size of the rectified output.
type Frame struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are positive.
func (f Frame) Valid() bool { return f.Width > 0 && f.Height > 0 }

// EdgeLengths returns the lengths of the top (TL→TR), right (TR→BR),
// bottom (BR→BL) and left (BL→TL) edges.
func EdgeLengths(q PixelQuad) (top, right, bottom, left float64) {
	top = dist(q[TopLeft], q[TopRight])
	right = dist(q[TopRight], q[BottomRight])
	bottom = dist(q[BottomRight], q[BottomLeft])
	left = dist(q[BottomLeft], q[TopLeft])
	return top, right, bottom, left
}

// SizeFrame sizes the output rectangle from the longer of each pair of
// opposing edges, so perspective foreshortening never shrinks the result.
func SizeFrame(q PixelQuad) (Frame, error) {
	top, right, bottom, left := EdgeLengths(q)
	w := math.Max(top, bottom)
	h := math.Max(left, right)
	if !isFinite(w) || !isFinite(h) {
		return Frame{}, scanerr.New(scanerr.InvalidTargetFrame, "size", "edge lengths are not finite")
	}
	return Frame{Width: max(1, int(math.Round(w))), Height: max(1, int(math.Round(h)))}, nil
}

// Fit scales the frame down uniformly so neither side exceeds maxSide.
// A non-positive maxSide leaves the frame unchanged.
func (f Frame) Fit(maxSide int) Frame {
	if maxSide <= 0 || (f.Width <= maxSide && f.Height <= maxSide) {
		return f
	}
	scale := float64(maxSide) / float64(max(f.Width, f.Height))
	return Frame{
		Width:  max(1, int(math.Round(float64(f.Width)*scale))),
		Height: max(1, int(math.Round(float64(f.Height)*scale))),
	}
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
