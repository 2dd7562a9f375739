// Package geometry turns four user-marked document corners into a canonical
// quadrilateral and derives the rectangle the document is rectified into.
//
// Two coordinate spaces are used. Quad holds normalized coordinates
// (fractions of the image width and height) and PixelQuad holds absolute
// pixel coordinates. The only way from one to the other is Quad.ToPixels.
package geometry

import "math"

// Point is a 2-D point. Its space is given by the container it lives in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a quadrilateral in normalized coordinates ordered [TL, TR, BR, BL].
type Quad [4]Point

// PixelQuad is a quadrilateral in pixel coordinates ordered [TL, TR, BR, BL].
type PixelQuad [4]Point

// Corner indices into Quad and PixelQuad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// ToPixels scales the normalized quad to an image of the given size.
func (q Quad) ToPixels(width, height int) PixelQuad {
	w, h := float64(width), float64(height)
	var p PixelQuad
	for i, pt := range q {
		p[i] = Point{X: pt.X * w, Y: pt.Y * h}
	}
	return p
}

// Points returns the corners as a slice.
func (q Quad) Points() []Point { return append([]Point(nil), q[:]...) }

// Points returns the corners as a slice.
func (p PixelQuad) Points() []Point { return append([]Point(nil), p[:]...) }

func dist(a, b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// signedArea is the shoelace area; positive means clockwise with y pointing down.
func signedArea(pts [4]Point) float64 {
	s := 0.0
	for i := range 4 {
		j := (i + 1) % 4
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return s / 2
}

func centroid(pts [4]Point) Point {
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}
