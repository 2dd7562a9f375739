package geometry

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

const (
	// collinearTolerance bounds |sin| of the angle spanned by any three corners.
	collinearTolerance = 1e-6
	// coincidentTolerance is relative to the largest corner distance.
	coincidentTolerance = 1e-9
)

// ValidateNormalized checks that exactly four finite points inside [0,1]x[0,1]
// were supplied. It performs no geometry.
func ValidateNormalized(points []Point) error {
	if len(points) != 4 {
		return scanerr.New(scanerr.InvalidInput, "normalize", "need exactly 4 corners, got %d", len(points))
	}
	for i, p := range points {
		if !inUnitRange(p.X) || !inUnitRange(p.Y) {
			return scanerr.New(scanerr.InvalidInput, "normalize",
				"corner %d (%g, %g) outside normalized range [0,1]", i, p.X, p.Y)
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Normalize validates four normalized corners and reorders them into
// [TL, TR, BR, BL]. The result depends only on the set of points, never on
// the order they were given in.
func Normalize(points []Point) (Quad, error) {
	if err := ValidateNormalized(points); err != nil {
		return Quad{}, err
	}
	var pts [4]Point
	copy(pts[:], points)

	ordered, err := Order(pts)
	if err != nil {
		return Quad{}, err
	}
	return Quad(ordered), nil
}

// Order reorders four points of either coordinate space into [TL, TR, BR, BL].
// Points are first classified by the extremes of x+y and x-y. When that does
// not yield four distinct corners forming a convex clockwise polygon, for
// example a document turned by exactly 45 degrees, the points are ordered by
// their angle around the centroid instead. Concave or self-intersecting
// input is rejected as DegenerateGeometry.
func Order(pts [4]Point) ([4]Point, error) {
	// Fix the summation order of every later float computation.
	sort.Slice(pts[:], func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	scale, err := checkCorners(pts)
	if err != nil {
		return [4]Point{}, err
	}

	q, ok := classify(pts)
	if !ok || !isConvexClockwise(q) {
		q = angularOrder(pts)
		if !isConvexClockwise(q) {
			return [4]Point{}, scanerr.New(scanerr.DegenerateGeometry, "normalize",
				"corners do not form a convex quadrilateral")
		}
	}
	if err := checkArea(q, scale); err != nil {
		return [4]Point{}, err
	}
	return q, nil
}

// CheckDegenerate fails with DegenerateGeometry when two corners coincide,
// three corners are collinear, or the enclosed area vanishes. pts must be in
// polygon order.
func CheckDegenerate(pts [4]Point) error {
	scale, err := checkCorners(pts)
	if err != nil {
		return err
	}
	return checkArea(pts, scale)
}

// checkCorners rejects coincident and collinear corners. It does not depend
// on the order of pts and returns the largest corner distance.
func checkCorners(pts [4]Point) (float64, error) {
	scale := 0.0
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			scale = math.Max(scale, dist(pts[i], pts[j]))
		}
	}
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return 0, scanerr.New(scanerr.DegenerateGeometry, "normalize", "corners coincide")
	}
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			if dist(pts[i], pts[j]) <= coincidentTolerance*scale {
				return 0, scanerr.New(scanerr.DegenerateGeometry, "normalize", "corners %d and %d coincide", i, j)
			}
		}
	}
	for skip := range 4 {
		var tri [3]Point
		n := 0
		for i := range 4 {
			if i != skip {
				tri[n] = pts[i]
				n++
			}
		}
		ab := dist(tri[0], tri[1])
		ac := dist(tri[0], tri[2])
		if math.Abs(cross(tri[0], tri[1], tri[2])) <= collinearTolerance*ab*ac {
			return 0, scanerr.New(scanerr.DegenerateGeometry, "normalize", "three corners are collinear")
		}
	}
	return scale, nil
}

func checkArea(q [4]Point, scale float64) error {
	if math.Abs(signedArea(q)) <= coincidentTolerance*scale*scale {
		return scanerr.New(scanerr.DegenerateGeometry, "normalize", "quadrilateral has zero area")
	}
	return nil
}

// classify picks each corner as the extreme of a diagonal projection. Ties
// are broken by coordinates so that equal inputs in any order agree.
func classify(pts [4]Point) ([4]Point, bool) {
	tl, tr, br, bl := 0, 0, 0, 0
	for i := 1; i < 4; i++ {
		p := pts[i]
		if better(p.X+p.Y, pts[tl].X+pts[tl].Y, false, p, pts[tl], upperLeft) {
			tl = i
		}
		if better(p.X+p.Y, pts[br].X+pts[br].Y, true, p, pts[br], lowerRight) {
			br = i
		}
		if better(p.X-p.Y, pts[tr].X-pts[tr].Y, true, p, pts[tr], upperRight) {
			tr = i
		}
		if better(p.X-p.Y, pts[bl].X-pts[bl].Y, false, p, pts[bl], lowerLeft) {
			bl = i
		}
	}
	seen := map[int]bool{tl: true, tr: true, br: true, bl: true}
	if len(seen) != 4 {
		return [4]Point{}, false
	}
	return [4]Point{pts[tl], pts[tr], pts[br], pts[bl]}, true
}

// better reports whether candidate c with score cs beats the incumbent.
func better(cs, is float64, maximize bool, c, inc Point, tie func(a, b Point) bool) bool {
	switch {
	case cs == is:
		return tie(c, inc)
	case maximize:
		return cs > is
	default:
		return cs < is
	}
}

func upperLeft(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func upperRight(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X > b.X
}

func lowerRight(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y > b.Y
	}
	return a.X > b.X
}

func lowerLeft(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y > b.Y
	}
	return a.X < b.X
}

// angularOrder sorts the points clockwise around their centroid and rotates
// the sequence so it starts at the top-left-most point.
func angularOrder(pts [4]Point) [4]Point {
	c := centroid(pts)
	sorted := pts
	sort.Slice(sorted[:], func(i, j int) bool {
		ai := math.Atan2(sorted[i].Y-c.Y, sorted[i].X-c.X)
		aj := math.Atan2(sorted[j].Y-c.Y, sorted[j].X-c.X)
		if ai != aj {
			return ai < aj
		}
		return upperLeft(sorted[i], sorted[j])
	})

	start := 0
	for i := 1; i < 4; i++ {
		si := sorted[i].X + sorted[i].Y
		ss := sorted[start].X + sorted[start].Y
		if si < ss || (si == ss && upperLeft(sorted[i], sorted[start])) {
			start = i
		}
	}
	var out [4]Point
	for i := range 4 {
		out[i] = sorted[(start+i)%4]
	}
	return out
}

// isConvexClockwise reports whether every turn of the closed polygon is a
// clockwise turn in image coordinates, which for four vertices means the
// polygon is simple and convex.
func isConvexClockwise(q [4]Point) bool {
	for i := range 4 {
		if cross(q[i], q[(i+1)%4], q[(i+2)%4]) <= 0 {
			return false
		}
	}
	return signedArea(q) > 0
}
