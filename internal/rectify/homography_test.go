package rectify

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
)

// TestSolveHomography_Identity tests that equal correspondences give identity.
func TestSolveHomography_Identity(t *testing.T) {
	p := [4]geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}

	h, ok := SolveHomography(p, p)
	if !ok {
		t.Fatal("Expected homography computation to succeed")
	}
	for i := range h {
		if math.Abs(h[i]-Identity[i]) > 1e-9 {
			t.Fatalf("Expected identity matrix, got %v", h)
		}
	}
}

// TestSolveHomography_MapsCorrespondences tests a true perspective mapping.
func TestSolveHomography_MapsCorrespondences(t *testing.T) {
	from := [4]geometry.Point{{X: 120, Y: 80}, {X: 700, Y: 40}, {X: 760, Y: 560}, {X: 60, Y: 520}}
	to := [4]geometry.Point{{X: 0, Y: 0}, {X: 639, Y: 0}, {X: 639, Y: 479}, {X: 0, Y: 479}}

	h, ok := SolveHomography(from, to)
	if !ok {
		t.Fatal("Expected homography computation to succeed")
	}
	for i := range from {
		x, y := h.Apply(from[i].X, from[i].Y)
		if math.Abs(x-to[i].X) > 1e-6 || math.Abs(y-to[i].Y) > 1e-6 {
			t.Errorf("corner %d: expected (%f,%f), got (%f,%f)", i, to[i].X, to[i].Y, x, y)
		}
	}
}

// TestSolveHomography_Singular tests that coincident sources are rejected.
func TestSolveHomography_Singular(t *testing.T) {
	from := [4]geometry.Point{{X: 10, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 10}}
	to := [4]geometry.Point{{X: 0, Y: 0}, {X: 99, Y: 0}, {X: 99, Y: 99}, {X: 0, Y: 99}}

	if _, ok := SolveHomography(from, to); ok {
		t.Error("Expected singular system for coincident corners")
	}
}

// TestHomographyInverse tests that the inverse undoes the forward mapping.
func TestHomographyInverse(t *testing.T) {
	from := [4]geometry.Point{{X: 10, Y: 20}, {X: 300, Y: 5}, {X: 320, Y: 250}, {X: 0, Y: 240}}
	to := [4]geometry.Point{{X: 0, Y: 0}, {X: 299, Y: 0}, {X: 299, Y: 239}, {X: 0, Y: 239}}

	h, ok := SolveHomography(from, to)
	if !ok {
		t.Fatal("Expected homography computation to succeed")
	}
	inv, ok := h.Inverse()
	if !ok {
		t.Fatal("Expected invertible homography")
	}
	for _, p := range []geometry.Point{{X: 17, Y: 33}, {X: 150, Y: 120}, {X: 290, Y: 200}} {
		x, y := h.Apply(p.X, p.Y)
		bx, by := inv.Apply(x, y)
		if math.Abs(bx-p.X) > 1e-6 || math.Abs(by-p.Y) > 1e-6 {
			t.Errorf("round trip of (%f,%f) gave (%f,%f)", p.X, p.Y, bx, by)
		}
	}
}

// TestHomographyInverse_Singular tests the zero matrix.
func TestHomographyInverse_Singular(t *testing.T) {
	if _, ok := (Homography{}).Inverse(); ok {
		t.Error("Expected zero matrix to be singular")
	}
}

// TestApply_PointAtInfinity tests a zero denominator.
func TestApply_PointAtInfinity(t *testing.T) {
	h := Identity
	h[8] = 0
	x, y := h.Apply(0, 0)
	if !math.IsNaN(x) || !math.IsNaN(y) {
		t.Errorf("Expected NaN for zero denominator, got (%f,%f)", x, y)
	}
}

// TestSolve8x8 tests the linear solver on a permuted diagonal system.
func TestSolve8x8(t *testing.T) {
	a := [8][8]float64{}
	b := [8]float64{}
	for i := range 8 {
		a[7-i][i] = float64(i + 2)
		b[7-i] = float64((i + 1) * (i + 2))
	}

	x, ok := solve8x8(a, b)
	if !ok {
		t.Fatal("Expected solver to succeed")
	}
	for i := range 8 {
		if math.Abs(x[i]-float64(i+1)) > 1e-9 {
			t.Errorf("x[%d] = %f, want %d", i, x[i], i+1)
		}
	}

	if _, ok := solve8x8([8][8]float64{}, b); ok {
		t.Error("Expected zero matrix to fail")
	}
}
