package rectify

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// background fills destination pixels that map outside the source.
var background = [4]uint8{255, 255, 255, 255}

// Warp resamples the region of src enclosed by quad into a new image of
// exactly frame size, using inverse homography mapping and bilinear
// interpolation. The source is never modified.
func Warp(src image.Image, quad geometry.PixelQuad, frame geometry.Frame) (*image.NRGBA, error) {
	return warpPerspective(src, quad, frame, 0)
}

func warpPerspective(src image.Image, quad geometry.PixelQuad, frame geometry.Frame, workers int) (*image.NRGBA, error) {
	if src == nil {
		return nil, scanerr.New(scanerr.InvalidInput, "rectify", "nil source image")
	}
	if !frame.Valid() {
		return nil, scanerr.New(scanerr.InvalidTargetFrame, "rectify",
			"target frame %dx%d must be positive", frame.Width, frame.Height)
	}
	if err := geometry.CheckDegenerate([4]geometry.Point(quad)); err != nil {
		return nil, err
	}

	// Map destination pixels straight back into the source:
	// (0,0),(W-1,0),(W-1,H-1),(0,H-1) -> TL,TR,BR,BL.
	spanX := float64(max(frame.Width-1, 1))
	spanY := float64(max(frame.Height-1, 1))
	dst := [4]geometry.Point{{X: 0, Y: 0}, {X: spanX, Y: 0}, {X: spanX, Y: spanY}, {X: 0, Y: spanY}}
	h, ok := SolveHomography(dst, [4]geometry.Point(quad))
	if !ok {
		return nil, scanerr.New(scanerr.DegenerateGeometry, "rectify", "homography is singular")
	}

	in := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, frame.Height)
	rowsPer := (frame.Height + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < frame.Height; start += rowsPer {
		end := min(start+rowsPer, frame.Height)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				row := out.Pix[y*out.Stride : y*out.Stride+frame.Width*4]
				for x := range frame.Width {
					sx, sy := h.Apply(float64(x), float64(y))
					px := bilinearSample(in, sx, sy)
					copy(row[x*4:x*4+4], px[:])
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out, nil
}

// edgeTolerance absorbs rounding noise of the homography at the image border.
const edgeTolerance = 1e-6

// bilinearSample interpolates src at (x, y). The image covers the continuous
// extent [0,w]x[0,h]; anything beyond it, or a non-finite coordinate, is
// background.
func bilinearSample(src *image.NRGBA, x, y float64) [4]uint8 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if !(x >= -edgeTolerance && y >= -edgeTolerance &&
		x <= float64(w)+edgeTolerance && y <= float64(h)+edgeTolerance) {
		return background
	}
	x0 := clampInt(int(math.Floor(x)), 0, w-1)
	y0 := clampInt(int(math.Floor(y)), 0, h-1)
	x1 := min(x0+1, w-1)
	y1 := min(y0+1, h-1)
	fx := clamp01(x - float64(x0))
	fy := clamp01(y - float64(y0))

	i00 := y0*src.Stride + x0*4
	i10 := y0*src.Stride + x1*4
	i01 := y1*src.Stride + x0*4
	i11 := y1*src.Stride + x1*4

	var out [4]uint8
	for c := range 4 {
		top := lerp(float64(src.Pix[i00+c]), float64(src.Pix[i10+c]), fx)
		bot := lerp(float64(src.Pix[i01+c]), float64(src.Pix[i11+c]), fx)
		out[c] = uint8(math.Min(255, lerp(top, bot, fy)+0.5))
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
