package filter

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/flatscan/internal/mempool"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Tuning of the enhance kinds.
const (
	contrastBoost     = 30.0
	sharpenSigma      = 1.0
	adaptiveBias      = 0.15 // pixel is ink when darker than local mean by this fraction
	adaptiveDivisor   = 16   // window side = longer image side / adaptiveDivisor
	adaptiveMinWin    = 7
	magicContrast     = 25.0
	magicBrightness   = 8.0
	magicSaturation   = 35.0
	magicSharpen      = 0.8
	lightenGamma      = 1.4
	lightenBrightness = 10.0
	denoiseRadius     = 1.0
)

func enhance(img image.Image, kind EnhanceKind) (*image.NRGBA, error) {
	switch kind {
	case EnhanceContrast:
		return imaging.AdjustContrast(img, contrastBoost), nil
	case EnhanceSharpen:
		return imaging.Sharpen(img, sharpenSigma), nil
	case EnhanceBW:
		gray := imaging.Grayscale(img)
		return threshold(gray, otsuThreshold(gray)), nil
	case EnhanceAdaptiveBW:
		return adaptiveThreshold(imaging.Grayscale(img)), nil
	case EnhanceMagicColor:
		out := imaging.AdjustContrast(img, magicContrast)
		out = imaging.AdjustBrightness(out, magicBrightness)
		out = imaging.AdjustSaturation(out, magicSaturation)
		return imaging.Sharpen(out, magicSharpen), nil
	case EnhanceLighten:
		out := imaging.AdjustGamma(img, lightenGamma)
		return imaging.AdjustBrightness(out, lightenBrightness), nil
	case EnhanceDenoise:
		return imaging.Clone(effect.Median(img, denoiseRadius)), nil
	default:
		return nil, scanerr.New(scanerr.UnsupportedFilter, "enhance", "unknown enhance kind %q", string(kind))
	}
}

// otsuThreshold picks the gray level that maximizes between-class variance.
// gray must have equal R, G and B.
func otsuThreshold(gray *image.NRGBA) uint8 {
	var hist [256]int
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := range h {
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			hist[row[x*4]]++
		}
	}
	total := w * h
	if total == 0 {
		return 128
	}

	sumAll := 0.0
	for i, n := range hist {
		sumAll += float64(i * n)
	}
	var (
		sumB    float64
		weightB int
		best    float64
		level   int
	)
	for t := range 256 {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sumAll - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}

// threshold maps gray levels <= t to black and the rest to white in place.
func threshold(gray *image.NRGBA, t uint8) *image.NRGBA {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := range h {
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			v := uint8(255)
			if row[x*4] <= t {
				v = 0
			}
			row[x*4], row[x*4+1], row[x*4+2] = v, v, v
		}
	}
	return gray
}

// adaptiveThreshold binarizes against the mean of a square window around
// each pixel, computed from an integral image. It copes with uneven lighting
// where a global threshold fails.
func adaptiveThreshold(gray *image.NRGBA) *image.NRGBA {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w == 0 || h == 0 {
		return gray
	}
	win := max(adaptiveMinWin, max(w, h)/adaptiveDivisor)
	half := win / 2

	integral := mempool.GetUint64((w + 1) * (h + 1))
	defer mempool.PutUint64(integral)
	for y := range h {
		var rowSum uint64
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			rowSum += uint64(row[x*4])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		src := gray.Pix[y*gray.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := range w {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			count := uint64((x1 - x0) * (y1 - y0))
			v := uint8(255)
			if float64(src[x*4])*float64(count) < float64(sum)*(1-adaptiveBias) {
				v = 0
			}
			dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = v, v, v, src[x*4+3]
		}
	}
	return out
}
