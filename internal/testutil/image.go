package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
)

// ImageSize represents image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	PhotoSize  = ImageSize{800, 600}
)

var (
	PaperWhite = color.NRGBA{250, 250, 246, 255}
	InkBlack   = color.NRGBA{20, 20, 24, 255}
	TableBrown = color.NRGBA{92, 64, 40, 255}
)

// PageConfig describes a synthetic document page.
type PageConfig struct {
	Size       ImageSize
	Lines      []string
	Paper      color.Color
	Ink        color.Color
	Face       font.Face
	BorderSize int // dark frame drawn inside the page edge, 0 for none
}

// DefaultPageConfig returns a small receipt-like page.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:       MediumSize,
		Lines:      []string{"FLATSCAN TEST RECEIPT", "Coffee      3.20", "Bagel       2.80", "TOTAL       6.00"},
		Paper:      PaperWhite,
		Ink:        InkBlack,
		Face:       basicfont.Face7x13,
		BorderSize: 4,
	}
}

// DocumentPage renders cfg.Lines onto a plain page.
func DocumentPage(cfg PageConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Paper}, image.Point{}, draw.Src)

	if b := cfg.BorderSize; b > 0 {
		ink := &image.Uniform{cfg.Ink}
		w, h := cfg.Size.Width, cfg.Size.Height
		draw.Draw(img, image.Rect(b, b, w-b, 2*b), ink, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(b, h-2*b, w-b, h-b), ink, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(b, b, 2*b, h-b), ink, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(w-2*b, b, w-b, h-b), ink, image.Point{}, draw.Src)
	}

	if len(cfg.Lines) == 0 || cfg.Face == nil {
		return img
	}
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{cfg.Ink}, Face: cfg.Face}
	lineHeight := cfg.Face.Metrics().Height.Ceil() * 2
	y := (cfg.Size.Height-len(cfg.Lines)*lineHeight)/2 + lineHeight
	for _, line := range cfg.Lines {
		x := (cfg.Size.Width - font.MeasureString(cfg.Face, line).Ceil()) / 2
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
		y += lineHeight
	}
	return img
}

// DocumentPhoto projects page onto a canvas of the given size so that its
// corners land on the normalized TL, TR, BR, BL positions in corners.
// Everything outside the page is filled with background.
func DocumentPhoto(page image.Image, canvas ImageSize, corners [4]geometry.Point, background color.Color) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(out, out.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	var quad [4]geometry.Point
	for i, c := range corners {
		quad[i] = geometry.Point{X: c.X * float64(canvas.Width), Y: c.Y * float64(canvas.Height)}
	}
	inv, ok := squareToQuad(quad).inverse()
	if !ok {
		return out
	}

	src := imaging.Clone(page)
	pw, ph := src.Bounds().Dx(), src.Bounds().Dy()
	for y := 0; y < canvas.Height; y++ {
		for x := 0; x < canvas.Width; x++ {
			u, v, ok := inv.apply(float64(x)+0.5, float64(y)+0.5)
			if !ok || u < 0 || u >= 1 || v < 0 || v >= 1 {
				continue
			}
			sx, sy := int(u*float64(pw)), int(v*float64(ph))
			out.SetNRGBA(x, y, src.NRGBAAt(sx, sy))
		}
	}
	return out
}

// projective is a 3x3 matrix in row-major order.
type projective [9]float64

// squareToQuad maps the unit square (0,0),(1,0),(1,1),(0,1) onto q.
func squareToQuad(q [4]geometry.Point) projective {
	dx1, dy1 := q[1].X-q[2].X, q[1].Y-q[2].Y
	dx2, dy2 := q[3].X-q[2].X, q[3].Y-q[2].Y
	dx3 := q[0].X - q[1].X + q[2].X - q[3].X
	dy3 := q[0].Y - q[1].Y + q[2].Y - q[3].Y

	den := dx1*dy2 - dx2*dy1
	if den == 0 {
		return projective{}
	}
	g := (dx3*dy2 - dx2*dy3) / den
	h := (dx1*dy3 - dx3*dy1) / den
	return projective{
		q[1].X - q[0].X + g*q[1].X, q[3].X - q[0].X + h*q[3].X, q[0].X,
		q[1].Y - q[0].Y + g*q[1].Y, q[3].Y - q[0].Y + h*q[3].Y, q[0].Y,
		g, h, 1,
	}
}

func (m projective) inverse() (projective, bool) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]
	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if math.Abs(det) < 1e-12 {
		return projective{}, false
	}
	return projective{
		(e*i - f*h) / det, (c*h - b*i) / det, (b*f - c*e) / det,
		(f*g - d*i) / det, (a*i - c*g) / det, (c*d - a*f) / det,
		(d*h - e*g) / det, (b*g - a*h) / det, (a*e - b*d) / det,
	}, true
}

func (m projective) apply(x, y float64) (float64, float64, bool) {
	w := m[6]*x + m[7]*y + m[8]
	if w == 0 {
		return 0, 0, false
	}
	return (m[0]*x + m[1]*y + m[2]) / w, (m[3]*x + m[4]*y + m[5]) / w, true
}

// Gradient returns a w×h image whose colour varies with position, useful for
// checking that pixels land where expected.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
}

// LoadImage decodes the image at path.
func LoadImage(t testing.TB, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "failed to open image %s", path)
	return img
}

// MeanAbsDiff returns the mean absolute per-channel difference of two
// equally sized images in [0,255], or +Inf when the sizes differ.
func MeanAbsDiff(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return math.Inf(1)
	}
	na, nb := imaging.Clone(a), imaging.Clone(b)
	var sum float64
	for i := range na.Pix {
		d := int(na.Pix[i]) - int(nb.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	return sum / float64(len(na.Pix))
}

// CompareImages reports whether a and b differ by at most tolerance, given
// as a fraction of the full channel range.
func CompareImages(a, b image.Image, tolerance float64) bool {
	return MeanAbsDiff(a, b)/255 <= tolerance
}

// DarkFraction returns the share of pixels whose luminance is below 128.
func DarkFraction(img image.Image) float64 {
	g := imaging.Grayscale(img)
	dark := 0
	for i := 0; i < len(g.Pix); i += 4 {
		if g.Pix[i] < 128 {
			dark++
		}
	}
	return float64(dark) / float64(len(g.Pix)/4)
}
