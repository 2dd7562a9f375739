package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
)

var (
	quadColor  = color.NRGBA{255, 0, 0, 255}
	frameColor = color.NRGBA{0, 255, 0, 255}
)

func dumpOverlayPNG(fs afero.Fs, dir string, src image.Image, quad geometry.PixelQuad) error {
	b := src.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	drawPolygon(canvas, quad[:], quadColor, 2)
	return writePNG(fs, dir, "rect_overlay", canvas)
}

func dumpComparePNG(fs afero.Fs, dir string, src image.Image, quad geometry.PixelQuad, dst image.Image) error {
	sb := src.Bounds()
	db := dst.Bounds()
	gap := 10
	canvas := image.NewNRGBA(image.Rect(0, 0, sb.Dx()+gap+db.Dx(), max(sb.Dy(), db.Dy())))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, sb.Dx(), sb.Dy()), src, sb.Min, draw.Src)
	xoff := sb.Dx() + gap
	draw.Draw(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), dst, db.Min, draw.Src)

	drawPolygon(canvas, quad[:], quadColor, 2)
	w, h := float64(db.Dx()-1), float64(db.Dy()-1)
	off := float64(xoff)
	drawPolygon(canvas, []geometry.Point{{X: off, Y: 0}, {X: off + w, Y: 0}, {X: off + w, Y: h}, {X: off, Y: h}}, frameColor, 2)
	return writePNG(fs, dir, "rect_compare", canvas)
}

func writePNG(fs afero.Fs, dir, prefix string, img image.Image) error {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, time.Now().UnixNano()))
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

func drawPolygon(dst *image.NRGBA, pts []geometry.Point, col color.NRGBA, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		drawLine(dst,
			image.Pt(int(math.Round(a.X)), int(math.Round(a.Y))),
			image.Pt(int(math.Round(b.X)), int(math.Round(b.Y))),
			col, thickness)
	}
}

// drawLine is Bresenham with a square brush.
func drawLine(dst *image.NRGBA, a, b image.Point, col color.NRGBA, thickness int) {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := -abs(b.Y - y0)
	sx, sy := -1, -1
	if x0 < b.X {
		sx = 1
	}
	if y0 < b.Y {
		sy = 1
	}
	e := dx + dy
	for {
		for ty := range thickness {
			for tx := range thickness {
				if (image.Point{X: x0 + tx, Y: y0 + ty}).In(dst.Rect) {
					dst.SetNRGBA(x0+tx, y0+ty, col)
				}
			}
		}
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
