// Package rectify undoes perspective distortion: it maps a photographed
// document quadrilateral onto an axis-aligned rectangle.
package rectify

import (
	"errors"
	"fmt"
	"image"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Rectifier carries the options shared by successive rectifications. It
// holds no per-call state and is safe for concurrent use.
type Rectifier struct {
	cfg Config
	fs  afero.Fs
}

// Result describes a finished rectification.
type Result struct {
	Image   *image.NRGBA
	Corners geometry.Quad      // canonical normalized corners
	Quad    geometry.PixelQuad // canonical corners in source pixels
	Frame   geometry.Frame     // size of Image
	// DebugErr reports failed debug dumps. The rectification itself succeeded.
	DebugErr error
}

// New creates a rectifier.
func New(cfg Config) *Rectifier {
	fs := cfg.DebugFS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Rectifier{cfg: cfg, fs: fs}
}

// Config returns the rectifier configuration.
func (r *Rectifier) Config() Config { return r.cfg }

// Rectify normalizes the four corners, sizes the target frame from the
// document's edges and warps src into it.
func (r *Rectifier) Rectify(src image.Image, corners []geometry.Point) (*Result, error) {
	q, err := geometry.Normalize(corners)
	if err != nil {
		return nil, err
	}
	return r.RectifyQuad(src, q)
}

// RectifyQuad is Rectify for corners that are already canonical.
func (r *Rectifier) RectifyQuad(src image.Image, q geometry.Quad) (*Result, error) {
	if src == nil {
		return nil, scanerr.New(scanerr.InvalidInput, "rectify", "nil source image")
	}
	b := src.Bounds()
	pq := q.ToPixels(b.Dx(), b.Dy())

	frame, err := geometry.SizeFrame(pq)
	if err != nil {
		return nil, err
	}
	frame = frame.Fit(r.cfg.MaxOutputSide)

	var debugErrs []error
	if r.cfg.DebugDir != "" {
		if err := dumpOverlayPNG(r.fs, r.cfg.DebugDir, src, pq); err != nil {
			debugErrs = append(debugErrs, fmt.Errorf("overlay dump: %w", err))
		}
	}

	out, err := warpPerspective(src, pq, frame, r.cfg.Workers)
	if err != nil {
		return nil, err
	}

	if r.cfg.DebugDir != "" {
		if err := dumpComparePNG(r.fs, r.cfg.DebugDir, src, pq, out); err != nil {
			debugErrs = append(debugErrs, fmt.Errorf("compare dump: %w", err))
		}
	}

	return &Result{Image: out, Corners: q, Quad: pq, Frame: frame, DebugErr: errors.Join(debugErrs...)}, nil
}
