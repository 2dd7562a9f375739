// Package codec converts between transport bytes and decoded images.
package codec

import (
	"bytes"
	"strings"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// Format names an image container format.
type Format string

const (
	Auto Format = ""
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	WebP Format = "webp"
)

// Formats lists every concrete format in preference order.
var Formats = []Format{PNG, JPEG, WebP, TIFF, BMP, GIF}

var formatInfo = map[Format]struct {
	contentType string
	ext         string
	lossless    bool
}{
	PNG:  {"image/png", ".png", true},
	JPEG: {"image/jpeg", ".jpg", false},
	GIF:  {"image/gif", ".gif", false},
	BMP:  {"image/bmp", ".bmp", true},
	TIFF: {"image/tiff", ".tiff", true},
	WebP: {"image/webp", ".webp", false},
}

// ParseFormat maps a user supplied format name or hint to a Format.
// The empty string and "auto" select sniffing.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "."))) {
	case "", "auto":
		return Auto, nil
	case "png", "image/png":
		return PNG, nil
	case "jpeg", "jpg", "image/jpeg":
		return JPEG, nil
	case "gif", "image/gif":
		return GIF, nil
	case "bmp", "image/bmp":
		return BMP, nil
	case "tiff", "tif", "image/tiff":
		return TIFF, nil
	case "webp", "image/webp":
		return WebP, nil
	default:
		return Auto, scanerr.New(scanerr.UnsupportedFormat, "codec", "unsupported image format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if info, ok := formatInfo[f]; ok {
		return info.contentType
	}
	return "application/octet-stream"
}

// Extension returns the usual file extension of f, including the dot.
func (f Format) Extension() string {
	if info, ok := formatInfo[f]; ok {
		return info.ext
	}
	return ""
}

// Lossless reports whether encoding in f always preserves pixels. WebP is
// lossless only when encoded with EncodeOptions.Lossless.
func (f Format) Lossless() bool { return formatInfo[f].lossless }

func (f Format) String() string {
	if f == Auto {
		return "auto"
	}
	return string(f)
}

// Sniff identifies the container format from its magic bytes.
func Sniff(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return PNG, true
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return JPEG, true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return GIF, true
	case bytes.HasPrefix(data, []byte("BM")):
		return BMP, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return TIFF, true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return WebP, true
	}
	return Auto, false
}
