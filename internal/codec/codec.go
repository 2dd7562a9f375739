package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	xwebp "golang.org/x/image/webp"

	"github.com/MeKo-Tech/flatscan/internal/mempool"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

// DefaultJPEGQuality is used when EncodeOptions.Quality is zero.
const DefaultJPEGQuality = 90

// DecodeOptions controls Decode.
type DecodeOptions struct {
	AutoOrient bool // apply the EXIF orientation tag of JPEG input
	MaxPixels  int  // reject larger images before decoding pixels (0 = unlimited)
}

// DefaultDecodeOptions returns the options used by Decode.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{AutoOrient: true}
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	Format   Format
	Quality  int  // JPEG and lossy WebP quality in [1,100] (0 = default)
	Lossless bool // WebP only
}

// Decoded is a decoded image plus what was learned about it.
type Decoded struct {
	Image  image.Image
	Format Format
	Width  int
	Height int
}

// Decode decodes data using hint, sniffing the format when hint is empty or
// "auto".
func Decode(data []byte, hint string) (*Decoded, error) {
	return DecodeWith(data, hint, DefaultDecodeOptions())
}

// DecodeWith is Decode with explicit options.
func DecodeWith(data []byte, hint string, opts DecodeOptions) (*Decoded, error) {
	if len(data) == 0 {
		return nil, scanerr.New(scanerr.InvalidInput, "decode", "empty image payload")
	}
	format, err := ParseFormat(hint)
	if err != nil {
		return nil, err
	}
	sniffed, known := Sniff(data)
	switch {
	case format == Auto && !known:
		return nil, scanerr.New(scanerr.UnsupportedFormat, "decode", "unrecognized image data")
	case format == Auto:
		format = sniffed
	case known && sniffed != format:
		return nil, scanerr.New(scanerr.CorruptImage, "decode", "payload is %s but was declared as %s", sniffed, format)
	}

	if opts.MaxPixels > 0 {
		cfg, err := decodeConfig(data, format)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.CorruptImage, "decode", err)
		}
		if cfg.Width*cfg.Height > opts.MaxPixels {
			return nil, scanerr.New(scanerr.InvalidInput, "decode",
				"image %dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, opts.MaxPixels)
		}
	}

	img, err := decode(data, format, opts.AutoOrient)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.CorruptImage, "decode", fmt.Errorf("%s: %w", format, err))
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, scanerr.New(scanerr.CorruptImage, "decode", "%s image has no pixels", format)
	}
	return &Decoded{Image: img, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

func decode(data []byte, format Format, autoOrient bool) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case PNG:
		return png.Decode(r)
	case JPEG:
		if autoOrient {
			return imaging.Decode(r, imaging.AutoOrientation(true))
		}
		return jpeg.Decode(r)
	case GIF:
		return gif.Decode(r)
	case BMP:
		return bmp.Decode(r)
	case TIFF:
		return tiff.Decode(r)
	case WebP:
		return xwebp.Decode(r)
	default:
		return nil, fmt.Errorf("no decoder for %q", string(format))
	}
}

func decodeConfig(data []byte, format Format) (image.Config, error) {
	r := bytes.NewReader(data)
	switch format {
	case PNG:
		return png.DecodeConfig(r)
	case JPEG:
		return jpeg.DecodeConfig(r)
	case GIF:
		return gif.DecodeConfig(r)
	case BMP:
		return bmp.DecodeConfig(r)
	case TIFF:
		return tiff.DecodeConfig(r)
	case WebP:
		return xwebp.DecodeConfig(r)
	default:
		return image.Config{}, fmt.Errorf("no decoder for %q", string(format))
	}
}

// Encode encodes img into opts.Format.
func Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	if img == nil {
		return nil, scanerr.New(scanerr.InvalidInput, "encode", "nil image")
	}
	b := img.Bounds()
	scratch := mempool.GetBytes(b.Dx() * b.Dy())
	buf := bytes.NewBuffer(scratch)
	defer func() { mempool.PutBytes(buf.Bytes()) }()

	if err := EncodeTo(buf, img, opts); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// EncodeTo writes img to w in opts.Format.
func EncodeTo(w io.Writer, img image.Image, opts EncodeOptions) error {
	if img == nil {
		return scanerr.New(scanerr.InvalidInput, "encode", "nil image")
	}
	if opts.Quality < 0 || opts.Quality > 100 {
		return scanerr.New(scanerr.InvalidInput, "encode", "quality %d outside [1, 100]", opts.Quality)
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	var err error
	switch opts.Format {
	case PNG:
		err = png.Encode(w, img)
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case GIF:
		err = gif.Encode(w, img, nil)
	case BMP:
		err = bmp.Encode(w, img)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case WebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	default:
		return scanerr.New(scanerr.UnsupportedFormat, "encode", "cannot encode format %q", string(opts.Format))
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", opts.Format, err)
	}
	return nil
}
