package codec

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8((x + y) * 5), A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{R: 250, G: 250, B: 240, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRoundTrip_Lossless(t *testing.T) {
	src := checker(24, 16)
	tests := []EncodeOptions{
		{Format: PNG},
		{Format: BMP},
		{Format: TIFF},
		{Format: WebP, Lossless: true},
	}
	for _, opts := range tests {
		t.Run(opts.Format.String(), func(t *testing.T) {
			data, err := Encode(src, opts)
			require.NoError(t, err)

			dec, err := Decode(data, "")
			require.NoError(t, err)
			assert.Equal(t, opts.Format, dec.Format)
			assert.Equal(t, 24, dec.Width)
			assert.Equal(t, 16, dec.Height)
			assert.Equal(t, src.Pix, imaging.Clone(dec.Image).Pix)
		})
	}
}

func TestRoundTrip_LossyKeepsStructure(t *testing.T) {
	src := checker(40, 30)
	for _, opts := range []EncodeOptions{{Format: JPEG, Quality: 85}, {Format: WebP, Quality: 80}, {Format: GIF}} {
		t.Run(opts.Format.String(), func(t *testing.T) {
			data, err := Encode(src, opts)
			require.NoError(t, err)

			dec, err := Decode(data, string(opts.Format))
			require.NoError(t, err)
			assert.Equal(t, 40, dec.Width)
			assert.Equal(t, 30, dec.Height)
		})
	}
}

func TestJPEGQualityChangesSize(t *testing.T) {
	src := checker(64, 64)
	low, err := Encode(src, EncodeOptions{Format: JPEG, Quality: 10})
	require.NoError(t, err)
	high, err := Encode(src, EncodeOptions{Format: JPEG, Quality: 100})
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
		ok   bool
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), PNG, true},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, JPEG, true},
		{"gif87", []byte("GIF87a..."), GIF, true},
		{"gif89", []byte("GIF89a..."), GIF, true},
		{"bmp", []byte("BM...."), BMP, true},
		{"tiff le", []byte("II*\x00...."), TIFF, true},
		{"tiff be", []byte("MM\x00*...."), TIFF, true},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBPVP8L"), WebP, true},
		{"riff but not webp", []byte("RIFF\x10\x00\x00\x00WAVEfmt "), Auto, false},
		{"text", []byte("hello world"), Auto, false},
		{"empty", nil, Auto, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sniff(tt.data)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"": Auto, "auto": Auto, "PNG": PNG, ".jpg": JPEG, "jpeg": JPEG, "image/jpeg": JPEG,
		"tif": TIFF, "webp": WebP, "bmp": BMP, "gif": GIF,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("heic")
	assert.Equal(t, scanerr.UnsupportedFormat, scanerr.KindOf(err))
}

func TestFormatInfo(t *testing.T) {
	assert.Equal(t, "image/jpeg", JPEG.ContentType())
	assert.Equal(t, ".jpg", JPEG.Extension())
	assert.True(t, PNG.Lossless())
	assert.False(t, JPEG.Lossless())
	assert.Equal(t, "application/octet-stream", Format("heic").ContentType())
	assert.Equal(t, "auto", Auto.String())
}

func TestDecode_Errors(t *testing.T) {
	png, err := Encode(checker(8, 8), EncodeOptions{Format: PNG})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		hint string
		kind scanerr.Kind
	}{
		{"empty", nil, "", scanerr.InvalidInput},
		{"garbage", []byte("definitely not an image"), "", scanerr.UnsupportedFormat},
		{"unknown hint", png, "heic", scanerr.UnsupportedFormat},
		{"truncated png", png[:len(png)/2], "", scanerr.CorruptImage},
		{"png declared as jpeg", png, "jpeg", scanerr.CorruptImage},
		{"bad header", []byte("\x89PNG\r\n\x1a\n\x00\x00"), "", scanerr.CorruptImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.hint)
			require.Error(t, err)
			assert.Equal(t, tt.kind, scanerr.KindOf(err))
		})
	}
}

func TestDecode_MaxPixels(t *testing.T) {
	data, err := Encode(checker(20, 10), EncodeOptions{Format: PNG})
	require.NoError(t, err)

	_, err = DecodeWith(data, "", DecodeOptions{MaxPixels: 199})
	assert.Equal(t, scanerr.InvalidInput, scanerr.KindOf(err))

	dec, err := DecodeWith(data, "", DecodeOptions{MaxPixels: 200})
	require.NoError(t, err)
	assert.Equal(t, 20, dec.Width)
}

// withEXIFOrientation inserts an APP1 segment carrying only the orientation
// tag right after the JPEG SOI marker.
func withEXIFOrientation(jpg []byte, orientation uint16) []byte {
	var tiffHdr bytes.Buffer
	tiffHdr.WriteString("MM")
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint16(0x2A))
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint16(1))      // one IFD entry
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint16(0x0112)) // orientation
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiffHdr, binary.BigEndian, orientation)
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiffHdr, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiffHdr.Bytes()...)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestDecode_AutoOrient(t *testing.T) {
	jpg, err := Encode(checker(40, 20), EncodeOptions{Format: JPEG})
	require.NoError(t, err)
	rotated := withEXIFOrientation(jpg, 6)

	dec, err := Decode(rotated, "")
	require.NoError(t, err)
	assert.Equal(t, 20, dec.Width)
	assert.Equal(t, 40, dec.Height)

	raw, err := DecodeWith(rotated, "", DecodeOptions{AutoOrient: false})
	require.NoError(t, err)
	assert.Equal(t, 40, raw.Width)
	assert.Equal(t, 20, raw.Height)
}

func TestEncode_Errors(t *testing.T) {
	img := checker(4, 4)

	_, err := Encode(nil, EncodeOptions{Format: PNG})
	assert.Equal(t, scanerr.InvalidInput, scanerr.KindOf(err))

	_, err = Encode(img, EncodeOptions{Format: JPEG, Quality: 101})
	assert.Equal(t, scanerr.InvalidInput, scanerr.KindOf(err))

	_, err = Encode(img, EncodeOptions{Format: "heic"})
	assert.Equal(t, scanerr.UnsupportedFormat, scanerr.KindOf(err))

	_, err = Encode(img, EncodeOptions{})
	assert.Equal(t, scanerr.UnsupportedFormat, scanerr.KindOf(err))
}
