package scanerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(InvalidInput, "", "need 4 corners, got %d", 3),
			want: "invalid_input: need 4 corners, got 3",
		},
		{
			name: "with op",
			err:  New(OutOfBounds, "crop", "rectangle exceeds image"),
			want: "crop: out_of_bounds: rectangle exceeds image",
		},
		{
			name: "wrapped cause",
			err:  Wrap(CorruptImage, "decode", io.ErrUnexpectedEOF),
			want: "decode: corrupt_image: unexpected EOF",
		},
		{
			name: "message and cause",
			err:  &Error{Kind: UnsupportedFormat, Op: "encode", Message: "webp", Err: io.EOF},
			want: "encode: unsupported_format: webp: EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	base := New(DegenerateGeometry, "normalize", "collinear corners")
	wrapped := fmt.Errorf("rectify: %w", base)

	assert.Equal(t, DegenerateGeometry, KindOf(base))
	assert.Equal(t, DegenerateGeometry, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))

	assert.True(t, Is(wrapped, DegenerateGeometry))
	assert.False(t, Is(wrapped, InvalidInput))
	assert.False(t, Is(nil, Unknown))
}

func TestUnwrap(t *testing.T) {
	err := Wrap(CorruptImage, "decode", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unsupported_filter", UnsupportedFilter.String())
	assert.Equal(t, "invalid_target_frame", InvalidTargetFrame.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
