//go:build !ocr_tesseract

package ocr

// NewDefaultEngine returns the engine linked into this build.
func NewDefaultEngine() Engine { return Unavailable{} }
