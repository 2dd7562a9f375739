package scan

import (
	"time"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/common"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/ocr"
)

// RectifyRequest asks for a perspective correction of Image.
type RectifyRequest struct {
	Image      []byte
	FormatHint string           // "" or "auto" sniffs the payload
	Corners    []geometry.Point // four normalized corners in any order
	Filters    []filter.Spec    // optional, applied after the warp
	Output     codec.EncodeOptions
	OCR        *OCROptions // nil skips text extraction
	Persist    bool
}

// FilterRequest asks for a filter pipeline run on Image.
type FilterRequest struct {
	Image      []byte
	FormatHint string
	Filters    []filter.Spec
	Output     codec.EncodeOptions
	OCR        *OCROptions
	Persist    bool
}

// OCROptions requests text extraction from the final image.
type OCROptions struct {
	Language string        // BCP 47 or Tesseract codes ("" = configured default)
	Timeout  time.Duration // 0 = configured default
}

// Result is the outcome of a successful operation.
type Result struct {
	Success      bool            `json:"success"`
	Operation    string          `json:"operation"`
	Image        []byte          `json:"-"`
	Format       codec.Format    `json:"format"`
	ContentType  string          `json:"content_type"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	Frame        *geometry.Frame `json:"frame,omitempty"`
	Corners      *geometry.Quad  `json:"corners,omitempty"`
	Filters      string          `json:"filters,omitempty"`
	Text         string          `json:"text,omitempty"`
	OCRStatus    ocr.Status      `json:"ocr_status,omitempty"`
	OCRLanguages []string        `json:"ocr_languages,omitempty"`
	StorageKey   string          `json:"storage_key,omitempty"`
	StorageError string          `json:"storage_error,omitempty"`
	DebugError   string          `json:"debug_error,omitempty"`
	Timings      *common.Timings `json:"timings_ms"`
}

const (
	OpRectify = "rectify"
	OpFilters = "filters"
)
