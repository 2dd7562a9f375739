// Package ocr extracts text from finished scans. Text extraction is an
// enhancement: every failure is reported as an Outcome status rather than as
// an error, so a scan never fails because OCR did.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrUnavailable is returned by engines that cannot run in this build.
var ErrUnavailable = errors.New("ocr: no engine linked; build with -tags=ocr_tesseract")

// Engine recognizes text in an image.
type Engine interface {
	Name() string
	// ExtractText returns the recognized text. languages are Tesseract
	// language codes, most preferred first.
	ExtractText(ctx context.Context, img image.Image, languages []string) (string, error)
}

// Status summarizes an extraction attempt.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
	StatusSkipped     Status = "skipped"
)

// Outcome is the result of Extract.
type Outcome struct {
	Text      string        `json:"text"`
	Status    Status        `json:"status"`
	Engine    string        `json:"engine,omitempty"`
	Languages []string      `json:"languages,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Unavailable is the engine used when no OCR backend is linked.
type Unavailable struct{}

func (Unavailable) Name() string { return "none" }

func (Unavailable) ExtractText(context.Context, image.Image, []string) (string, error) {
	return "", ErrUnavailable
}

// Extract runs engine on img with a timeout. Engines that ignore their
// context are abandoned when the timeout expires. A nil engine yields
// StatusSkipped.
func Extract(ctx context.Context, engine Engine, img image.Image, languageHint string, timeout time.Duration) Outcome {
	if engine == nil {
		return Outcome{Status: StatusSkipped}
	}
	out := Outcome{Engine: engine.Name()}

	langs, err := ParseLanguages(languageHint)
	if err != nil {
		out.Status = StatusUnavailable
		out.Err = err
		return out
	}
	out.Languages = langs

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("ocr engine %s panicked: %v", engine.Name(), r)}
			}
		}()
		text, err := engine.ExtractText(ctx, img, langs)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		out.Duration = time.Since(start)
		if r.err != nil {
			out.Status = StatusUnavailable
			out.Err = r.err
			return out
		}
		out.Text = NormalizeText(r.text)
		out.Status = StatusOK
		if out.Text == "" {
			out.Status = StatusEmpty
		}
	case <-ctx.Done():
		out.Duration = time.Since(start)
		out.Status = StatusUnavailable
		out.Err = fmt.Errorf("ocr engine %s: %w", engine.Name(), ctx.Err())
	}
	return out
}

// NormalizeText converts text to NFC, unifies line endings and trims
// trailing whitespace on every line and around the whole text.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\f\v\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
