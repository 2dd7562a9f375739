package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/config"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/ocr"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

// stdio is the path that selects stdin or stdout.
const stdio = "-"

// scanFlags are the options shared by rectify and filter.
type scanFlags struct {
	out         string
	inputFormat string
	format      string
	quality     int
	lossless    bool
	filters     string
	filtersFile string
	ocr         bool
	language    string
	persist     bool
	jsonOut     bool
}

func addScanFlags(cmd *cobra.Command, f *scanFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", `output file ("-" for stdout, default <input>_<suffix>.<ext>)`)
	fl.StringVar(&f.inputFormat, "input-format", "auto", "input format hint (auto, png, jpeg, gif, bmp, tiff, webp)")
	fl.StringVarP(&f.format, "format", "f", "", "output format (png, jpeg, gif, bmp, tiff, webp; default keeps the input format)")
	fl.IntVarP(&f.quality, "quality", "q", 0, "JPEG/WebP quality 1-100 (default from config)")
	fl.BoolVar(&f.lossless, "lossless", false, "lossless WebP output")
	fl.StringVar(&f.filters, "filters", "", `filters in compact ("rotate:90,enhance:bw") or JSON form`)
	fl.StringVar(&f.filtersFile, "filters-file", "", "YAML preset or JSON file with filters")
	fl.BoolVar(&f.ocr, "ocr", false, "extract text from the result")
	fl.StringVar(&f.language, "language", "", "OCR language hint, e.g. en or de-DE (default from config)")
	fl.BoolVar(&f.persist, "persist", false, "store the result in the configured storage directory")
	fl.BoolVar(&f.jsonOut, "json", false, "print the result metadata as JSON")
}

// parseFilters reads --filters or --filters-file.
func (f *scanFlags) parseFilters() ([]filter.Spec, error) {
	switch {
	case f.filters != "" && f.filtersFile != "":
		return nil, errors.New("--filters and --filters-file are mutually exclusive")
	case f.filtersFile != "":
		data, err := os.ReadFile(f.filtersFile)
		if err != nil {
			return nil, fmt.Errorf("reading filters file: %w", err)
		}
		if strings.EqualFold(filepath.Ext(f.filtersFile), ".json") {
			return filter.Parse(data)
		}
		return filter.ParseYAML(data)
	case strings.HasPrefix(strings.TrimSpace(f.filters), "["):
		return filter.Parse([]byte(f.filters))
	case f.filters != "":
		return filter.ParseCompact(f.filters)
	default:
		return nil, nil
	}
}

func (f *scanFlags) encodeOptions() (codec.EncodeOptions, error) {
	format, err := codec.ParseFormat(f.format)
	if err != nil {
		return codec.EncodeOptions{}, err
	}
	return codec.EncodeOptions{Format: format, Quality: f.quality, Lossless: f.lossless}, nil
}

func (f *scanFlags) ocrOptions() *scan.OCROptions {
	if !f.ocr {
		return nil
	}
	return &scan.OCROptions{Language: f.language}
}

// buildService creates the scan service from the loaded configuration and
// the command's flags.
func buildService(cfg *config.Config, f *scanFlags, maxSide int) (*scan.Service, error) {
	sc := cfg.ToScanConfig()
	if maxSide > 0 {
		sc.Rectify.MaxOutputSide = maxSide
	}
	if f.ocr {
		sc.OCR.Enabled = true
	}
	b := scan.NewBuilder().WithConfig(sc)
	if f.persist || cfg.Storage.Enabled {
		b = b.WithStore(storage.NewOSStore(cfg.Storage.Dir))
	}
	return b.Build()
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == stdio {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// outputPath derives the default output file name from the input path.
func outputPath(in, out, suffix string, format codec.Format) string {
	if out != "" {
		return out
	}
	if in == stdio {
		return stdio
	}
	base := strings.TrimSuffix(in, filepath.Ext(in))
	return base + "_" + suffix + format.Extension()
}

// writeResult writes the image and reports what was done.
func writeResult(cmd *cobra.Command, in string, f *scanFlags, suffix string, res *scan.Result) error {
	path := outputPath(in, f.out, suffix, res.Format)
	stdout := cmd.OutOrStdout()

	if path == stdio {
		_, err := stdout.Write(res.Image)
		return err
	}
	if err := os.WriteFile(path, res.Image, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Output string `json:"output"`
			*scan.Result
		}{Output: path, Result: res})
	}

	_, _ = fmt.Fprintf(stdout, "wrote %s (%dx%d %s)\n", path, res.Width, res.Height, res.Format)
	if res.Filters != "" {
		_, _ = fmt.Fprintf(stdout, "filters: %s\n", res.Filters)
	}
	if res.StorageKey != "" {
		_, _ = fmt.Fprintf(stdout, "stored as %s\n", res.StorageKey)
	}
	if res.StorageError != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: result not stored: %s\n", res.StorageError)
	}
	if res.DebugError != "" {
		slog.Warn("Debug dump failed", "error", res.DebugError)
	}
	switch res.OCRStatus {
	case ocr.StatusOK:
		_, _ = fmt.Fprintf(stdout, "text:\n%s\n", res.Text)
	case ocr.StatusEmpty, ocr.StatusUnavailable, ocr.StatusSkipped:
		_, _ = fmt.Fprintf(stdout, "ocr: %s\n", res.OCRStatus)
	}
	return nil
}
