package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
	"github.com/MeKo-Tech/flatscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// versionHandler returns build information.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// scanForm is the parsed multipart body shared by both scan endpoints.
type scanForm struct {
	image    []byte
	format   string
	filters  []filter.Spec
	output   codec.EncodeOptions
	ocr      *scan.OCROptions
	persist  bool
	jsonBody bool
}

// rectifyHandler serves POST /v1/rectify.
func (s *Server) rectifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	form, ok := s.parseScanForm(w, r)
	if !ok {
		return
	}
	corners, err := geometry.ParseCorners(r.FormValue("corners"))
	if err != nil {
		s.writeScanError(w, scan.OpRectify, err)
		return
	}

	ctx, cancel := s.scanContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.scanner.RectifyPerspective(ctx, scan.RectifyRequest{
		Image:      form.image,
		FormatHint: form.format,
		Corners:    corners,
		Filters:    form.filters,
		Output:     form.output,
		OCR:        form.ocr,
		Persist:    form.persist,
	})
	observeScan(scan.OpRectify, start, res, err)
	if err != nil {
		s.writeScanError(w, scan.OpRectify, err)
		return
	}
	observeFilters(form.filters)
	s.writeScanResult(w, form.jsonBody, res)
}

// filtersHandler serves POST /v1/filters.
func (s *Server) filtersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	form, ok := s.parseScanForm(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.scanContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.scanner.ApplyFilters(ctx, scan.FilterRequest{
		Image:      form.image,
		FormatHint: form.format,
		Filters:    form.filters,
		Output:     form.output,
		OCR:        form.ocr,
		Persist:    form.persist,
	})
	observeScan(scan.OpFilters, start, res, err)
	if err != nil {
		s.writeScanError(w, scan.OpFilters, err)
		return
	}
	observeFilters(form.filters)
	s.writeScanResult(w, form.jsonBody, res)
}

// scanContext bounds a scan by the configured timeout.
func (s *Server) scanContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
}

// parseScanForm reads the multipart body. On failure the error response has
// already been written.
func (s *Server) parseScanForm(w http.ResponseWriter, r *http.Request) (*scanForm, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "too large") {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "request_too_large", "File too large")
		} else {
			s.writeErrorResponse(w, http.StatusBadRequest, scanerr.InvalidInput.String(), "Failed to parse form data")
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, scanerr.InvalidInput.String(), "No image file provided")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to read image data")
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	form := &scanForm{
		image:    data,
		format:   r.FormValue("format"),
		persist:  formBool(r.FormValue("persist")),
		jsonBody: r.FormValue("response") == "json" || strings.Contains(r.Header.Get("Accept"), "application/json"),
	}

	if raw := r.FormValue("filters"); strings.TrimSpace(raw) != "" {
		form.filters, err = parseFilterParam(raw)
		if err != nil {
			s.writeScanError(w, "", err)
			return nil, false
		}
	}

	if form.output, err = parseOutputParams(r); err != nil {
		s.writeScanError(w, "", err)
		return nil, false
	}

	if formBool(r.FormValue("ocr")) {
		form.ocr = &scan.OCROptions{Language: r.FormValue("language")}
	}
	return form, true
}

// parseFilterParam accepts a JSON filter array or the compact
// "rotate:90,enhance:bw" notation.
func parseFilterParam(raw string) ([]filter.Spec, error) {
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		return filter.Parse([]byte(raw))
	}
	return filter.ParseCompact(raw)
}

func parseOutputParams(r *http.Request) (codec.EncodeOptions, error) {
	var opts codec.EncodeOptions
	f, err := codec.ParseFormat(r.FormValue("output"))
	if err != nil {
		return opts, err
	}
	opts.Format = f
	if q := r.FormValue("quality"); q != "" {
		opts.Quality, err = strconv.Atoi(q)
		if err != nil {
			return opts, scanerr.New(scanerr.InvalidInput, "output", "quality must be an integer, got %q", q)
		}
	}
	opts.Lossless = formBool(r.FormValue("lossless"))
	return opts, nil
}

func formBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// writeScanResult writes the encoded image, or the JSON envelope with the
// image inlined as base64.
func (s *Server) writeScanResult(w http.ResponseWriter, asJSON bool, res *scan.Result) {
	outputPixels.WithLabelValues(res.Operation).Observe(float64(res.Width * res.Height))
	if res.OCRStatus != "" {
		ocrOutcomes.WithLabelValues(string(res.OCRStatus)).Inc()
	}
	logSoftFailures(res)

	if asJSON {
		writeJSON(w, http.StatusOK, ScanResponse{
			Success: true,
			Result: &ScanPayload{
				Result: res,
				Image:  base64.StdEncoding.EncodeToString(res.Image),
			},
		})
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(res.Image)))
	h.Set("X-Image-Width", strconv.Itoa(res.Width))
	h.Set("X-Image-Height", strconv.Itoa(res.Height))
	if res.Filters != "" {
		h.Set("X-Filters", res.Filters)
	}
	if res.OCRStatus != "" {
		h.Set("X-OCR-Status", string(res.OCRStatus))
	}
	if res.StorageKey != "" {
		h.Set("X-Storage-Key", res.StorageKey)
	}
	if res.Timings != nil {
		h.Set("Server-Timing", serverTiming(res))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Image); err != nil {
		slog.Error("Failed to write image response", "error", err)
	}
}

func serverTiming(res *scan.Result) string {
	stages := res.Timings.Stages()
	parts := make([]string, 0, len(stages))
	for _, st := range stages {
		parts = append(parts, fmt.Sprintf("%s;dur=%.2f", st.Name, float64(st.Duration.Microseconds())/1000))
	}
	return strings.Join(parts, ", ")
}

// statusForKind maps a scan error kind to an HTTP status.
func statusForKind(kind scanerr.Kind) int {
	switch kind {
	case scanerr.InvalidInput, scanerr.DegenerateGeometry, scanerr.InvalidTargetFrame,
		scanerr.OutOfBounds, scanerr.UnsupportedFilter:
		return http.StatusUnprocessableEntity
	case scanerr.CorruptImage:
		return http.StatusBadRequest
	case scanerr.UnsupportedFormat:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// writeScanError writes a failed scan as JSON. Context errors are reported
// as timeouts or client cancellations.
func (s *Server) writeScanError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "timeout", "Processing timed out")
		return
	case errors.Is(err, context.Canceled):
		s.writeErrorResponse(w, 499, "canceled", "Request canceled")
		return
	}

	kind := scanerr.KindOf(err)
	scanErrorsTotal.WithLabelValues(kind.String()).Inc()
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("Scan failed", "operation", op, "error", err)
	} else {
		slog.Debug("Scan rejected", "operation", op, "kind", kind.String(), "error", err)
	}
	s.writeErrorResponse(w, status, kind.String(), err.Error())
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, kind, message string) {
	writeJSON(w, statusCode, ScanResponse{
		Success: false,
		Error:   &APIError{Kind: kind, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// logSoftFailures reports the parts of a successful scan that failed without
// failing the request.
func logSoftFailures(res *scan.Result) {
	if res.StorageError != "" {
		slog.Warn("Scan result not stored", "operation", res.Operation, "error", res.StorageError)
	}
	if res.DebugError != "" {
		slog.Warn("Debug dump failed", "operation", res.Operation, "error", res.DebugError)
	}
}
