package server

import (
	"context"
	"net/http"

	"github.com/MeKo-Tech/flatscan/internal/ocr"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

// scanner defines the operations the server needs from the scan service.
type scanner interface {
	RectifyPerspective(ctx context.Context, req scan.RectifyRequest) (*scan.Result, error)
	ApplyFilters(ctx context.Context, req scan.FilterRequest) (*scan.Result, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	scanner     scanner
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	slots       chan struct{}
}

// Config holds server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxUploadMB   int64
	TimeoutSec    int
	MaxConcurrent int
	RateLimit     RateLimitConfig
	ScanConfig    scan.Config
	Store         storage.Store
	OCREngine     ocr.Engine
}

// RateLimitConfig holds per-client rate limiting and quota settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// APIError is the error body of a failed request.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ScanPayload is the JSON form of a scan result.
type ScanPayload struct {
	*scan.Result
	Image string `json:"image,omitempty"` // base64
}

// ScanResponse is the JSON envelope of /v1/rectify and /v1/filters.
type ScanResponse struct {
	Success bool         `json:"success"`
	Result  *ScanPayload `json:"result,omitempty"`
	Error   *APIError    `json:"error,omitempty"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	b := scan.NewBuilder().WithConfig(config.ScanConfig)
	if config.ScanConfig.OCR.Enabled && config.OCREngine != nil {
		b = b.WithOCR(config.OCREngine, config.ScanConfig.OCR.Language, config.ScanConfig.OCR.Timeout)
	}
	if config.Store != nil {
		b = b.WithStore(config.Store)
	}
	svc, err := b.Build()
	if err != nil {
		return nil, err
	}
	return newServer(svc, config), nil
}

func newServer(sc scanner, config Config) *Server {
	s := &Server{
		scanner:     sc,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if config.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, config.MaxConcurrent)
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// Handler returns the routed handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/version", s.corsMiddleware(s.versionHandler))
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/v1/rectify", s.withScanMiddleware(s.rectifyHandler))
	mux.HandleFunc("/v1/filters", s.withScanMiddleware(s.filtersHandler))
	mux.HandleFunc("/v1/ws", s.requestIDMiddleware(s.scanWebSocketHandler))
}

func (s *Server) withScanMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.corsMiddleware(s.rateLimitMiddleware(s.concurrencyMiddleware(h))))
}
