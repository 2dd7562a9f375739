package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatscan/internal/config"
	"github.com/MeKo-Tech/flatscan/internal/server"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scan API",
		Long: `Start an HTTP server exposing the scan operations.

The server provides the following endpoints:
  POST /v1/rectify - Correct the perspective of an uploaded photo
  POST /v1/filters - Apply filters to an uploaded image
  GET  /v1/ws      - WebSocket interface for both operations
  GET  /health     - Health check endpoint
  GET  /version    - Build information
  GET  /metrics    - Prometheus metrics

Examples:
  flatscan serve
  flatscan serve --port 8080
  flatscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			srvCfg, shutdownTimeout, err := serverConfig(cmd, cfg)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(srvCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			httpServer := &http.Server{
				Addr:              net.JoinHostPort(srvCfg.Host, strconv.Itoa(srvCfg.Port)),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       time.Duration(srvCfg.TimeoutSec) * time.Second,
				WriteTimeout:      time.Duration(srvCfg.TimeoutSec+5) * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return runServer(ctx, httpServer, shutdownTimeout)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("max-concurrent", 8, "maximum number of scans processed at once")
	f.Bool("ocr", false, "enable text extraction")
	f.String("language", "en", "default OCR language")
	f.Bool("storage", false, "enable persistence of results")
	f.String("storage-dir", "scans", "directory for persisted results")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 5000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 500*1024*1024, "maximum data uploaded per day per client (bytes)")
	return cmd
}

// serverConfig merges the loaded configuration with explicitly set flags.
func serverConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, int, error) {
	fl := cmd.Flags()
	s := cfg.Server

	if fl.Changed("host") {
		s.Host, _ = fl.GetString("host")
	}
	if fl.Changed("port") {
		s.Port, _ = fl.GetInt("port")
	}
	if fl.Changed("cors-origin") {
		s.CORSOrigin, _ = fl.GetString("cors-origin")
	}
	if fl.Changed("max-upload-size") {
		s.MaxUploadMB, _ = fl.GetInt("max-upload-size")
	}
	if fl.Changed("timeout") {
		s.TimeoutSec, _ = fl.GetInt("timeout")
	}
	if fl.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = fl.GetInt("shutdown-timeout")
	}
	if fl.Changed("max-concurrent") {
		s.MaxConcurrent, _ = fl.GetInt("max-concurrent")
	}
	if fl.Changed("rate-limit-enabled") {
		s.RateLimitEnabled, _ = fl.GetBool("rate-limit-enabled")
	}
	if fl.Changed("requests-per-minute") {
		s.RequestsPerMinute, _ = fl.GetInt("requests-per-minute")
	}
	if fl.Changed("requests-per-hour") {
		s.RequestsPerHour, _ = fl.GetInt("requests-per-hour")
	}
	if fl.Changed("max-requests-per-day") {
		s.MaxRequestsPerDay, _ = fl.GetInt("max-requests-per-day")
	}
	if fl.Changed("max-data-per-day") {
		s.MaxDataPerDay, _ = fl.GetInt64("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	if s.MaxUploadMB < 1 {
		return server.Config{}, 0, fmt.Errorf("invalid max upload size: %d MB", s.MaxUploadMB)
	}
	if s.TimeoutSec < 1 {
		return server.Config{}, 0, fmt.Errorf("invalid timeout: %d seconds", s.TimeoutSec)
	}

	sc := cfg.ToScanConfig()
	if fl.Changed("ocr") {
		sc.OCR.Enabled, _ = fl.GetBool("ocr")
	}
	if fl.Changed("language") {
		sc.OCR.Language, _ = fl.GetString("language")
	}

	st := cfg.Storage
	if fl.Changed("storage") {
		st.Enabled, _ = fl.GetBool("storage")
	}
	if fl.Changed("storage-dir") {
		st.Dir, _ = fl.GetString("storage-dir")
	}
	var store storage.Store
	if st.Enabled {
		store = storage.NewOSStore(st.Dir)
	}

	return server.Config{
		Host:          s.Host,
		Port:          s.Port,
		CORSOrigin:    s.CORSOrigin,
		MaxUploadMB:   int64(s.MaxUploadMB),
		TimeoutSec:    s.TimeoutSec,
		MaxConcurrent: s.MaxConcurrent,
		ScanConfig:    sc,
		Store:         store,
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimitEnabled,
			RequestsPerMinute: s.RequestsPerMinute,
			RequestsPerHour:   s.RequestsPerHour,
			MaxRequestsPerDay: s.MaxRequestsPerDay,
			MaxDataPerDay:     s.MaxDataPerDay,
		},
	}, s.ShutdownTimeout, nil
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, httpServer *http.Server, shutdownTimeout int) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting flatscan server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			slog.Error("Server error", "error", err)
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
