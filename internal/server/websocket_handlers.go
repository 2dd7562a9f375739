package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/geometry"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketScanRequest is one scan job sent over /v1/ws. Image is base64 in
// JSON. Corners and Filters accept the same forms as the multipart fields,
// either inline or as a JSON string.
type WebSocketScanRequest struct {
	Type     string          `json:"type"` // "rectify" or "filters"
	ID       string          `json:"id,omitempty"`
	Image    []byte          `json:"image"`
	Format   string          `json:"format,omitempty"`
	Corners  json.RawMessage `json:"corners,omitempty"`
	Filters  json.RawMessage `json:"filters,omitempty"`
	Output   string          `json:"output,omitempty"`
	Quality  int             `json:"quality,omitempty"`
	Lossless bool            `json:"lossless,omitempty"`
	OCR      bool            `json:"ocr,omitempty"`
	Language string          `json:"language,omitempty"`
	Persist  bool            `json:"persist,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketScanResponse is a progress, result or error frame.
type WebSocketScanResponse struct {
	Type      string       `json:"type"`
	Status    string       `json:"status"` // "processing", "completed", "error"
	Progress  float64      `json:"progress,omitempty"`
	Result    *ScanPayload `json:"result,omitempty"`
	Error     *APIError    `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// scanWebSocketHandler handles WebSocket connections for interactive scanning.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	if id := RequestIDFrom(r.Context()); id != "" {
		header.Set(RequestIDHeader, id)
	}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the peer goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage runs one scan job and answers with a processing
// frame followed by a completed or error frame.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", scanerr.InvalidInput.String(), fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if req.Type != scan.OpRectify && req.Type != scan.OpFilters {
		s.sendWebSocketError(conn, requestID, scanerr.InvalidInput.String(), "Unsupported request type: "+req.Type)
		return
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "scan_response",
		Status:    "processing",
		RequestID: requestID,
	})

	ctx, cancel := s.scanContext(ctx)
	defer cancel()

	start := time.Now()
	res, specs, err := s.runWebSocketScan(ctx, req)
	observeScan(req.Type, start, res, err)
	if err != nil {
		kind := scanerr.KindOf(err)
		if errors.Is(err, context.DeadlineExceeded) {
			s.sendWebSocketError(conn, requestID, "timeout", "Processing timed out")
			return
		}
		scanErrorsTotal.WithLabelValues(kind.String()).Inc()
		s.sendWebSocketError(conn, requestID, kind.String(), err.Error())
		return
	}
	observeFilters(specs)
	outputPixels.WithLabelValues(res.Operation).Observe(float64(res.Width * res.Height))
	logSoftFailures(res)

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:     "scan_response",
		Status:   "completed",
		Progress: 1.0,
		Result: &ScanPayload{
			Result: res,
			Image:  base64.StdEncoding.EncodeToString(res.Image),
		},
		RequestID: requestID,
	})
}

func (s *Server) runWebSocketScan(ctx context.Context, req WebSocketScanRequest) (*scan.Result, []filter.Spec, error) {
	specs, err := rawFilters(req.Filters)
	if err != nil {
		return nil, nil, err
	}
	format, err := codec.ParseFormat(req.Output)
	if err != nil {
		return nil, nil, err
	}
	out := codec.EncodeOptions{Format: format, Quality: req.Quality, Lossless: req.Lossless}
	var ocrOpts *scan.OCROptions
	if req.OCR {
		ocrOpts = &scan.OCROptions{Language: req.Language}
	}

	if req.Type == scan.OpFilters {
		res, err := s.scanner.ApplyFilters(ctx, scan.FilterRequest{
			Image: req.Image, FormatHint: req.Format, Filters: specs,
			Output: out, OCR: ocrOpts, Persist: req.Persist,
		})
		return res, specs, err
	}

	corners, err := geometry.ParseCorners(rawText(req.Corners))
	if err != nil {
		return nil, nil, err
	}
	res, err := s.scanner.RectifyPerspective(ctx, scan.RectifyRequest{
		Image: req.Image, FormatHint: req.Format, Corners: corners, Filters: specs,
		Output: out, OCR: ocrOpts, Persist: req.Persist,
	})
	return res, specs, err
}

// rawText unwraps a JSON string, or returns the raw JSON text otherwise.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func rawFilters(raw json.RawMessage) ([]filter.Spec, error) {
	text := rawText(raw)
	if text == "" || text == "null" {
		return nil, nil
	}
	return parseFilterParam(text)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketScanResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error frame over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, kind, message string) {
	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "error",
		Status:    "error",
		Error:     &APIError{Kind: kind, Message: message},
		RequestID: requestID,
	})
}
