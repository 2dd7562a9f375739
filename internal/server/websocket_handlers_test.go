package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/codec"
)

// mockWebSocketConn records the frames written to it.
type mockWebSocketConn struct {
	sent [][]byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		m.sent = append(m.sent, data)
	}
	return nil
}

func (m *mockWebSocketConn) frames(t *testing.T) []WebSocketScanResponse {
	t.Helper()
	out := make([]WebSocketScanResponse, len(m.sent))
	for i, data := range m.sent {
		require.NoError(t, json.Unmarshal(data, &out[i]))
	}
	return out
}

func wsRequest(t *testing.T, req map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestHandleWebSocketMessage_Rectify(t *testing.T) {
	s := newTestServer(t, testConfig())
	sc, photo := scenarioPhoto(t, "scrambled_order")
	conn := &mockWebSocketConn{}

	s.handleWebSocketMessage(context.Background(), conn, wsRequest(t, map[string]any{
		"type":    "rectify",
		"id":      "job-1",
		"image":   photo,
		"corners": json.RawMessage(sc.CornersJSON()),
		"filters": "grayscale",
		"output":  "png",
	}))

	frames := conn.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "processing", frames[0].Status)
	assert.Equal(t, "job-1", frames[0].RequestID)

	done := frames[1]
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "job-1", done.RequestID)
	require.NotNil(t, done.Result)
	assert.Equal(t, 640, done.Result.Width)
	assert.Equal(t, 480, done.Result.Height)
	assert.Equal(t, "grayscale", done.Result.Filters)

	raw, err := base64.StdEncoding.DecodeString(done.Result.Image)
	require.NoError(t, err)
	f, ok := codec.Sniff(raw)
	require.True(t, ok)
	assert.Equal(t, codec.PNG, f)
}

func TestHandleWebSocketMessage_CornersAsString(t *testing.T) {
	s := newTestServer(t, testConfig())
	_, photo := scenarioPhoto(t, "inset_rectangle")
	conn := &mockWebSocketConn{}

	s.handleWebSocketMessage(context.Background(), conn, wsRequest(t, map[string]any{
		"type":    "rectify",
		"image":   photo,
		"corners": "0.1,0.1;0.9,0.1;0.9,0.9;0.1,0.9",
	}))

	frames := conn.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "completed", frames[1].Status)
	assert.NotEmpty(t, frames[1].RequestID, "id assigned when the client sends none")
	assert.Equal(t, frames[0].RequestID, frames[1].RequestID)
}

func TestHandleWebSocketMessage_Filters(t *testing.T) {
	s := newTestServer(t, testConfig())
	_, photo := scenarioPhoto(t, "inset_rectangle")
	conn := &mockWebSocketConn{}

	s.handleWebSocketMessage(context.Background(), conn, wsRequest(t, map[string]any{
		"type":    "filters",
		"image":   photo,
		"filters": []map[string]any{{"type": "resize", "max_width": 400}},
	}))

	frames := conn.frames(t)
	require.Len(t, frames, 2)
	require.Equal(t, "completed", frames[1].Status)
	assert.Equal(t, 400, frames[1].Result.Width)
	assert.Equal(t, 300, frames[1].Result.Height)
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())
	_, photo := scenarioPhoto(t, "inset_rectangle")

	tests := []struct {
		name   string
		data   []byte
		kind   string
		frames int
	}{
		{"bad json", []byte("{"), "invalid_input", 1},
		{"unknown type", wsRequest(t, map[string]any{"type": "ocr"}), "invalid_input", 1},
		{"degenerate", wsRequest(t, map[string]any{
			"type": "rectify", "image": photo, "corners": "0,0;0.5,0;1,0;0.5,0.5",
		}), "degenerate_geometry", 2},
		{"no filters", wsRequest(t, map[string]any{"type": "filters", "image": photo}), "invalid_input", 2},
		{"bad output", wsRequest(t, map[string]any{
			"type": "filters", "image": photo, "filters": "grayscale", "output": "svg",
		}), "unsupported_format", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			s.handleWebSocketMessage(context.Background(), conn, tt.data)

			frames := conn.frames(t)
			require.Len(t, frames, tt.frames)
			last := frames[len(frames)-1]
			assert.Equal(t, "error", last.Status)
			require.NotNil(t, last.Error)
			assert.Equal(t, tt.kind, last.Error.Kind)
		})
	}
}

func TestScanWebSocket_EndToEnd(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	sc, photo := scenarioPhoto(t, "inset_rectangle")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, wsRequest(t, map[string]any{
		"type":    "rectify",
		"image":   photo,
		"corners": json.RawMessage(sc.CornersJSON()),
		"output":  "jpeg",
	})))

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var frames []WebSocketScanResponse
	for len(frames) < 2 {
		var f WebSocketScanResponse
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
	}
	assert.Equal(t, "processing", frames[0].Status)
	assert.Equal(t, "completed", frames[1].Status)
	assert.Equal(t, codec.JPEG, frames[1].Result.Format)
}
