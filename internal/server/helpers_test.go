package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/testutil"
)

// stubScanner returns canned results for transport-level tests.
type stubScanner struct {
	res *scan.Result
	err error

	rectify *scan.RectifyRequest
	filters *scan.FilterRequest
}

func (s *stubScanner) RectifyPerspective(_ context.Context, req scan.RectifyRequest) (*scan.Result, error) {
	s.rectify = &req
	return s.res, s.err
}

func (s *stubScanner) ApplyFilters(_ context.Context, req scan.FilterRequest) (*scan.Result, error) {
	s.filters = &req
	return s.res, s.err
}

func testConfig() Config {
	return Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  30,
		ScanConfig:  scan.DefaultConfig(),
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// multipartRequest builds a POST with an "image" file part and the given
// fields. A nil image omits the file part.
func multipartRequest(t *testing.T, path string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func scenarioPhoto(t *testing.T, name string) (testutil.Scenario, []byte) {
	t.Helper()
	s := testutil.ScenarioByName(t, name)
	return s, testutil.EncodePNG(t, s.Render())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}
