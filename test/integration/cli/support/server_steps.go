package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/spf13/afero"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/server"
	"github.com/MeKo-Tech/flatscan/internal/storage"
)

func (testCtx *TestContext) startServer(cfg server.Config) error {
	if testCtx.Server != nil {
		testCtx.Server.Close()
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	testCtx.Server = httptest.NewServer(srv.Handler())
	return nil
}

func defaultServerConfig() server.Config {
	return server.Config{
		CORSOrigin:    "*",
		MaxUploadMB:   10,
		TimeoutSec:    30,
		MaxConcurrent: 4,
		ScanConfig:    scan.DefaultConfig(),
	}
}

// theScanAPIIsRunning starts an in-process server with default settings.
func (testCtx *TestContext) theScanAPIIsRunning() error {
	return testCtx.startServer(defaultServerConfig())
}

// theScanAPIIsRunningWithALimitOf starts a server with rate limiting.
func (testCtx *TestContext) theScanAPIIsRunningWithALimitOf(perMinute int) error {
	cfg := defaultServerConfig()
	cfg.RateLimit = server.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: perMinute,
		RequestsPerHour:   1000,
		MaxRequestsPerDay: 1000,
		MaxDataPerDay:     1 << 30,
	}
	return testCtx.startServer(cfg)
}

// theScanAPIIsRunningWithStorage starts a server persisting into the temp
// directory.
func (testCtx *TestContext) theScanAPIIsRunningWithStorage() error {
	cfg := defaultServerConfig()
	cfg.Store = storage.NewFSStore(afero.NewOsFs(), testCtx.Path("scans"))
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastHTTPResponse = body
	return nil
}

// iGET requests an endpoint of the running server.
func (testCtx *TestContext) iGET(endpoint string) error {
	if testCtx.Server == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.Server.URL + endpoint)
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

// iPOSTTheImageToWithFields uploads the current image with extra form
// fields taken from a two-column table.
func (testCtx *TestContext) iPOSTTheImageToWithFields(endpoint string, table *godog.Table) error {
	fields := map[string]string{}
	if table != nil {
		for _, row := range table.Rows {
			if len(row.Cells) != 2 {
				return fmt.Errorf("expected | field | value | rows")
			}
			fields[row.Cells[0].Value] = testCtx.substitute(row.Cells[1].Value)
		}
	}
	return testCtx.post(endpoint, fields)
}

// iPOSTTheImageTo uploads the current image without extra fields.
func (testCtx *TestContext) iPOSTTheImageTo(endpoint string) error {
	return testCtx.post(endpoint, nil)
}

func (testCtx *TestContext) post(endpoint string, fields map[string]string) error {
	if testCtx.Server == nil {
		return fmt.Errorf("server is not running")
	}
	data, err := os.ReadFile(testCtx.Image)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(testCtx.Image))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.Server.URL+endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

// theResponseStatusShouldBe verifies the HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseHeaderShouldBe verifies a response header value.
func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// theResponseHeaderShouldBeSet verifies a response header is present.
func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

// theJSONResponseFieldShouldBe compares a dotted field path of the JSON body.
func (testCtx *TestContext) theJSONResponseFieldShouldBe(path, expected string) error {
	var doc map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\n%s", err, testCtx.LastHTTPResponse)
	}
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot navigate into %q", part)
		}
		if cur, ok = m[part]; !ok {
			return fmt.Errorf("field %q not found in %s", path, testCtx.LastHTTPResponse)
		}
	}
	if got := fmt.Sprint(cur); got != expected {
		return fmt.Errorf("field %s is %q, want %q", path, got, expected)
	}
	return nil
}

// theResponseShouldBeAnImageOf decodes the response body.
func (testCtx *TestContext) theResponseShouldBeAnImageOf(format string, width, height int) error {
	d, err := codec.Decode(testCtx.LastHTTPResponse, "")
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if string(d.Format) != format || d.Width != width || d.Height != height {
		return fmt.Errorf("response is %s %dx%d, want %s %dx%d", d.Format, d.Width, d.Height, format, width, height)
	}
	return nil
}

// theStorageDirectoryShouldHoldObjects counts persisted objects.
func (testCtx *TestContext) theStorageDirectoryShouldHoldObjects(n int) error {
	s := storage.NewFSStore(afero.NewOsFs(), testCtx.Path("scans"))
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	if len(keys) != n {
		return fmt.Errorf("storage holds %d objects, want %d", len(keys), n)
	}
	return nil
}

// iSendRequestsTo posts the current image n times.
func (testCtx *TestContext) iSendRequestsTo(n int, endpoint string, table *godog.Table) error {
	for i := 0; i < n; i++ {
		if err := testCtx.iPOSTTheImageToWithFields(endpoint, table); err != nil {
			return fmt.Errorf("request %d: %w", i+1, err)
		}
	}
	return nil
}

// RegisterServerSteps registers the HTTP API step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan API is running$`, testCtx.theScanAPIIsRunning)
	sc.Step(`^the scan API is running with a limit of (\d+) requests per minute$`, testCtx.theScanAPIIsRunningWithALimitOf)
	sc.Step(`^the scan API is running with storage$`, testCtx.theScanAPIIsRunningWithStorage)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the image to "([^"]*)"$`, testCtx.iPOSTTheImageTo)
	sc.Step(`^I POST the image to "([^"]*)" with:$`, testCtx.iPOSTTheImageToWithFields)
	sc.Step(`^I POST the image (\d+) times to "([^"]*)" with:$`, testCtx.iSendRequestsTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the JSON response field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONResponseFieldShouldBe)
	sc.Step(`^the response should be a (\w+) image of (\d+)x(\d+)$`, testCtx.theResponseShouldBeAnImageOf)
	sc.Step(`^the storage directory should hold (\d+) objects?$`, testCtx.theStorageDirectoryShouldHoldObjects)
}
