package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

func (testCtx *TestContext) startTestHTTPServer(configure func(*server.Config)) error {
	if testCtx.HTTPTestServer != nil {
		return errors.New("test server already running")
	}
	cfg := server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  10,
		Estimate:    estimate.DefaultOptions(),
	}
	if configure != nil {
		configure(&cfg)
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(s.Handler()),
		TestServer: s,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	testCtx.HTTPTestServer.Server.Close()
	err := testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

func (testCtx *TestContext) theAPIServerIsRunning() error {
	return testCtx.startTestHTTPServer(nil)
}

func (testCtx *TestContext) theAPIServerIsRunningWithRequestLimit(perMinute int) error {
	return testCtx.startTestHTTPServer(func(cfg *server.Config) {
		cfg.RateLimit.RequestsPerMinute = perMinute
	})
}

// endpointURL substitutes {job_id} and prefixes the test server URL.
func (testCtx *TestContext) endpointURL(endpoint string) (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("test server is not running")
	}
	endpoint = strings.ReplaceAll(endpoint, "{job_id}", testCtx.LastJobID)
	return testCtx.HTTPTestServer.Server.URL + endpoint, nil
}

func (testCtx *TestContext) makeHTTPRequest(method, endpoint, contentType string, body io.Reader) error {
	target, err := testCtx.endpointURL(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, target, body) //nolint:noctx // test helper
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = resp.Header

	if id, err := jsonValue(testCtx.LastHTTPResponse, "job_id"); err == nil {
		if s, ok := id.(string); ok && s != "" {
			testCtx.LastJobID = s
		}
	}
	return nil
}

func (testCtx *TestContext) iUploadTo(name, endpoint string) error {
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	field := "file"
	if strings.HasSuffix(endpoint, "/batch") {
		field = "files"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(name)))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, mw.FormDataContentType(), &body)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, endpoint, "", nil)
}

func (testCtx *TestContext) iPOST(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, "", nil)
}

func (testCtx *TestContext) iDELETE(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodDelete, endpoint, "", nil)
}

func (testCtx *TestContext) iSendJSON(method, endpoint string, doc *godog.DocString) error {
	return testCtx.makeHTTPRequest(method, endpoint, "application/json", strings.NewReader(doc.Content))
}

func (testCtx *TestContext) iPOSTFormField(field, endpoint string, doc *godog.DocString) error {
	form := url.Values{field: {doc.Content}}
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastHTTPResponse)) {
		return fmt.Errorf("response is not valid JSON: %s", testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	v, err := jsonValue(testCtx.LastHTTPResponse, field)
	if err != nil {
		return fmt.Errorf("%w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	if got := fmt.Sprintf("%v", v); got != expected {
		return fmt.Errorf("field %q is %q, expected %q", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, expected %q", name, got, expected)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^the API server is running with a limit of (\d+) requests? per minute$`, testCtx.theAPIServerIsRunningWithRequestLimit)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^I DELETE "([^"]*)"$`, testCtx.iDELETE)
	sc.Step(`^I (POST|PATCH) JSON to "([^"]*)":$`, testCtx.iSendJSON)
	sc.Step(`^I POST the form field "([^"]*)" to "([^"]*)":$`, testCtx.iPOSTFormField)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
