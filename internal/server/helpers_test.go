package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

const sampleLabel = "W 12 mm\nH 8 mm\nD 4 mm"

// fakeEngine returns fixed text.
type fakeEngine struct {
	text string
	err  error
}

func (f fakeEngine) Name() string { return "fake" }

func (f fakeEngine) Probe() (bool, string) { return true, tokens.MessageEngineAvailable }

func (f fakeEngine) Recognize(context.Context, []byte) (string, error) {
	return f.text, f.err
}

// newTestServer creates a server with a fake engine returning text.
func newTestServer(t *testing.T, text string, configure ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  5,
		Engine:      fakeEngine{text: text},
		Estimate:    estimate.DefaultOptions(),
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// pngPayload is a PNG signature and IHDR with the given size; it does not decode.
func pngPayload(width, height uint32) []byte {
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	data = binary.BigEndian.AppendUint32(data, width)
	data = binary.BigEndian.AppendUint32(data, height)
	return data
}

type formFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func imageFile(name string, data []byte) formFile {
	return formFile{field: "file", name: name, contentType: "image/png", data: data}
}

// multipartRequest builds a multipart request with files and plain fields.
func multipartRequest(t *testing.T, method, target string, files []formFile, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// createJob uploads payload and returns the new job id.
func createJob(t *testing.T, s *Server, name string, payload []byte) string {
	t.Helper()
	rec := serve(s, multipartRequest(t, http.MethodPost, "/api/v1/jobs", []formFile{imageFile(name, payload)}, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, ok := decodeBody(t, rec)["job_id"].(string)
	require.True(t, ok)
	return id
}

func axisValues(m map[mapper.Axis]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for a, v := range m {
		out[a.String()] = v
	}
	return out
}
