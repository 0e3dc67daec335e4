package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/version"
)

const (
	msgImageOnly   = "Only image uploads are allowed"
	msgMissingFile = "Missing file upload"
	msgJobNotFound = "Job not found"
)

var errNotImage = errors.New("not an image upload")

// upload is one file read from a multipart request.
type upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName(),
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// engineStatusHandler reports whether the recognition engine can run.
func (s *Server) engineStatusHandler(w http.ResponseWriter, _ *http.Request) {
	available, message := s.estimator.EngineStatus()
	s.writeJSON(w, http.StatusOK, EngineStatusResponse{
		Engine:    s.estimator.EngineName(),
		Available: available,
		Message:   message,
	})
}

// parseUploadForm parses a multipart or urlencoded body within the upload limit.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	err := r.ParseMultipartForm(s.maxUploadMB << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		// ParseMultipartForm already parsed any urlencoded body
		return nil
	}
	return err
}

// handleFormParseError maps a form parsing failure to a status code.
func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeErrorResponse(w, fmt.Sprintf("Upload exceeds %d MB", s.maxUploadMB), http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, fmt.Sprintf("Failed to parse form: %v", err), http.StatusBadRequest)
}

// readUpload returns the named file field. It returns http.ErrMissingFile
// when the field is absent and errNotImage when its content type is not an
// image type.
func readUpload(r *http.Request, field string) (*upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, http.ErrMissingFile
	}
	return readFileHeader(r.MultipartForm.File[field][0])
}

func readFileHeader(fh *multipart.FileHeader) (*upload, error) {
	contentType := fh.Header.Get("Content-Type")
	if !isImageContentType(contentType) {
		return nil, errNotImage
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	uploadSizeBytes.Observe(float64(len(data)))

	return &upload{
		Filename:    filepath.Base(fh.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func isImageContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

// writeUploadError answers a failed readUpload.
func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, http.ErrMissingFile):
		s.writeErrorResponse(w, msgMissingFile, http.StatusBadRequest)
	case errors.Is(err, errNotImage):
		s.writeErrorResponse(w, msgImageOnly, http.StatusBadRequest)
	default:
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	}
}

// writeEstimateError answers a failed estimator call.
func (s *Server) writeEstimateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imageheader.ErrEmptyInput), errors.Is(err, imageheader.ErrUnsupportedFormat):
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, "Estimation timed out", http.StatusGatewayTimeout)
	default:
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

// requestContext bounds a request's processing time by the server timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// writeJSON writes v as an indented JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
