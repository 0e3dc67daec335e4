package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// MapDimensionsResponse is the mapping outcome. OCR is set when the items
// were extracted from an uploaded file.
type MapDimensionsResponse struct {
	mapper.Result
	OCR *tokens.ExtractionResult `json:"ocr,omitempty"`
}

// extractHandler runs text extraction on an uploaded image.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		s.handleFormParseError(w, err)
		return
	}
	up, err := readUpload(r, "file")
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	s.writeJSON(w, http.StatusOK, s.estimator.Extract(ctx, up.Data))
}

// mapDimensionsHandler maps the form field ocr_items (a JSON list) or, when it
// is absent, the phrases extracted from the uploaded file.
func (s *Server) mapDimensionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		s.handleFormParseError(w, err)
		return
	}

	if raw := r.PostFormValue("ocr_items"); raw != "" {
		items, err := parseItems(raw)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, http.StatusOK, MapDimensionsResponse{Result: mapper.Map(items)})
		return
	}

	up, err := readUpload(r, "file")
	if errors.Is(err, http.ErrMissingFile) {
		s.writeErrorResponse(w, "Provide ocr_items or file", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	ocr, phrases := s.estimator.ExtractPhrases(ctx, up.Data)
	s.writeJSON(w, http.StatusOK, MapDimensionsResponse{Result: mapper.Map(phrases), OCR: &ocr})
}

// estimateHandler runs the full estimate on an uploaded image. The optional
// form field ocr_items replaces text extraction.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		s.handleFormParseError(w, err)
		return
	}
	up, err := readUpload(r, "file")
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	var items []tokens.Item
	if raw := r.PostFormValue("ocr_items"); raw != "" {
		if items, err = parseItems(raw); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	rep, err := s.estimator.Estimate(ctx, up.Data, items)
	observeEstimate("direct", rep, err, time.Since(start))
	if err != nil {
		s.writeEstimateError(w, err)
		return
	}
	rep.Source = up.Filename
	s.writeJSON(w, http.StatusOK, rep)
}

// parseItems decodes a JSON list of items. An empty list is valid.
func parseItems(raw string) ([]tokens.Item, error) {
	items := make([]tokens.Item, 0)
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid ocr_items: %w", err)
	}
	return items, nil
}
