package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

// BatchEstimateResponse represents the response for batch estimation.
type BatchEstimateResponse struct {
	Success bool                   `json:"success"`
	Results []BatchEstimateResult  `json:"results"`
	Summary BatchProcessingSummary `json:"summary"`
}

// BatchEstimateResult represents a single result in batch processing.
type BatchEstimateResult struct {
	Name    string           `json:"name"`
	Success bool             `json:"success"`
	Report  *estimate.Report `json:"report,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// BatchProcessingSummary provides summary statistics for batch processing.
type BatchProcessingSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// batchEstimateHandler estimates every file of the multipart field "files"
// with the estimator's worker pool.
func (s *Server) batchEstimateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		s.handleFormParseError(w, err)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		s.writeErrorResponse(w, "No files provided in batch request", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) > s.maxBatch {
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d items)", s.maxBatch), http.StatusBadRequest)
		return
	}

	inputs := make([]estimate.Input, 0, len(headers))
	for _, fh := range headers {
		up, err := readFileHeader(fh)
		if err != nil {
			if errors.Is(err, errNotImage) {
				s.writeErrorResponse(w, fmt.Sprintf("%s: %s", fh.Filename, msgImageOnly), http.StatusBadRequest)
				return
			}
			s.writeUploadError(w, err)
			return
		}
		inputs = append(inputs, estimate.Input{Name: up.Filename, Data: up.Data})
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	failures := make(map[int]error)
	cfg := estimate.DefaultParallelConfig()
	if s.workers > 0 {
		cfg.MaxWorkers = s.workers
	}
	cfg.ErrorHandler = func(i int, _ estimate.Input, err error) { failures[i] = err }

	start := time.Now()
	reports, err := s.estimator.EstimateBatch(ctx, inputs, cfg)
	total := time.Since(start)
	if reports == nil {
		// Only cancellation discards the whole batch
		s.writeEstimateError(w, err)
		return
	}

	results := make([]BatchEstimateResult, len(inputs))
	summary := BatchProcessingSummary{TotalItems: len(inputs)}
	for i, in := range inputs {
		res := BatchEstimateResult{Name: in.Name}
		if ferr, failed := failures[i]; failed {
			res.Error = ferr.Error()
			summary.Failed++
			estimatesTotal.WithLabelValues("batch", "error").Inc()
		} else {
			res.Success = true
			res.Report = reports[i]
			summary.Successful++
			estimatesTotal.WithLabelValues("batch", "success").Inc()
			observeReport(reports[i])
		}
		results[i] = res
	}
	estimateDuration.WithLabelValues("batch").Observe(total.Seconds())

	summary.TotalDuration = total.Seconds()
	summary.AvgItemTime = summary.TotalDuration / float64(summary.TotalItems)

	s.writeJSON(w, http.StatusOK, BatchEstimateResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	})
}
