package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/jobs"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/shape"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// AnalyzeRequest is the optional body of an analyze call. Items given here
// replace text extraction.
type AnalyzeRequest struct {
	OCRItems []tokens.Item `json:"ocr_items"`
}

// CorrectionRequest is the body of a correction call.
type CorrectionRequest struct {
	Axis    string   `json:"axis"`
	ValueMM *float64 `json:"value_mm"`
	Note    string   `json:"note,omitempty"`
}

// JobResultResponse is the final outcome of a completed job with
// corrections applied.
type JobResultResponse struct {
	JobID        string                  `json:"job_id"`
	Status       jobs.Status             `json:"status"`
	DimensionsMM map[mapper.Axis]float64 `json:"dimensions_mm"`
	Dimensions   []estimate.Dimension    `json:"dimensions"`
	Shape        *shape.Proxy            `json:"shape,omitempty"`
	Quality      *shape.Quality          `json:"quality,omitempty"`
	Warnings     []string                `json:"warnings"`
	Corrections  []jobs.Correction       `json:"corrections"`
}

// createJobHandler stores an uploaded image as a new job.
func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		s.handleFormParseError(w, err)
		return
	}
	up, err := readUpload(r, "file")
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	job := s.jobs.Create(up.Filename, up.ContentType, len(up.Data), "")
	ref, err := s.storage.Save(job.ID, up.Filename, up.Data)
	if err != nil {
		_ = s.jobs.Delete(job.ID)
		slog.Error("Failed to store upload", "job_id", job.ID, "error", err)
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	if _, err := s.jobs.Update(job.ID, func(j *jobs.Job) { j.FileRef = ref }); err != nil {
		s.writeJobError(w, err)
		return
	}
	jobsStored.Set(float64(s.jobs.Len()))

	slog.Info("Job created", "job_id", job.ID, "filename", up.Filename, "size", len(up.Data))
	s.writeJSON(w, http.StatusCreated, JobCreatedResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) listJobsHandler(w http.ResponseWriter, _ *http.Request) {
	list := s.jobs.List()
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: list, Count: len(list)})
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Get(id)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	if err := s.jobs.Delete(id); err != nil {
		s.writeJobError(w, err)
		return
	}
	if job.FileRef != "" {
		if err := s.storage.Remove(job.FileRef); err != nil {
			slog.Warn("Failed to remove stored upload", "job_id", id, "error", err)
		}
	}
	jobsStored.Set(float64(s.jobs.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// analyzeJobHandler runs the estimator on a stored upload. An analysis failure
// is recorded on the job, which is returned either way.
func (s *Server) analyzeJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req AnalyzeRequest
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
			return
		}
	}

	job, err := s.jobs.Start(id)
	if err != nil {
		s.writeJobError(w, err)
		return
	}

	data, err := s.storage.Load(job.FileRef)
	if err != nil {
		s.failJob(w, id, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	rep, err := s.estimator.Estimate(ctx, data, req.OCRItems)
	observeEstimate("job", rep, err, time.Since(start))
	if err != nil {
		s.failJob(w, id, err)
		return
	}

	job, err = s.jobs.Complete(id, rep)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	slog.Info("Job analyzed", "job_id", id, "axes", len(rep.Dimensions), "warnings", len(rep.Warnings))
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) failJob(w http.ResponseWriter, id string, cause error) {
	slog.Warn("Job analysis failed", "job_id", id, "error", cause)
	job, err := s.jobs.Fail(id, cause)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// jobResultHandler returns the corrected dimensions of a completed job.
func (s *Server) jobResultHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	if job.Status != jobs.StatusCompleted {
		s.writeErrorResponse(w, fmt.Sprintf("Job is %s, not completed", job.Status), http.StatusConflict)
		return
	}

	warnings := job.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	s.writeJSON(w, http.StatusOK, JobResultResponse{
		JobID:        job.ID,
		Status:       job.Status,
		DimensionsMM: job.CorrectedDimensions(),
		Dimensions:   job.Dimensions,
		Shape:        job.Shape,
		Quality:      job.Quality,
		Warnings:     warnings,
		Corrections:  job.Corrections,
	})
}

// addCorrectionHandler appends one manual correction.
func (s *Server) addCorrectionHandler(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}
	axis, err := mapper.ParseAxis(req.Axis)
	if err != nil {
		s.writeErrorResponse(w, "Invalid axis: "+req.Axis, http.StatusBadRequest)
		return
	}
	if req.ValueMM == nil {
		s.writeErrorResponse(w, "value_mm is required", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.AddCorrection(r.PathValue("id"), jobs.Correction{
		Axis:    axis,
		ValueMM: *req.ValueMM,
		Note:    req.Note,
	})
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

// updateDimensionsHandler accepts {"width": 12, ...} and appends one
// correction per axis in axis order. Nothing is recorded unless every key is
// a valid axis.
func (s *Server) updateDimensionsHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		s.writeErrorResponse(w, "No dimensions provided", http.StatusBadRequest)
		return
	}

	values := make(map[mapper.Axis]float64, len(body))
	for name, v := range body {
		axis, err := mapper.ParseAxis(name)
		if err != nil {
			s.writeErrorResponse(w, "Invalid axis: "+name, http.StatusBadRequest)
			return
		}
		if v < 0 {
			s.writeErrorResponse(w, "Dimensions must not be negative", http.StatusBadRequest)
			return
		}
		values[axis] = v
	}

	id := r.PathValue("id")
	if _, err := s.jobs.Get(id); err != nil {
		s.writeJobError(w, err)
		return
	}

	var job jobs.Job
	for _, axis := range mapper.Axes() {
		v, ok := values[axis]
		if !ok {
			continue
		}
		var err error
		job, err = s.jobs.AddCorrection(id, jobs.Correction{Axis: axis, ValueMM: v})
		if err != nil {
			s.writeJobError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, job)
}

// writeJobError maps job store errors to status codes.
func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		s.writeErrorResponse(w, msgJobNotFound, http.StatusNotFound)
	case errors.Is(err, jobs.ErrAlreadyProcessing):
		s.writeErrorResponse(w, "Job is already processing", http.StatusConflict)
	case errors.Is(err, jobs.ErrInvalidCorrection):
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}
