package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/jobs"
	"github.com/MeKo-Tech/packdim/internal/tokens"
	"github.com/MeKo-Tech/packdim/internal/version"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	estimator   *estimate.Estimator
	jobs        *jobs.Store
	storage     jobs.Storage
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	maxBatch    int
	workers     int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// MaxBatchItems caps the number of files in one batch request.
	MaxBatchItems int
	Workers       int

	Engine   tokens.Engine
	Estimate estimate.Options
	// Storage keeps uploaded payloads; nil selects in-memory storage.
	Storage   jobs.Storage
	RateLimit RateLimitConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type EngineStatusResponse struct {
	Engine    string `json:"engine"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type JobCreatedResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

type JobListResponse struct {
	Jobs  []jobs.Job `json:"jobs"`
	Count int        `json:"count"`
}

// NewServer creates a server around a fresh job store.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}

	storage := config.Storage
	if storage == nil {
		storage = jobs.NewMemoryStorage()
	}
	engine := config.Engine
	if engine == nil {
		engine = tokens.DefaultEngine("")
	}
	maxBatch := config.MaxBatchItems
	if maxBatch <= 0 {
		maxBatch = 10
	}

	s := &Server{
		estimator:   estimate.New(engine, config.Estimate),
		jobs:        jobs.NewStore(),
		storage:     storage,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     timeout,
		maxBatch:    maxBatch,
		workers:     config.Workers,
	}
	if config.RateLimit.Enabled() {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// Jobs returns the server's job store.
func (s *Server) Jobs() *jobs.Store {
	return s.jobs
}

// Close releases server resources.
func (s *Server) Close() error {
	s.jobs.Clear()
	jobsStored.Set(0)
	return nil
}

// PruneRateLimits forgets the usage of clients idle for longer than idle.
func (s *Server) PruneRateLimits(idle time.Duration) int {
	if s.rateLimiter == nil {
		return 0
	}
	return s.rateLimiter.Prune(idle)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/v1/ocr/status", s.engineStatusHandler)

	mux.HandleFunc("POST /api/v1/jobs", s.rateLimitMiddleware(s.createJobHandler))
	mux.HandleFunc("GET /api/v1/jobs", s.listJobsHandler)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.getJobHandler)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", s.deleteJobHandler)
	mux.HandleFunc("POST /api/v1/jobs/{id}/analyze", s.rateLimitMiddleware(s.analyzeJobHandler))
	mux.HandleFunc("GET /api/v1/jobs/{id}/result", s.jobResultHandler)
	mux.HandleFunc("POST /api/v1/jobs/{id}/corrections", s.addCorrectionHandler)
	mux.HandleFunc("PATCH /api/v1/jobs/{id}/dimensions", s.updateDimensionsHandler)

	mux.HandleFunc("POST /api/v1/ocr/extract", s.rateLimitMiddleware(s.extractHandler))
	mux.HandleFunc("POST /api/v1/ocr/map-dimensions", s.rateLimitMiddleware(s.mapDimensionsHandler))
	mux.HandleFunc("POST /api/v1/estimate", s.rateLimitMiddleware(s.estimateHandler))
	mux.HandleFunc("POST /api/v1/estimate/batch", s.rateLimitMiddleware(s.batchEstimateHandler))

	mux.HandleFunc("GET /ws/estimate", s.estimateWebSocketHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the routed handler wrapped in the CORS and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.corsMiddleware(mux.ServeHTTP)
}

// serviceName is reported by the health endpoint.
func serviceName() string {
	return version.AppName
}
