package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var corsHeaders = [][2]string{
	{"Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS"},
	{"Access-Control-Allow-Headers", "Content-Type, Authorization"},
	{"Access-Control-Max-Age", "86400"},
}

// corsMiddleware answers preflight requests and wraps every other request
// with status capture for the request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		for _, kv := range corsHeaders {
			h.Set(kv[0], kv[1])
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rec := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		began := time.Now()
		next(rec, r)
		observeRequest(r, rec.statusCode, time.Since(began))
	}
}

func observeRequest(r *http.Request, status int, elapsed time.Duration) {
	endpoint := endpointLabel(r)
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
}

// endpointLabel returns the matched route pattern so job ids do not end up
// as label values.
func endpointLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, found := strings.Cut(r.Pattern, " "); found {
		return path
	}
	return r.Pattern
}

// rateLimitMiddleware rejects requests over the per-client rate or quota.
// The declared body size counts against the daily data quota.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}
		if err := s.rateLimiter.Allow(getClientIP(r), max(r.ContentLength, 0)); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

type limitResponse struct {
	Error      string  `json:"error"`
	Type       string  `json:"type,omitempty"`
	Limit      int64   `json:"limit,omitempty"`
	Used       *int64  `json:"used,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
	Resets     string  `json:"resets,omitempty"`
	Message    string  `json:"message"`
}

// handleRateLimitError writes a 429 with the limit headers, or a 500 when
// err is not a limiter error.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	status := http.StatusTooManyRequests
	body := limitResponse{Message: err.Error()}
	h := w.Header()

	var rle *RateLimitError
	var qe *QuotaExceededError
	switch {
	case errors.As(err, &rle):
		rateLimitHits.WithLabelValues(rle.Type).Inc()
		h.Set("X-RateLimit-Type", rle.Type)
		h.Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
		h.Set("Retry-After", fmt.Sprintf("%.0f", rle.RetryAfter.Seconds()))
		body.Error, body.Type, body.Limit = "rate_limit_exceeded", rle.Type, int64(rle.Limit)
		body.RetryAfter = rle.RetryAfter.Seconds()
	case errors.As(err, &qe):
		rateLimitHits.WithLabelValues(qe.Type).Inc()
		h.Set("X-Quota-Type", qe.Type)
		h.Set("X-Quota-Limit", strconv.FormatInt(qe.Limit, 10))
		h.Set("X-Quota-Used", strconv.FormatInt(qe.Used, 10))
		h.Set("X-Quota-Resets", qe.Resets.UTC().Format(http.TimeFormat))
		used := qe.Used
		body.Error, body.Type, body.Limit, body.Used = "quota_exceeded", qe.Type, qe.Limit, &used
		body.Resets = qe.Resets.Format(time.RFC3339)
	default:
		status = http.StatusInternalServerError
		body.Error, body.Message = "internal_error", "Rate limiting check failed"
	}

	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the host part of RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
