package jobs

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

// Store is an in-memory job registry safe for concurrent use. Callers only
// ever receive copies of the stored jobs.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	now   func() time.Time
	newID func() string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Create registers a new job in the uploaded state.
func (s *Store) Create(filename, contentType string, size int, fileRef string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &Job{
		ID:          s.newID(),
		Status:      StatusUploaded,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		FileRef:     fileRef,
		CreatedAt:   now,
		UpdatedAt:   now,
		Corrections: make([]Correction, 0),
	}
	s.jobs[job.ID] = job
	return job.clone()
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job.clone(), nil
}

// List returns all jobs ordered by creation time.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Update applies fn to the stored job under the store lock.
func (s *Store) Update(id string, fn func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(job)
	job.UpdatedAt = s.now()
	return job.clone(), nil
}

// Start moves a job to processing. A job that is already processing is
// rejected so each job is analyzed at most once at a time.
func (s *Store) Start(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status == StatusProcessing {
		return Job{}, fmt.Errorf("%w: %s", ErrAlreadyProcessing, id)
	}
	job.Status = StatusProcessing
	job.ErrorMessage = ""
	job.UpdatedAt = s.now()
	return job.clone(), nil
}

// Complete records a successful analysis.
func (s *Store) Complete(id string, rep *estimate.Report) (Job, error) {
	return s.Update(id, func(j *Job) {
		img, sh, q, m := rep.Image, rep.Shape, rep.Quality, cloneMapping(rep.Mapping)
		j.Status = StatusCompleted
		j.Image = &img
		j.Shape = &sh
		j.Quality = &q
		j.Mapping = &m
		j.Dimensions = append([]estimate.Dimension(nil), rep.Dimensions...)
		j.Warnings = append([]string(nil), rep.Warnings...)
		j.ErrorMessage = ""
	})
}

// Fail records a failed analysis with the error text verbatim.
func (s *Store) Fail(id string, cause error) (Job, error) {
	return s.Update(id, func(j *Job) {
		j.Status = StatusFailed
		j.ErrorMessage = cause.Error()
	})
}

// AddCorrection appends a correction to the job.
func (s *Store) AddCorrection(id string, c Correction) (Job, error) {
	if math.IsNaN(c.ValueMM) || math.IsInf(c.ValueMM, 0) || c.ValueMM < 0 {
		return Job{}, fmt.Errorf("%w: value_mm must be a non-negative number", ErrInvalidCorrection)
	}
	if !c.Axis.Valid() {
		return Job{}, fmt.Errorf("%w: unknown axis", ErrInvalidCorrection)
	}
	return s.Update(id, func(j *Job) {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		j.Corrections = append(j.Corrections, c)
	})
}

// Delete removes a job.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.jobs, id)
	return nil
}

// Clear removes every job.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*Job)
}
