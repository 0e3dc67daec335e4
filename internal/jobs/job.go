// Package jobs keeps analysis jobs and their uploaded payloads.
package jobs

import (
	"errors"
	"time"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/shape"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyProcessing is returned when an analysis is started twice.
	ErrAlreadyProcessing = errors.New("job is already processing")
	// ErrInvalidCorrection is returned for corrections with a negative or
	// non-finite value.
	ErrInvalidCorrection = errors.New("invalid correction")
)

// Correction is a manual override of one axis. Corrections are only ever
// appended.
type Correction struct {
	Axis      mapper.Axis `json:"axis"`
	ValueMM   float64     `json:"value_mm"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Job is a snapshot of one uploaded image and its analysis outcome.
type Job struct {
	ID          string    `json:"job_id"`
	Status      Status    `json:"status"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// FileRef locates the payload in the job's Storage.
	FileRef string `json:"-"`

	Image        *imageheader.Metadata `json:"image,omitempty"`
	Shape        *shape.Proxy          `json:"shape,omitempty"`
	Quality      *shape.Quality        `json:"quality,omitempty"`
	Mapping      *mapper.Result        `json:"mapping,omitempty"`
	Dimensions   []estimate.Dimension  `json:"dimensions_mm,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Corrections  []Correction          `json:"corrections"`
}

// CorrectedDimensions returns the final dimensions with the latest correction
// per axis applied on top of the analysis result.
func (j Job) CorrectedDimensions() map[mapper.Axis]float64 {
	out := make(map[mapper.Axis]float64, len(j.Dimensions))
	for _, d := range j.Dimensions {
		out[d.Axis] = d.ValueMM
	}
	for _, c := range j.Corrections {
		out[c.Axis] = c.ValueMM
	}
	return out
}

func (j *Job) clone() Job {
	c := *j
	if j.Image != nil {
		img := *j.Image
		c.Image = &img
	}
	if j.Shape != nil {
		s := *j.Shape
		c.Shape = &s
	}
	if j.Quality != nil {
		q := *j.Quality
		c.Quality = &q
	}
	if j.Mapping != nil {
		m := cloneMapping(*j.Mapping)
		c.Mapping = &m
	}
	c.Dimensions = append([]estimate.Dimension(nil), j.Dimensions...)
	c.Warnings = append([]string(nil), j.Warnings...)
	c.Corrections = append(make([]Correction, 0, len(j.Corrections)), j.Corrections...)
	return c
}

func cloneMapping(m mapper.Result) mapper.Result {
	out := mapper.Result{
		MappedDimensionsMM: make(map[mapper.Axis]float64, len(m.MappedDimensionsMM)),
		MappingItems:       append([]mapper.Candidate(nil), m.MappingItems...),
		Warnings:           append([]string(nil), m.Warnings...),
	}
	for k, v := range m.MappedDimensionsMM {
		out.MappedDimensionsMM[k] = v
	}
	return out
}
