package estimate

import (
	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/segment"
	"github.com/MeKo-Tech/packdim/internal/shape"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// Source tells where a final dimension value came from.
type Source string

const (
	SourceText     Source = "text"
	SourceGeometry Source = "geometry"
)

// WarningGeometryFallbackPrefix starts the warning listing axes filled from
// pixel geometry.
const WarningGeometryFallbackPrefix = "geometry_fallback:"

// Dimension is one resolved axis of the final estimate.
type Dimension struct {
	Axis    mapper.Axis `json:"axis"`
	ValueMM float64     `json:"value_mm"`
	Source  Source      `json:"source"`
}

// Processing holds per-stage durations in nanoseconds.
type Processing struct {
	PreprocessNs int64 `json:"preprocess_ns"`
	SegmentNs    int64 `json:"segment_ns"`
	OCRNs        int64 `json:"ocr_ns"`
	MappingNs    int64 `json:"mapping_ns"`
	TotalNs      int64 `json:"total_ns"`
}

// Report is the complete analysis of one image.
type Report struct {
	Source       string                   `json:"source,omitempty"`
	Image        imageheader.Metadata     `json:"image"`
	Segmentation segment.Result           `json:"segmentation"`
	Shape        shape.Proxy              `json:"shape"`
	Quality      shape.Quality            `json:"quality"`
	OCR          *tokens.ExtractionResult `json:"ocr,omitempty"`
	Mapping      mapper.Result            `json:"mapping"`
	Dimensions   []Dimension              `json:"dimensions_mm"`
	Warnings     []string                 `json:"warnings"`
	Processing   Processing               `json:"processing"`
}

// DimensionsMM returns the final dimensions keyed by axis.
func (r *Report) DimensionsMM() map[mapper.Axis]float64 {
	out := make(map[mapper.Axis]float64, len(r.Dimensions))
	for _, d := range r.Dimensions {
		out[d.Axis] = d.ValueMM
	}
	return out
}

// Dimension returns the final value for axis.
func (r *Report) Dimension(axis mapper.Axis) (Dimension, bool) {
	for _, d := range r.Dimensions {
		if d.Axis == axis {
			return d, true
		}
	}
	return Dimension{}, false
}
