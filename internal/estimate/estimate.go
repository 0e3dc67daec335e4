// Package estimate composes header parsing, segmentation, text extraction,
// dimension mapping and the shape heuristics into one report per image.
package estimate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/packdim/internal/common"
	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/segment"
	"github.com/MeKo-Tech/packdim/internal/shape"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// Options configures an Estimator.
type Options struct {
	MMPerPixel float64
	Segment    segment.Options
	// GeometryFallback fills required axes the text did not resolve from
	// pixel geometry.
	GeometryFallback bool
}

// DefaultOptions returns the standard estimation options.
func DefaultOptions() Options {
	return Options{
		MMPerPixel:       shape.DefaultMMPerPixel,
		Segment:          segment.DefaultOptions(),
		GeometryFallback: true,
	}
}

// Estimator runs the analysis stages. It holds no per-call state and is safe
// for concurrent use when its Engine is.
type Estimator struct {
	engine tokens.Engine
	opts   Options
}

// New creates an Estimator. A nil engine always uses the raw-text fallback.
func New(engine tokens.Engine, opts Options) *Estimator {
	if !(opts.MMPerPixel > 0) {
		opts.MMPerPixel = shape.DefaultMMPerPixel
	}
	return &Estimator{engine: engine, opts: opts}
}

// Options returns the estimator configuration.
func (e *Estimator) Options() Options {
	return e.opts
}

// EngineStatus probes the configured text recognition engine.
func (e *Estimator) EngineStatus() (available bool, message string) {
	if e.engine == nil {
		return false, tokens.MessageEngineFallback
	}
	return e.engine.Probe()
}

// EngineName names the configured engine, "none" when there is none.
func (e *Estimator) EngineName() string {
	if e.engine == nil {
		return "none"
	}
	return e.engine.Name()
}

// Extract runs text extraction on data.
func (e *Estimator) Extract(ctx context.Context, data []byte) tokens.ExtractionResult {
	return tokens.ExtractFromImage(ctx, e.engine, data)
}

// ExtractPhrases runs text extraction on data and also groups the recognized
// text into labelled phrases suitable for mapping.
func (e *Estimator) ExtractPhrases(ctx context.Context, data []byte) (tokens.ExtractionResult, []tokens.Item) {
	ocr := tokens.ExtractFromImage(ctx, e.engine, data)
	return ocr, mapper.Phrases(ocr.Text)
}

// Estimate analyzes data. When items is nil the text stage extracts phrases
// from data; otherwise the given items are mapped as-is. Only an empty or
// unrecognized payload fails.
func (e *Estimator) Estimate(ctx context.Context, data []byte, items []tokens.Item) (*Report, error) {
	sw := common.NewStopwatch()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := imageheader.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("estimate: preprocess: %w", err)
	}
	rep := &Report{Image: meta}
	rep.Processing.PreprocessNs = sw.Lap("preprocess")
	slog.Debug("Parsed image header", "format", meta.Format, "size_bytes", meta.SizeBytes)

	seg, err := segment.Segment(data, e.opts.Segment)
	if err != nil {
		return nil, fmt.Errorf("estimate: segment: %w", err)
	}
	rep.Segmentation = seg
	rep.Processing.SegmentNs = sw.Lap("segment")
	slog.Debug("Segmentation completed", "algorithm", seg.Algorithm, "foreground_ratio", seg.ForegroundRatio)

	width, height, _ := meta.Dimensions()
	mask := shape.Resolution{Width: seg.MaskWidth, Height: seg.MaskHeight}
	rep.Shape = shape.BuildProxy(width, height, seg.ForegroundRatio, mask)
	rep.Quality = shape.ScoreQuality(width, height, seg.ForegroundRatio, seg.Confidence)

	if items == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sw.Skip()
		ocr, phrases := e.ExtractPhrases(ctx, data)
		rep.OCR = &ocr
		items = phrases
		rep.Processing.OCRNs = sw.Lap("ocr")
		slog.Debug("Text extraction completed",
			"items", len(ocr.Items),
			"phrases", len(phrases),
			"engine_available", ocr.EngineAvailable)
	}

	sw.Skip()
	rep.Mapping = mapper.Map(items)
	rep.Processing.MappingNs = sw.Lap("mapping")

	rep.Dimensions, rep.Warnings = e.resolve(rep.Mapping, width, height, seg.ForegroundRatio)
	rep.Processing.TotalNs = sw.Elapsed().Nanoseconds()

	slog.Debug("Estimate completed",
		"dimensions", len(rep.Dimensions),
		"warnings", len(rep.Warnings),
		"duration_ms", rep.Processing.TotalNs/1000000,
		"stages", sw)
	return rep, nil
}

// resolve merges text-mapped values with the geometry estimate for the
// required axes that are still missing.
func (e *Estimator) resolve(m mapper.Result, width, height int, foreground float64) ([]Dimension, []string) {
	warnings := append(make([]string, 0, len(m.Warnings)+1), m.Warnings...)
	useGeometry := e.opts.GeometryFallback && shape.HasGeometry(width, height)

	var geometry map[mapper.Axis]float64
	if useGeometry {
		g := shape.EstimateFromGeometry(width, height, foreground, e.opts.MMPerPixel)
		geometry = map[mapper.Axis]float64{
			mapper.Width:  g.WidthMM,
			mapper.Height: g.HeightMM,
			mapper.Depth:  g.DepthMM,
		}
	}

	dims := make([]Dimension, 0, len(mapper.Axes()))
	var filled []string
	for _, axis := range mapper.Axes() {
		if v, ok := m.Value(axis); ok {
			dims = append(dims, Dimension{Axis: axis, ValueMM: v, Source: SourceText})
			continue
		}
		if v, ok := geometry[axis]; ok {
			dims = append(dims, Dimension{Axis: axis, ValueMM: v, Source: SourceGeometry})
			filled = append(filled, axis.String())
		}
	}
	if len(filled) > 0 {
		warnings = append(warnings, WarningGeometryFallbackPrefix+strings.Join(filled, ","))
	}
	return dims, warnings
}
