package shape

import (
	"math"

	"github.com/MeKo-Tech/packdim/internal/common"
)

const (
	calibratedReliability   = 0.7
	uncalibratedReliability = 0.2

	edgeFalloff = 1.4

	segmentationWeight = 0.5
	edgeWeight         = 0.3
	calibrationWeight  = 0.2
)

// Quality holds heuristic quality scores, each in [0, 1].
type Quality struct {
	SegmentationConfidence float64 `json:"segmentation_confidence"`
	CalibrationReliability float64 `json:"calibration_reliability"`
	EdgeStability          float64 `json:"edge_stability"`
	OverallScore           float64 `json:"overall_score"`
}

// HasGeometry reports whether both pixel dimensions are known.
func HasGeometry(widthPx, heightPx int) bool {
	return widthPx > 0 && heightPx > 0
}

// ScoreQuality rates an analysis. Calibration reliability is a two-level
// value depending only on whether pixel geometry is known. Edge stability
// peaks when the foreground covers half the frame.
func ScoreQuality(widthPx, heightPx int, foreground, segConfidence float64) Quality {
	fill := common.Clamp01(foreground)
	seg := common.Clamp01(segConfidence)

	calibration := uncalibratedReliability
	if HasGeometry(widthPx, heightPx) {
		calibration = calibratedReliability
	}

	edge := common.Clamp01(common.Round(1-math.Abs(fill-0.5)*edgeFalloff, ratioPlaces))
	overall := common.Round(seg*segmentationWeight+edge*edgeWeight+calibration*calibrationWeight, ratioPlaces)

	return Quality{
		SegmentationConfidence: common.Round(seg, ratioPlaces),
		CalibrationReliability: common.Round(calibration, ratioPlaces),
		EdgeStability:          common.Round(edge, ratioPlaces),
		OverallScore:           common.Clamp01(overall),
	}
}
