package shape

import (
	"math"

	"github.com/MeKo-Tech/packdim/internal/common"
)

// DefaultMMPerPixel is the calibration factor used without a reference object.
const DefaultMMPerPixel = 0.2

const (
	mmPlaces = 2

	depthBase   = 0.35
	depthWeight = 0.65
)

// GeometryEstimate is a dimension guess from pixel size alone.
type GeometryEstimate struct {
	WidthMM  float64 `json:"width"`
	HeightMM float64 `json:"height"`
	DepthMM  float64 `json:"depth"`
}

// EstimateFromGeometry scales pixel size by mmPerPixel. Depth is the smaller
// planar axis weighted by foreground density. A non-positive mmPerPixel
// selects DefaultMMPerPixel.
func EstimateFromGeometry(widthPx, heightPx int, foreground, mmPerPixel float64) GeometryEstimate {
	if !(mmPerPixel > 0) || math.IsInf(mmPerPixel, 0) {
		mmPerPixel = DefaultMMPerPixel
	}
	fill := common.Clamp01(foreground)

	width := common.Round(math.Max(float64(widthPx)*mmPerPixel, 0), mmPlaces)
	height := common.Round(math.Max(float64(heightPx)*mmPerPixel, 0), mmPlaces)
	depth := common.Round(math.Max(math.Min(width, height)*(depthBase+depthWeight*fill), 0), mmPlaces)

	return GeometryEstimate{WidthMM: width, HeightMM: height, DepthMM: depth}
}
