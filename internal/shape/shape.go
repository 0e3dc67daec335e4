// Package shape derives a coarse shape description, quality heuristics and a
// geometry-only dimension estimate from pixel size and a foreground fraction.
package shape

import "github.com/MeKo-Tech/packdim/internal/common"

// Family is the shape family inferred from the aspect ratio.
type Family string

const (
	Cylindrical         Family = "cylindrical-like"
	HorizontalPrismatic Family = "horizontal-prismatic-like"
	VerticalPrismatic   Family = "vertical-prismatic-like"
)

// Compactness buckets the fill ratio.
type Compactness string

const (
	CompactnessLow    Compactness = "low"
	CompactnessMedium Compactness = "medium"
	CompactnessHigh   Compactness = "high"
)

const (
	ratioPlaces = 4

	cylindricalMin = 0.9
	cylindricalMax = 1.1

	lowFillLimit    = 0.35
	mediumFillLimit = 0.7
)

// Resolution is the size of a segmentation mask.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Proxy is a coarse description of the object's silhouette.
type Proxy struct {
	ShapeFamily    Family      `json:"shape_family"`
	Compactness    Compactness `json:"compactness"`
	AspectRatio    float64     `json:"aspect_ratio"`
	FillRatio      float64     `json:"fill_ratio"`
	MaskResolution Resolution  `json:"mask_resolution"`
}

// AspectRatio returns width/height rounded to 4 decimals, or 1 when either
// dimension is unknown.
func AspectRatio(widthPx, heightPx int) float64 {
	if widthPx <= 0 || heightPx <= 0 {
		return 1.0
	}
	return common.Round(float64(widthPx)/float64(heightPx), ratioPlaces)
}

// ClassifyFamily maps an aspect ratio to a shape family.
func ClassifyFamily(aspect float64) Family {
	switch {
	case aspect >= cylindricalMin && aspect <= cylindricalMax:
		return Cylindrical
	case aspect > cylindricalMax:
		return HorizontalPrismatic
	default:
		return VerticalPrismatic
	}
}

// ClassifyCompactness maps a fill ratio to a compactness bucket.
func ClassifyCompactness(fill float64) Compactness {
	switch {
	case fill < lowFillLimit:
		return CompactnessLow
	case fill < mediumFillLimit:
		return CompactnessMedium
	default:
		return CompactnessHigh
	}
}

// BuildProxy classifies the silhouette. Unknown pixel dimensions are passed
// as zero.
func BuildProxy(widthPx, heightPx int, foreground float64, mask Resolution) Proxy {
	aspect := AspectRatio(widthPx, heightPx)
	fill := common.Round(common.Clamp01(foreground), ratioPlaces)

	return Proxy{
		ShapeFamily:    ClassifyFamily(aspect),
		Compactness:    ClassifyCompactness(fill),
		AspectRatio:    aspect,
		FillRatio:      fill,
		MaskResolution: mask,
	}
}
