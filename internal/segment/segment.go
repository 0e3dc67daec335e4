// Package segment produces the foreground signal consumed by the shape
// heuristics. It is a placeholder for a real segmentation model: decodable
// images are thresholded on luma, anything else falls back to a statistic
// over the raw payload bytes.
package segment

import (
	"bytes"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WEBP decoder

	"github.com/MeKo-Tech/packdim/internal/common"
	"github.com/MeKo-Tech/packdim/internal/imageheader"
)

// Algorithm names the method that produced a Result.
type Algorithm string

const (
	AlgorithmLumaThreshold    Algorithm = "luma-threshold"
	AlgorithmByteDistribution Algorithm = "byte-distribution-threshold"
)

const (
	DefaultMaskSize      = 64
	DefaultSampleBytes   = 4096
	DefaultLumaThreshold = 128
	DefaultConfidence    = 0.5
	// DefaultMaxPixels bounds the decoded image size; larger images use the
	// byte statistic.
	DefaultMaxPixels = 40_000_000

	highByte    = 128
	opaqueAlpha = 128
	ratioPlaces = 4
)

// Options configures Segment.
type Options struct {
	MaskSize      int
	SampleBytes   int
	LumaThreshold uint8
	Confidence    float64
	MaxPixels     int
	// DecodePixels enables the luma path. When false only the byte statistic runs.
	DecodePixels bool
}

// DefaultOptions returns the standard segmentation options.
func DefaultOptions() Options {
	return Options{
		MaskSize:      DefaultMaskSize,
		SampleBytes:   DefaultSampleBytes,
		LumaThreshold: DefaultLumaThreshold,
		Confidence:    DefaultConfidence,
		MaxPixels:     DefaultMaxPixels,
		DecodePixels:  true,
	}
}

// Result summarizes a foreground mask.
type Result struct {
	MaskWidth       int       `json:"mask_width"`
	MaskHeight      int       `json:"mask_height"`
	ForegroundRatio float64   `json:"foreground_ratio"`
	BackgroundRatio float64   `json:"background_ratio"`
	Confidence      float64   `json:"confidence"`
	Algorithm       Algorithm `json:"algorithm"`
}

func (o Options) withDefaults() Options {
	if o.MaskSize <= 0 {
		o.MaskSize = DefaultMaskSize
	}
	if o.SampleBytes <= 0 {
		o.SampleBytes = DefaultSampleBytes
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	o.Confidence = common.Clamp01(o.Confidence)
	return o
}

// Segment computes the foreground ratio of data.
func Segment(data []byte, opts Options) (Result, error) {
	if len(data) == 0 {
		return Result{}, &imageheader.HeaderError{Operation: "segment", Err: imageheader.ErrEmptyInput}
	}
	opts = opts.withDefaults()

	ratio, algorithm := byteDistribution(data, opts.SampleBytes), AlgorithmByteDistribution
	if opts.DecodePixels {
		if img, ok := decode(data, opts.MaxPixels); ok {
			ratio, algorithm = lumaThreshold(img, opts.MaskSize, opts.LumaThreshold), AlgorithmLumaThreshold
		}
	}

	return Result{
		MaskWidth:       opts.MaskSize,
		MaskHeight:      opts.MaskSize,
		ForegroundRatio: ratio,
		BackgroundRatio: common.Round(1-ratio, ratioPlaces),
		Confidence:      opts.Confidence,
		Algorithm:       algorithm,
	}, nil
}

func decode(data []byte, maxPixels int) (image.Image, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	return img, true
}

// byteDistribution returns the share of bytes >= 128 among the first
// sampleBytes bytes.
func byteDistribution(data []byte, sampleBytes int) float64 {
	sample := data[:min(len(data), sampleBytes)]
	high := 0
	for _, b := range sample {
		if b >= highByte {
			high++
		}
	}
	return common.Round(float64(high)/float64(len(sample)), ratioPlaces)
}

// lumaThreshold downsamples img to a size x size grayscale mask and returns
// the share of opaque pixels darker than threshold.
func lumaThreshold(img image.Image, size int, threshold uint8) float64 {
	mask := imaging.Resize(imaging.Grayscale(img), size, size, imaging.Box)

	dark, total := 0, 0
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+4]
			total++
			if px[3] >= opaqueAlpha && px[0] < threshold {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return common.Round(float64(dark)/float64(total), ratioPlaces)
}
