package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/segment"
	"github.com/MeKo-Tech/packdim/internal/shape"
)

// Output formats understood by the CLI.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	seg := segment.DefaultOptions()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Estimate: EstimateConfig{
			MMPerPixel:             shape.DefaultMMPerPixel,
			MaskSize:               seg.MaskSize,
			SampleBytes:            seg.SampleBytes,
			LumaThreshold:          int(seg.LumaThreshold),
			SegmentationConfidence: seg.Confidence,
			MaxPixels:              seg.MaxPixels,
			DecodePixels:           seg.DecodePixels,
			GeometryFallback:       true,
			OCRLanguage:            "eng",
			Workers:                4,
		},
		Output: OutputConfig{
			Format: FormatText,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{FormatText, FormatJSON, FormatYAML, FormatCSV}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := c.Estimate.validate(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	limits := map[string]int{
		"server.requests_per_minute":  c.Server.RequestsPerMinute,
		"server.requests_per_hour":    c.Server.RequestsPerHour,
		"server.max_requests_per_day": c.Server.MaxRequestsPerDay,
		"server.max_data_per_day_mb":  c.Server.MaxDataPerDayMB,
	}
	for name, v := range limits {
		if v < 0 {
			return fmt.Errorf("invalid %s: %d (must not be negative)", name, v)
		}
	}

	return nil
}

func (e *EstimateConfig) validate() error {
	if e.MMPerPixel <= 0 {
		return fmt.Errorf("invalid estimate.mm_per_pixel: %.4f (must be positive)", e.MMPerPixel)
	}
	if e.MaskSize <= 0 {
		return fmt.Errorf("invalid estimate.mask_size: %d (must be positive)", e.MaskSize)
	}
	if e.SampleBytes <= 0 {
		return fmt.Errorf("invalid estimate.sample_bytes: %d (must be positive)", e.SampleBytes)
	}
	if e.LumaThreshold < 0 || e.LumaThreshold > 255 {
		return fmt.Errorf("invalid estimate.luma_threshold: %d (must be between 0 and 255)", e.LumaThreshold)
	}
	if err := validateThreshold(e.SegmentationConfidence, "estimate.segmentation_confidence"); err != nil {
		return err
	}
	if e.MaxPixels < 0 {
		return fmt.Errorf("invalid estimate.max_pixels: %d (must not be negative)", e.MaxPixels)
	}
	if e.Workers <= 0 {
		return fmt.Errorf("invalid estimate.workers: %d (must be positive)", e.Workers)
	}
	return nil
}

// ToEstimateOptions converts the config to estimator options.
func (c *Config) ToEstimateOptions() estimate.Options {
	return estimate.Options{
		MMPerPixel: c.Estimate.MMPerPixel,
		Segment: segment.Options{
			MaskSize:      c.Estimate.MaskSize,
			SampleBytes:   c.Estimate.SampleBytes,
			LumaThreshold: uint8(min(max(c.Estimate.LumaThreshold, 0), 255)), //nolint:gosec // clamped
			Confidence:    c.Estimate.SegmentationConfidence,
			MaxPixels:     c.Estimate.MaxPixels,
			DecodePixels:  c.Estimate.DecodePixels,
		},
		GeometryFallback: c.Estimate.GeometryFallback,
	}
}

// ToParallelConfig converts the config to batch estimation settings.
func (c *Config) ToParallelConfig() estimate.ParallelConfig {
	cfg := estimate.DefaultParallelConfig()
	cfg.MaxWorkers = c.Estimate.Workers
	return cfg
}

// RateLimitEnabled reports whether any request limit or quota is set.
func (s *ServerConfig) RateLimitEnabled() bool {
	return s.RequestsPerMinute > 0 || s.RequestsPerHour > 0 || s.MaxRequestsPerDay > 0 || s.MaxDataPerDayMB > 0
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
