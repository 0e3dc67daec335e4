//nolint:lll
package config

// Config represents the complete configuration for packdim.
// It covers every command (inspect, extract, map, estimate, serve) and
// is loaded from configuration files, environment variables and flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Estimation pipeline
	Estimate EstimateConfig `mapstructure:"estimate" yaml:"estimate" json:"estimate"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// EstimateConfig contains segmentation, geometry and OCR settings.
type EstimateConfig struct {
	MMPerPixel             float64 `mapstructure:"mm_per_pixel" yaml:"mm_per_pixel" json:"mm_per_pixel"`
	MaskSize               int     `mapstructure:"mask_size" yaml:"mask_size" json:"mask_size"`
	SampleBytes            int     `mapstructure:"sample_bytes" yaml:"sample_bytes" json:"sample_bytes"`
	LumaThreshold          int     `mapstructure:"luma_threshold" yaml:"luma_threshold" json:"luma_threshold"`
	SegmentationConfidence float64 `mapstructure:"segmentation_confidence" yaml:"segmentation_confidence" json:"segmentation_confidence"`
	MaxPixels              int     `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	DecodePixels           bool    `mapstructure:"decode_pixels" yaml:"decode_pixels" json:"decode_pixels"`
	GeometryFallback       bool    `mapstructure:"geometry_fallback" yaml:"geometry_fallback" json:"geometry_fallback"`
	OCRLanguage            string  `mapstructure:"ocr_language" yaml:"ocr_language" json:"ocr_language"`
	Workers                int     `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	UploadDir       string `mapstructure:"upload_dir" yaml:"upload_dir" json:"upload_dir"`

	// Rate limiting and quotas (0 disables a limit)
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
