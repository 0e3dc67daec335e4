package batch

import (
	"errors"
	"fmt"
	"slices"
)

// Output formats understood by Result.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Config holds all configuration for a batch run.
type Config struct {
	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// MaxFileBytes skips larger files; 0 disables the check.
	MaxFileBytes int64

	// Output settings
	Format     string
	OutputFile string

	// Progress settings
	ShowProgress bool
	Quiet        bool
	ShowStats    bool
}

// DefaultConfig returns a configuration that walks directories one level
// deep and prints text.
func DefaultConfig() *Config {
	return &Config{
		Workers:         4,
		IncludePatterns: slices.Clone(DefaultIncludePatterns),
		Format:          FormatText,
	}
}

// Validate checks the configuration for values Run cannot work with.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxFileBytes < 0 {
		return errors.New("max file bytes must be non-negative")
	}
	if !slices.Contains([]string{FormatText, FormatJSON, FormatYAML, FormatCSV}, c.Format) {
		return fmt.Errorf("unsupported output format: %s", c.Format)
	}
	return nil
}
