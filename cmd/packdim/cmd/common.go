package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

// Flag lookups that fall back to the configured value unless the flag was
// given on the command line.

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	return fallback
}

func floatFlag(cmd *cobra.Command, name string, fallback float64) float64 {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetFloat64(name)
		return v
	}
	return fallback
}

func boolFlag(cmd *cobra.Command, name string, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fallback
}

// addOutputFlags registers --format and --output.
func addOutputFlags(cmd *cobra.Command, formats string) {
	cmd.Flags().StringP("format", "f", config.FormatText, "output format ("+formats+")")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}

// addEstimateFlags registers the estimator overrides shared by several commands.
func addEstimateFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("mm-per-pixel", 0, "calibration factor for the geometry estimate")
	cmd.Flags().Bool("geometry-fallback", true, "fill unresolved axes from pixel geometry")
	cmd.Flags().String("ocr-language", "", "recognition language passed to the OCR engine")
}

// estimatorOptions applies the estimator flags to the configured options.
func estimatorOptions(cmd *cobra.Command, cfg *config.Config) estimate.Options {
	opts := cfg.ToEstimateOptions()
	if cmd.Flags().Lookup("mm-per-pixel") != nil {
		opts.MMPerPixel = floatFlag(cmd, "mm-per-pixel", opts.MMPerPixel)
		opts.GeometryFallback = boolFlag(cmd, "geometry-fallback", opts.GeometryFallback)
	}
	return opts
}

// engineFor returns the recognition engine for the configured language.
func engineFor(cmd *cobra.Command, cfg *config.Config) tokens.Engine {
	language := cfg.Estimate.OCRLanguage
	if cmd.Flags().Lookup("ocr-language") != nil {
		language = stringFlag(cmd, "ocr-language", language)
	}
	return tokens.DefaultEngine(language)
}

// newEstimator builds an estimator from the configuration and flag overrides.
func newEstimator(cmd *cobra.Command, cfg *config.Config) *estimate.Estimator {
	return estimate.New(engineFor(cmd, cfg), estimatorOptions(cmd, cfg))
}

// readInput reads a file argument, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// renderStructured renders v as JSON or YAML; ok is false for other formats.
func renderStructured(v interface{}, format string) (out string, ok bool, err error) {
	switch format {
	case config.FormatJSON, config.FormatYAML:
	default:
		return "", false, nil
	}
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", true, err
	}
	if format == config.FormatJSON {
		return string(js), true, nil
	}
	y, err := estimate.JSONToYAML(js)
	return y, true, err
}

// writeOutput writes content to file, or to the command's stdout.
func writeOutput(cmd *cobra.Command, content, file string) error {
	if file == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(file, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", file)
	return nil
}

// outputSettings resolves --format and --output against the config.
func outputSettings(cmd *cobra.Command, cfg *config.Config, allowed ...string) (format, file string, err error) {
	format = stringFlag(cmd, "format", cfg.Output.Format)
	file = stringFlag(cmd, "output", cfg.Output.File)
	for _, a := range allowed {
		if a == format {
			return format, file, nil
		}
	}
	return "", "", fmt.Errorf("unsupported output format %q for %s", format, cmd.Name())
}
