package batch

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

// loadInput reads one file into an estimate input named after its path.
func loadInput(path string, maxBytes int64) (estimate.Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return estimate.Input{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return estimate.Input{}, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from CLI arguments
	if err != nil {
		return estimate.Input{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return estimate.Input{Name: path, Data: data}, nil
}

// loadInputs reads every path. Files that cannot be read are reported in
// skipped and left out of the inputs.
func loadInputs(paths []string, maxBytes int64) ([]estimate.Input, map[string]error) {
	inputs := make([]estimate.Input, 0, len(paths))
	skipped := make(map[string]error)
	for _, path := range paths {
		in, err := loadInput(path, maxBytes)
		if err != nil {
			slog.Warn("Skipping file", "file", path, "error", err)
			skipped[path] = err
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, skipped
}
