// Package batch estimates package dimensions for many image files at once.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no image files found")

// Result holds the outcome of a batch run. Reports and Paths share indices;
// a failed file has a nil report and an entry in Failures.
type Result struct {
	Reports     []*estimate.Report
	Paths       []string
	Failures    map[string]error
	Duration    time.Duration
	WorkerCount int
}

// Run discovers the files named by args and estimates them with est.
// Individual file failures are collected in the result; only discovery
// failures and cancellation abort the run.
func Run(ctx context.Context, est *estimate.Estimator, args []string, config *Config, progress io.Writer) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	files, err := DiscoverFiles(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	inputs, failures := loadInputs(files, config.MaxFileBytes)
	result := &Result{Failures: failures, WorkerCount: config.Workers}
	if len(inputs) == 0 {
		result.Paths = files
		result.Reports = make([]*estimate.Report, len(files))
		return result, nil
	}

	pc := estimate.ParallelConfig{
		MaxWorkers: config.Workers,
		ErrorHandler: func(_ int, in estimate.Input, err error) {
			failures[in.Name] = err
		},
	}
	if config.ShowProgress && !config.Quiet {
		if progress == nil {
			progress = os.Stderr
		}
		pc.ProgressCallback = estimate.NewConsoleProgressCallback(progress, "Estimating: ")
	} else {
		pc.ProgressCallback = estimate.NewLogProgressCallback(nil)
	}

	start := time.Now()
	reports, err := est.EstimateBatch(ctx, inputs, pc)
	result.Duration = time.Since(start)
	if reports == nil {
		return nil, fmt.Errorf("batch estimate failed: %w", err)
	}

	byName := make(map[string]*estimate.Report, len(inputs))
	for i, in := range inputs {
		byName[in.Name] = reports[i]
	}
	result.Paths = files
	result.Reports = make([]*estimate.Report, len(files))
	for i, path := range files {
		result.Reports[i] = byName[path]
	}
	return result, nil
}

// Succeeded returns the reports of the files that were estimated.
func (r *Result) Succeeded() []*estimate.Report {
	out := make([]*estimate.Report, 0, len(r.Reports))
	for _, rep := range r.Reports {
		if rep != nil {
			out = append(out, rep)
		}
	}
	return out
}

// Format renders the result in the given output format.
func (r *Result) Format(format string) (string, error) {
	return formatResults(r, format)
}

// SaveResults writes the formatted result to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.Format(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, err = fmt.Fprintln(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Paths)
	processed := total - len(r.Failures)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", processed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", len(r.Failures))
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if processed > 0 {
		avg := r.Duration / time.Duration(processed)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Microsecond))
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(processed)/r.Duration.Seconds())
	}
}
