package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/batch"
	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <image|dir>...",
	Short: "Estimate package dimensions for one or more images",
	Long: `Run the full analysis: header, foreground mask, text extraction, axis
mapping and the geometry fallback for axes the label does not name.

A single file prints one report. Several files or directories are processed
in parallel and reported together.

Examples:
  packdim estimate box.png
  packdim estimate box.png --items '[{"text":"W 12 mm","confidence":0.9}]'
  packdim estimate photos/ --recursive --workers 8 --format csv --output dims.csv
  packdim estimate a.png b.jpg --progress --stats`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEstimateCommand,
}

func runEstimateCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format, file, err := outputSettings(cmd, cfg, config.FormatText, config.FormatJSON, config.FormatYAML, config.FormatCSV)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	est := newEstimator(cmd, cfg)

	if len(args) == 1 && (args[0] == "-" || isRegularFile(args[0])) {
		return estimateSingle(ctx, cmd, est, args[0], format, file)
	}

	rawItems, _ := cmd.Flags().GetString("items")
	if rawItems != "" {
		return fmt.Errorf("--items applies to a single image only")
	}

	bc := batch.DefaultConfig()
	bc.Workers = intFlag(cmd, "workers", cfg.Estimate.Workers)
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.Format = format
	bc.OutputFile = file

	res, err := batch.Run(ctx, est, args, bc, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ShowStats && !bc.Quiet {
		res.PrintStats(cmd.ErrOrStderr())
	}
	if len(res.Failures) == len(res.Paths) {
		return fmt.Errorf("all %d images failed", len(res.Paths))
	}
	return nil
}

func estimateSingle(ctx context.Context, cmd *cobra.Command, est *estimate.Estimator, path, format, file string) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	var items []tokens.Item
	if raw, _ := cmd.Flags().GetString("items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return fmt.Errorf("invalid items JSON: %w", err)
		}
		if items == nil {
			items = []tokens.Item{}
		}
	}

	rep, err := est.Estimate(ctx, data, items)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	rep.Source = path

	var out string
	switch format {
	case config.FormatJSON:
		out, err = estimate.ToJSON(rep)
	case config.FormatYAML:
		out, err = estimate.ToYAML(rep)
	case config.FormatCSV:
		out, err = estimate.ToCSV(rep)
	default:
		out, err = estimate.ToPlainText(rep)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, file)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	addOutputFlags(estimateCmd, "text, json, yaml, csv")
	addEstimateFlags(estimateCmd)
	estimateCmd.Flags().String("items", "", "JSON list of OCR items used instead of text extraction")
	estimateCmd.Flags().IntP("workers", "w", 4, "number of parallel workers for several images")
	estimateCmd.Flags().BoolP("recursive", "r", false, "walk directories recursively")
	estimateCmd.Flags().StringSlice("include", batch.DefaultIncludePatterns, "file patterns to include")
	estimateCmd.Flags().StringSlice("exclude", nil, "file patterns to exclude")
	estimateCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	estimateCmd.Flags().Bool("stats", false, "print processing statistics on stderr")
	estimateCmd.Flags().BoolP("quiet", "q", false, "suppress progress and status messages")
}
