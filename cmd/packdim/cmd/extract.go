package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract measurement tokens from an image",
	Long: `Recognize the text on an image and list the measurement tokens found in it.

When no OCR engine is available the payload is scanned as raw text, which
also makes plain text files usable as input.

Examples:
  packdim extract label.png
  packdim extract label.txt --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, file, err := outputSettings(cmd, cfg, config.FormatText, config.FormatJSON, config.FormatYAML)
		if err != nil {
			return err
		}

		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		res := newEstimator(cmd, cfg).Extract(context.Background(), data)

		out, structured, err := renderStructured(res, format)
		if err != nil {
			return err
		}
		if !structured {
			out = extractionText(res)
		}
		return writeOutput(cmd, out, file)
	},
}

func extractionText(res tokens.ExtractionResult) string {
	var b strings.Builder
	b.WriteString(res.Message)
	for _, it := range res.Items {
		b.WriteString("\n")
		value := "-"
		if it.Value != nil {
			value = strconv.FormatFloat(*it.Value, 'f', -1, 64)
		}
		fmt.Fprintf(&b, "%s\tvalue=%s unit=%s confidence=%.2f", it.Text, value, it.Unit, it.Confidence)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addOutputFlags(extractCmd, "text, json, yaml")
	extractCmd.Flags().String("ocr-language", "", "recognition language passed to the OCR engine")
}
