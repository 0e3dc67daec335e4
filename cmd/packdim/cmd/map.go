package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map recognized text or OCR items to package axes",
	Long: `Assign measurement values to width, height, depth and max diameter.

Input is either a JSON list of OCR items ({"text", "value", "unit",
"confidence"}) or free text, which is split into one item per labelled phrase.

Examples:
  packdim map --text "W 12 mm H 8 mm D 4 mm"
  packdim map --items '[{"text":"width 12 cm","confidence":0.9}]'
  packdim map --items-file items.json --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, file, err := outputSettings(cmd, cfg, config.FormatText, config.FormatJSON, config.FormatYAML)
		if err != nil {
			return err
		}

		items, err := mapInput(cmd)
		if err != nil {
			return err
		}
		res := mapper.Map(items)

		out, structured, err := renderStructured(res, format)
		if err != nil {
			return err
		}
		if !structured {
			out = mappingText(res)
		}
		return writeOutput(cmd, out, file)
	},
}

// mapInput reads items from --items, --items-file or --text.
func mapInput(cmd *cobra.Command) ([]tokens.Item, error) {
	raw, _ := cmd.Flags().GetString("items")
	if path, _ := cmd.Flags().GetString("items-file"); path != "" {
		data, err := readInput(cmd, path)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}
	if raw != "" {
		var items []tokens.Item
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("invalid items JSON: %w", err)
		}
		return items, nil
	}

	if text, _ := cmd.Flags().GetString("text"); text != "" {
		return mapper.Phrases(text), nil
	}
	return nil, errors.New("provide --items, --items-file or --text")
}

func mappingText(res mapper.Result) string {
	var b strings.Builder
	for _, axis := range mapper.Axes() {
		if v, ok := res.Value(axis); ok {
			fmt.Fprintf(&b, "%s: %s mm\n", axis, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	if b.Len() == 0 {
		return "no dimensions found"
	}
	return strings.TrimRight(b.String(), "\n")
}

func init() {
	rootCmd.AddCommand(mapCmd)
	addOutputFlags(mapCmd, "text, json, yaml")
	mapCmd.Flags().String("items", "", "JSON list of OCR items")
	mapCmd.Flags().String("items-file", "", "file containing a JSON list of OCR items (- for stdin)")
	mapCmd.Flags().String("text", "", "free text to split into labelled phrases")
	mapCmd.MarkFlagsMutuallyExclusive("items", "items-file", "text")
}
