package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/segment"
	"github.com/MeKo-Tech/packdim/internal/shape"
)

// InspectResult is the header and mask analysis of one image.
type InspectResult struct {
	File         string               `json:"file"`
	Image        imageheader.Metadata `json:"image"`
	Segmentation segment.Result       `json:"segmentation"`
	Shape        shape.Proxy          `json:"shape"`
	Quality      shape.Quality        `json:"quality"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Inspect the image header and foreground mask",
	Long: `Parse the image header (format, size, pixel dimensions), compute the
foreground mask signal and classify the package shape without reading any text.

Use "-" to read the image from stdin.

Examples:
  packdim inspect box.png
  packdim inspect box.webp --format yaml`,
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

		res, err := inspect(args[0], data, cfg)
		if err != nil {
			return err
		}

		out, structured, err := renderStructured(res, format)
		if err != nil {
			return err
		}
		if !structured {
			out = res.text()
		}
		return writeOutput(cmd, out, file)
	},
}

func inspect(name string, data []byte, cfg *config.Config) (*InspectResult, error) {
	meta, err := imageheader.Parse(data)
	if err != nil {
		return nil, err
	}
	opts := cfg.ToEstimateOptions()
	seg, err := segment.Segment(data, opts.Segment)
	if err != nil {
		return nil, err
	}

	w, h, _ := meta.Dimensions()
	mask := shape.Resolution{Width: seg.MaskWidth, Height: seg.MaskHeight}
	return &InspectResult{
		File:         name,
		Image:        meta,
		Segmentation: seg,
		Shape:        shape.BuildProxy(w, h, seg.ForegroundRatio, mask),
		Quality:      shape.ScoreQuality(w, h, seg.ForegroundRatio, seg.Confidence),
	}, nil
}

func (r *InspectResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.File)
	fmt.Fprintf(&b, "format: %s, %d bytes", r.Image.Format, r.Image.SizeBytes)
	if w, h, ok := r.Image.Dimensions(); ok {
		fmt.Fprintf(&b, ", %dx%d px", w, h)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "segmentation: %s, foreground %.4f\n", r.Segmentation.Algorithm, r.Segmentation.ForegroundRatio)
	fmt.Fprintf(&b, "shape: %s, compactness %s, aspect %.4f\n", r.Shape.ShapeFamily, r.Shape.Compactness, r.Shape.AspectRatio)
	fmt.Fprintf(&b, "quality: %.4f", r.Quality.OverallScore)
	return b.String()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addOutputFlags(inspectCmd, "text, json, yaml")
}
