package estimate

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToJSON serializes reports to pretty JSON. A single report is written as an
// object, several as an array.
func ToJSON(reports ...*Report) (string, error) {
	var v any = reports
	if len(reports) == 1 {
		if reports[0] == nil {
			return "", errors.New("nil report")
		}
		v = reports[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes reports to YAML with the same field names and order as
// the JSON output.
func ToYAML(reports ...*Report) (string, error) {
	js, err := ToJSON(reports...)
	if err != nil {
		return "", err
	}
	return JSONToYAML([]byte(js))
}

// JSONToYAML re-encodes a JSON document as YAML, keeping key order.
func JSONToYAML(js []byte) (string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(js, &node); err != nil {
		return "", fmt.Errorf("convert to yaml: %w", err)
	}
	clearStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return "", fmt.Errorf("convert to yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// clearStyle drops the flow and quoting styles inherited from JSON so the
// output reads as block YAML.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// ToPlainText renders a short human-readable summary of a report.
func ToPlainText(rep *Report) (string, error) {
	if rep == nil {
		return "", errors.New("nil report")
	}
	var b strings.Builder
	if rep.Source != "" {
		fmt.Fprintf(&b, "%s\n", rep.Source)
	}
	fmt.Fprintf(&b, "format: %s", rep.Image.Format)
	if w, h, ok := rep.Image.Dimensions(); ok {
		fmt.Fprintf(&b, " (%dx%d px)", w, h)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "shape: %s, compactness %s\n", rep.Shape.ShapeFamily, rep.Shape.Compactness)
	for _, d := range rep.Dimensions {
		fmt.Fprintf(&b, "%s: %s mm (%s)\n", d.Axis, strconv.FormatFloat(d.ValueMM, 'f', -1, 64), d.Source)
	}
	fmt.Fprintf(&b, "quality: %.4f\n", rep.Quality.OverallScore)
	for _, w := range rep.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ToCSV exports one row per resolved dimension with a header.
func ToCSV(reports ...*Report) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"source", "axis", "value_mm", "origin", "overall_score"})
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		for _, d := range rep.Dimensions {
			_ = w.Write([]string{
				rep.Source,
				d.Axis.String(),
				strconv.FormatFloat(d.ValueMM, 'f', -1, 64),
				string(d.Source),
				fmt.Sprintf("%.4f", rep.Quality.OverallScore),
			})
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
