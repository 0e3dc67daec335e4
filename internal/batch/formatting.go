package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

type fileEntry struct {
	File   string           `json:"file"`
	Report *estimate.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// formatResults formats the batch result in the specified format.
func formatResults(r *Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(r)
	case FormatYAML:
		js, err := formatJSON(r)
		if err != nil {
			return "", err
		}
		return estimate.JSONToYAML([]byte(js))
	case FormatCSV:
		return estimate.ToCSV(r.Succeeded()...)
	default:
		return formatText(r)
	}
}

func (r *Result) entries() []fileEntry {
	entries := make([]fileEntry, len(r.Paths))
	for i, path := range r.Paths {
		entries[i] = fileEntry{File: path, Report: r.Reports[i]}
		if err, failed := r.Failures[path]; failed {
			entries[i].Error = err.Error()
		}
	}
	return entries
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	doc := struct {
		Images []fileEntry `json:"images"`
	}{Images: r.entries()}

	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}

// formatText formats results as plain text, one block per file.
func formatText(r *Result) (string, error) {
	var output strings.Builder
	for i, entry := range r.entries() {
		if i > 0 {
			output.WriteString("\n\n")
		}
		fmt.Fprintf(&output, "# %s\n", entry.File)
		if entry.Report == nil {
			fmt.Fprintf(&output, "error: %s", entry.Error)
			continue
		}
		summary := *entry.Report
		summary.Source = ""
		text, err := estimate.ToPlainText(&summary)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
	}
	return output.String(), nil
}
