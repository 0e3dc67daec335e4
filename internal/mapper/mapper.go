// Package mapper assigns measurement tokens to package axes and resolves
// conflicting candidates into one value per axis.
package mapper

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/packdim/internal/common"
	"github.com/MeKo-Tech/packdim/internal/tokens"
	"github.com/MeKo-Tech/packdim/internal/units"
)

// Reason records how a candidate was assigned to its axis.
type Reason string

const (
	ReasonTokenMatch   Reason = "token-match"
	ReasonSizeSequence Reason = "size-sequence"
)

const (
	// WarningConflictPrefix starts every per-axis conflict warning.
	WarningConflictPrefix = "conflict:"
	// WarningMissingPrefix starts the missing required axes warning.
	WarningMissingPrefix = "missing_required:"

	mmUnitBonus    = 0.3
	otherUnitBonus = 0.1
	tokenBonus     = 0.2
	valuePlaces    = 3
)

var sizeSequenceAxes = [...]Axis{Width, Height, Depth}

// Candidate is one proposed value for an axis.
type Candidate struct {
	Axis        Axis    `json:"axis"`
	ValueMM     float64 `json:"value_mm"`
	Confidence  float64 `json:"confidence"`
	Score       float64 `json:"score"`
	SourceText  string  `json:"source_text"`
	SourceIndex int     `json:"source_index"`
	Reason      Reason  `json:"reason"`
}

// Result is the outcome of Map.
type Result struct {
	MappedDimensionsMM map[Axis]float64 `json:"mapped_dimensions_mm"`
	MappingItems       []Candidate      `json:"mapping_items"`
	Warnings           []string         `json:"warnings"`
}

// Value returns the mapped value for axis.
func (r Result) Value(axis Axis) (float64, bool) {
	v, ok := r.MappedDimensionsMM[axis]
	return v, ok
}

// MissingRequired returns the required axes without a mapped value, in axis
// order.
func (r Result) MissingRequired() []Axis {
	var missing []Axis
	for _, axis := range RequiredAxes() {
		if _, ok := r.MappedDimensionsMM[axis]; !ok {
			missing = append(missing, axis)
		}
	}
	return missing
}

type resolvedValue struct {
	value float64
	unit  string
}

// Map turns recognized items into at most one millimeter value per axis.
func Map(items []tokens.Item) Result {
	var candidates []Candidate
	for idx, item := range items {
		candidates = append(candidates, itemCandidates(idx, item)...)
	}

	best := make(map[Axis]Candidate)
	warnings := make([]string, 0)
	for _, cand := range candidates {
		prev, ok := best[cand.Axis]
		switch {
		case !ok:
			best[cand.Axis] = cand
		case cand.Score > prev.Score:
			warnings = append(warnings, fmt.Sprintf("%s%s:replaced lower-confidence candidate", WarningConflictPrefix, cand.Axis))
			best[cand.Axis] = cand
		case cand.Score == prev.Score && cand.ValueMM != prev.ValueMM:
			warnings = append(warnings, fmt.Sprintf("%s%s:same-score different value", WarningConflictPrefix, cand.Axis))
		}
	}

	res := Result{
		MappedDimensionsMM: make(map[Axis]float64, len(best)),
		MappingItems:       make([]Candidate, 0, len(best)),
	}
	for _, axis := range Axes() {
		if cand, ok := best[axis]; ok {
			res.MappedDimensionsMM[axis] = cand.ValueMM
			res.MappingItems = append(res.MappingItems, cand)
		}
	}
	sort.SliceStable(res.MappingItems, func(i, j int) bool {
		return res.MappingItems[i].SourceIndex < res.MappingItems[j].SourceIndex
	})

	if missing := res.MissingRequired(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, axis := range missing {
			names[i] = axis.String()
		}
		sort.Strings(names)
		warnings = append(warnings, WarningMissingPrefix+strings.Join(names, ","))
	}
	res.Warnings = warnings
	return res
}

func itemCandidates(idx int, item tokens.Item) []Candidate {
	text := item.Text
	if tokens.HasFalsePositive(text) {
		return nil
	}

	values := resolveValues(item)
	if len(values) == 0 {
		return nil
	}

	confidence := common.Clamp01(item.Confidence)
	build := func(axis Axis, v resolvedValue, reason Reason, bonus float64) Candidate {
		mm, label := units.ToMillimeters(v.value, v.unit)
		unitBonus := otherUnitBonus
		if label == units.Millimeter {
			unitBonus = mmUnitBonus
		}
		return Candidate{
			Axis:        axis,
			ValueMM:     common.Round(math.Max(mm, 0), valuePlaces),
			Confidence:  confidence,
			Score:       confidence + unitBonus + bonus,
			SourceText:  text,
			SourceIndex: idx,
			Reason:      reason,
		}
	}

	axis, found := DetectAxis(text)
	if !found {
		if !hasSizeCue(text) {
			return nil
		}
		n := min(len(values), len(sizeSequenceAxes))
		out := make([]Candidate, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, build(sizeSequenceAxes[i], values[i], ReasonSizeSequence, 0))
		}
		return out
	}

	return []Candidate{build(axis, values[0], ReasonTokenMatch, tokenBonus)}
}

// resolveValues prefers the item's pre-parsed value. A missing, non-finite or
// negative value falls back to scanning the text.
func resolveValues(item tokens.Item) []resolvedValue {
	if v := item.Value; v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0 {
		return []resolvedValue{{value: *v, unit: item.Unit}}
	}

	matches := tokens.ScanValues(tokens.NormalizeDecimalCommas(item.Text))
	out := make([]resolvedValue, 0, len(matches))
	for _, m := range matches {
		out = append(out, resolvedValue{value: m.Value, unit: m.Unit})
	}
	return out
}

func hasSizeCue(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, " x ") || strings.Contains(lowered, "×") || strings.Contains(lowered, "size")
}
