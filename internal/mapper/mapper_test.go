package mapper

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/packdim/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textItems(pairs ...any) []tokens.Item {
	items := make([]tokens.Item, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		items = append(items, tokens.TextItem(pairs[i].(string), pairs[i+1].(float64)))
	}
	return items
}

func TestMap_LabelledAxes(t *testing.T) {
	res := Map(textItems("W 10 mm", 0.9, "H 20 mm", 0.92, "D 5 mm", 0.88))

	assert.Equal(t, map[Axis]float64{Width: 10, Height: 20, Depth: 5}, res.MappedDimensionsMM)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.MappingItems, 3)
	for i, cand := range res.MappingItems {
		assert.Equal(t, i, cand.SourceIndex)
		assert.Equal(t, ReasonTokenMatch, cand.Reason)
	}
	assert.InDelta(t, 0.9+0.3+0.2, res.MappingItems[0].Score, 1e-9)
}

func TestMap_HigherScoreReplaces(t *testing.T) {
	res := Map(textItems("width 30 mm", 0.5, "width 25 mm", 0.95, "height 10 mm", 0.9, "depth 8 mm", 0.9))

	v, ok := res.Value(Width)
	require.True(t, ok)
	assert.InDelta(t, 25.0, v, 1e-9)
	assert.Equal(t, []string{"conflict:width:replaced lower-confidence candidate"}, res.Warnings)
	assert.Equal(t, 1, res.MappingItems[0].SourceIndex)
}

func TestMap_MissingRequired(t *testing.T) {
	res := Map(textItems("height 20 mm", 0.8, "diameter 45 mm", 0.9))

	assert.Equal(t, map[Axis]float64{Height: 20, MaxDiameter: 45}, res.MappedDimensionsMM)
	assert.Equal(t, []string{"missing_required:depth,width"}, res.Warnings)
	assert.Equal(t, []Axis{Width, Depth}, res.MissingRequired())
}

func TestMap_FalsePositivesContributeNothing(t *testing.T) {
	items := textItems(
		"firmware v2.0", 0.95,
		"lot 12.34.56 mm", 0.95,
		"W 10 mm", 0.9,
		"H 20 mm", 0.9,
		"D 5 mm", 0.9,
	)
	res := Map(items)

	assert.Equal(t, map[Axis]float64{Width: 10, Height: 20, Depth: 5}, res.MappedDimensionsMM)
	require.Len(t, res.MappingItems, 3)
	for _, cand := range res.MappingItems {
		assert.GreaterOrEqual(t, cand.SourceIndex, 2)
	}
	assert.Empty(t, res.Warnings)
}

func TestMap_TieKeepsFirstSeen(t *testing.T) {
	res := Map(textItems("W 10 mm", 0.8, "width 12 mm", 0.8, "H 1 mm", 0.8, "D 1 mm", 0.8))

	v, _ := res.Value(Width)
	assert.InDelta(t, 10.0, v, 1e-9)
	assert.Equal(t, []string{"conflict:width:same-score different value"}, res.Warnings)
}

func TestMap_TieSameValueIsSilent(t *testing.T) {
	res := Map(textItems("W 10 mm", 0.8, "width 10 mm", 0.8, "H 1 mm", 0.8, "D 1 mm", 0.8))
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 0, res.MappingItems[0].SourceIndex)
}

func TestMap_SizeSequence(t *testing.T) {
	res := Map(textItems("size 40 x 30 x 20 x 10 mm", 0.9))

	assert.Equal(t, map[Axis]float64{Width: 40, Height: 30, Depth: 20}, res.MappedDimensionsMM)
	require.Len(t, res.MappingItems, 3)
	for _, cand := range res.MappingItems {
		assert.Equal(t, ReasonSizeSequence, cand.Reason)
		assert.InDelta(t, 0.9+0.3, cand.Score, 1e-9)
	}
	assert.Empty(t, res.Warnings)
}

func TestMap_SizeSequenceMultiplicationSign(t *testing.T) {
	res := Map(textItems("4cm×3cm", 0.7))

	assert.Equal(t, map[Axis]float64{Width: 40, Height: 30}, res.MappedDimensionsMM)
	assert.InDelta(t, 0.7+0.1, res.MappingItems[0].Score, 1e-9)
	assert.Equal(t, []string{"missing_required:depth"}, res.Warnings)
}

func TestMap_AmbiguousItemsDropped(t *testing.T) {
	res := Map(textItems("42 mm", 0.9, "lot 7", 0.9))

	assert.Empty(t, res.MappedDimensionsMM)
	assert.Empty(t, res.MappingItems)
	assert.Equal(t, []string{"missing_required:depth,height,width"}, res.Warnings)
}

func TestMap_PreParsedValues(t *testing.T) {
	items := []tokens.Item{
		tokens.NewItem("H", 2.5, "cm", 0.8),
		tokens.NewItem("W", 1, "in", 0.8),
		tokens.NewItem("depth", 3, "px", 0.8),
		tokens.NewItem("dia", 0.05, "M", 0.8),
	}
	res := Map(items)

	assert.InDelta(t, 25.0, res.MappedDimensionsMM[Height], 1e-9)
	assert.InDelta(t, 25.4, res.MappedDimensionsMM[Width], 1e-9)
	assert.InDelta(t, 3.0, res.MappedDimensionsMM[Depth], 1e-9)
	assert.InDelta(t, 50.0, res.MappedDimensionsMM[MaxDiameter], 1e-9)
	assert.InDelta(t, 0.8+0.1+0.2, res.MappingItems[0].Score, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestMap_FirstValueWinsForTokenMatch(t *testing.T) {
	res := Map(textItems("W 10 mm 20 mm", 0.9))
	assert.InDelta(t, 10.0, res.MappedDimensionsMM[Width], 1e-9)
}

func TestMap_MalformedValueFallsBackToText(t *testing.T) {
	var items []tokens.Item
	require.NoError(t, json.Unmarshal([]byte(`[
		{"text":"depth 8 mm","value":"abc","confidence":0.9},
		{"text":"width","value":-5,"unit":"mm","confidence":0.9}
	]`), &items))

	res := Map(items)

	assert.Equal(t, map[Axis]float64{Depth: 8}, res.MappedDimensionsMM)
}

func TestMap_DecimalCommaInText(t *testing.T) {
	res := Map(textItems("D: 10,5mm", 0.9))
	assert.InDelta(t, 10.5, res.MappedDimensionsMM[Depth], 1e-9)
}

func TestMap_RoundsToThreeDecimals(t *testing.T) {
	res := Map([]tokens.Item{tokens.NewItem("W", 1.23456, "in", 0.9)})
	assert.InDelta(t, 31.358, res.MappedDimensionsMM[Width], 1e-9)
}

func TestMap_ClampsConfidence(t *testing.T) {
	res := Map(textItems("W 10 mm", 1.7, "H 10 mm", -1.0))

	assert.InDelta(t, 1.0, res.MappingItems[0].Confidence, 1e-9)
	assert.InDelta(t, 0.0, res.MappingItems[1].Confidence, 1e-9)
}

func TestMap_MappingItemsSortedBySourceIndex(t *testing.T) {
	res := Map(textItems("D 5 mm", 0.9, "H 20 mm", 0.9, "W 10 mm", 0.9))

	require.Len(t, res.MappingItems, 3)
	assert.Equal(t, Depth, res.MappingItems[0].Axis)
	assert.Equal(t, Height, res.MappingItems[1].Axis)
	assert.Equal(t, Width, res.MappingItems[2].Axis)
}

func TestMap_EmptyInput(t *testing.T) {
	res := Map(nil)

	assert.NotNil(t, res.MappedDimensionsMM)
	assert.NotNil(t, res.MappingItems)
	assert.Equal(t, []string{"missing_required:depth,height,width"}, res.Warnings)
}

func TestResult_JSONShape(t *testing.T) {
	res := Map(textItems("W 10 mm", 0.9, "diameter 45 mm", 0.9))

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"width": 10.0, "max_diameter": 45.0}, decoded["mapped_dimensions_mm"])

	items, ok := decoded["mapping_items"].([]any)
	require.True(t, ok)
	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "width", first["axis"])
	assert.Equal(t, "token-match", first["reason"])
}
