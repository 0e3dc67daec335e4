package tokens

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Item is one recognized text fragment, optionally pre-parsed into a value
// and unit. A nil Value means the text has to be scanned for numbers.
type Item struct {
	Text       string      `json:"text"`
	Value      *float64    `json:"value"`
	Unit       string      `json:"unit,omitempty"`
	BBox       *[4]float64 `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// NewItem builds an Item with a pre-parsed value. The unit is stored lowercased.
func NewItem(text string, value float64, unit string, confidence float64) Item {
	v := value
	return Item{
		Text:       text,
		Value:      &v,
		Unit:       strings.ToLower(unit),
		Confidence: confidence,
	}
}

// TextItem builds an Item that carries only text.
func TextItem(text string, confidence float64) Item {
	return Item{Text: text, Confidence: confidence}
}

// UnmarshalJSON accepts value as a JSON number, a numeric string or null.
// A value that cannot be parsed is dropped so the text is scanned instead.
func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	var raw struct {
		alias
		Value      json.RawMessage `json:"value"`
		Confidence json.RawMessage `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*it = Item(raw.alias)
	it.Unit = strings.ToLower(strings.TrimSpace(it.Unit))
	it.Value = nil
	if v, ok := parseNumber(raw.Value); ok {
		it.Value = &v
	}
	it.Confidence = 0
	if c, ok := parseNumber(raw.Confidence); ok {
		it.Confidence = c
	}
	return nil
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
