package tokens

const (
	confidenceWithUnit    = 0.9
	confidenceWithoutUnit = 0.6
)

// Extract scans text for measurement tokens and returns them in text order.
func Extract(text string) []Item {
	rs := []rune(NormalizeDecimalCommas(text))

	items := make([]Item, 0)
	for _, m := range scan(rs) {
		if excluded(rs, m.Start, m.End) {
			continue
		}
		if !hasDimensionContext(rs, m) {
			continue
		}

		confidence := confidenceWithoutUnit
		if m.Unit != "" {
			confidence = confidenceWithUnit
		}
		items = append(items, NewItem(m.Text, m.Value, m.Unit, confidence))
	}
	return items
}
