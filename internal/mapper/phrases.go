package mapper

import (
	"regexp"
	"strings"

	"github.com/MeKo-Tech/packdim/internal/tokens"
)

const (
	phraseConfidenceWithUnit    = 0.9
	phraseConfidenceWithoutUnit = 0.6
)

var (
	phraseBreaks = regexp.MustCompile(`[\r\n;|]+`)
	axisLabels   = buildAxisLabels()
)

func buildAxisLabels() *regexp.Regexp {
	var alts []string
	for _, spec := range axisTable {
		for _, tok := range spec.tokens {
			q := regexp.QuoteMeta(tok.text)
			if tok.strategy == WordBoundary {
				q = `\b` + q + `\b`
			}
			alts = append(alts, q)
		}
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// Phrases splits free text into items that each carry one axis label with
// the numbers that follow it, e.g. "W: 48.8 H: 27.9mm" becomes "W: 48.8" and
// "H: 27.9mm". Lines without an axis label stay whole so size sequences such
// as "40 x 30 x 20 mm" survive. A label without numbers is merged into the
// next phrase.
func Phrases(text string) []tokens.Item {
	items := make([]tokens.Item, 0)
	for _, line := range phraseBreaks.Split(tokens.NormalizeDecimalCommas(text), -1) {
		pending := ""
		for _, piece := range splitAtLabels(line) {
			piece = strings.TrimSpace(pending + piece)
			if piece == "" {
				continue
			}
			matches := tokens.ScanValues(piece)
			if len(matches) == 0 {
				pending = piece + " "
				continue
			}
			pending = ""

			confidence := phraseConfidenceWithoutUnit
			for _, m := range matches {
				if m.Unit != "" {
					confidence = phraseConfidenceWithUnit
					break
				}
			}
			items = append(items, tokens.TextItem(piece, confidence))
		}
	}
	return items
}

func splitAtLabels(line string) []string {
	locs := axisLabels.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return []string{line}
	}
	var pieces []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			pieces = append(pieces, line[prev:loc[0]])
			prev = loc[0]
		}
	}
	return append(pieces, line[prev:])
}
