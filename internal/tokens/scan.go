package tokens

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	exclusionWindow = 4
	contextWindow   = 12
)

var (
	versionPattern  = regexp.MustCompile(`(?i)\bv\s*\d+(?:\.\d+)+\b`)
	multiDotPattern = regexp.MustCompile(`\b\d+\.\d+\.\d+\b`)

	// unitAbbreviations is ordered so that "mm" wins over "m".
	unitAbbreviations = []string{"mm", "cm", "in", "m"}

	contextTokens = []string{"w", "h", "d", "width", "height", "depth", "dia", "diameter", "size", "mm", "x", "×"}
)

// Match is a number found in text. Start and End are rune offsets; the span
// covers the unit when one is present.
type Match struct {
	Value float64
	Unit  string
	Text  string
	Start int
	End   int
}

// NormalizeDecimalCommas rewrites a comma directly between two ASCII digits
// to a period. Nothing else is changed.
func NormalizeDecimalCommas(text string) string {
	if !strings.Contains(text, ",") {
		return text
	}
	rs := []rune(text)
	for i := 1; i+1 < len(rs); i++ {
		if rs[i] == ',' && isDigit(rs[i-1]) && isDigit(rs[i+1]) {
			rs[i] = '.'
		}
	}
	return string(rs)
}

// ScanValues returns every number in text with its optional unit, in text
// order, without exclusion or context filtering.
func ScanValues(text string) []Match {
	return scan([]rune(text))
}

// HasFalsePositive reports whether any number embedded in text sits inside a
// version string or a three-group dotted integer.
func HasFalsePositive(text string) bool {
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		if !isDigit(rs[i]) || (i > 0 && isDigit(rs[i-1])) {
			continue
		}
		end := i
		for end < len(rs) && isDigit(rs[end]) {
			end++
		}
		if excluded(rs, i, end) {
			return true
		}
		i = end
	}
	return false
}

func scan(rs []rune) []Match {
	var out []Match
	n := len(rs)
	for i := 0; i < n; {
		if !isDigit(rs[i]) || (i > 0 && (isDigit(rs[i-1]) || rs[i-1] == '.')) {
			i++
			continue
		}

		start := i
		j := i
		for j < n && isDigit(rs[j]) {
			j++
		}
		if j+1 < n && rs[j] == '.' && isDigit(rs[j+1]) {
			j++
			for j < n && isDigit(rs[j]) {
				j++
			}
		}
		numEnd := j

		// Another dotted group follows, e.g. the ".56" in 12.34.56.
		if j+1 < n && rs[j] == '.' && isDigit(rs[j+1]) {
			i = skipNumberRun(rs, j)
			continue
		}

		value, err := strconv.ParseFloat(string(rs[start:numEnd]), 64)
		if err != nil {
			i = numEnd
			continue
		}

		unit, end := scanUnit(rs, numEnd)
		out = append(out, Match{
			Value: value,
			Unit:  unit,
			Text:  strings.TrimSpace(string(rs[start:end])),
			Start: start,
			End:   end,
		})
		i = end
	}
	return out
}

// scanUnit matches an optional unit abbreviation after pos, allowing
// whitespace in between. The abbreviation must end on a word boundary.
func scanUnit(rs []rune, pos int) (string, int) {
	k := pos
	for k < len(rs) && unicode.IsSpace(rs[k]) {
		k++
	}
	for _, u := range unitAbbreviations {
		end := k + len(u)
		if end > len(rs) {
			continue
		}
		if !strings.EqualFold(string(rs[k:end]), u) {
			continue
		}
		if end < len(rs) && isWordRune(rs[end]) {
			continue
		}
		return u, end
	}
	return "", pos
}

func skipNumberRun(rs []rune, i int) int {
	for i < len(rs) && (isDigit(rs[i]) || rs[i] == '.') {
		i++
	}
	return i
}

// excluded reports whether the window around [start, end) looks like a
// version string or a dotted triple rather than a measurement.
func excluded(rs []rune, start, end int) bool {
	window := string(rs[max(0, start-exclusionWindow):min(len(rs), end+exclusionWindow)])
	return versionPattern.MatchString(window) || multiDotPattern.MatchString(window)
}

// hasDimensionContext reports whether a dimension cue appears within
// contextWindow runes on either side of the match.
func hasDimensionContext(rs []rune, m Match) bool {
	if m.Unit == "mm" {
		return true
	}
	left := string(rs[max(0, m.Start-contextWindow):m.Start])
	right := string(rs[m.End:min(len(rs), m.End+contextWindow)])
	context := strings.ToLower(left + " " + right)
	for _, tok := range contextTokens {
		if strings.Contains(context, tok) {
			return true
		}
	}
	return false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
