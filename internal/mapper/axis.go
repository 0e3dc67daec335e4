package mapper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Axis is a physical dimension of a package. The declared order is also the
// detection priority when a text names more than one axis.
type Axis uint8

const (
	Width Axis = iota
	Height
	Depth
	MaxDiameter
)

// ErrUnknownAxis is returned when parsing an axis name fails.
var ErrUnknownAxis = errors.New("unknown axis")

// MatchStrategy decides how an axis token is found in lowercased text.
type MatchStrategy uint8

const (
	// WordBoundary matches the token as a whole word.
	WordBoundary MatchStrategy = iota
	// Substring matches the token anywhere in the text.
	Substring
)

type axisToken struct {
	text     string
	strategy MatchStrategy
	re       *regexp.Regexp
}

func (t axisToken) matches(lowered string) bool {
	if t.strategy == Substring {
		return strings.Contains(lowered, t.text)
	}
	return t.re.MatchString(lowered)
}

type axisSpec struct {
	axis     Axis
	name     string
	required bool
	tokens   []axisToken
}

func word(s string) axisToken {
	return axisToken{text: s, strategy: WordBoundary, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)}
}

func symbol(s string) axisToken {
	return axisToken{text: s, strategy: Substring}
}

// axisTable is indexed by Axis.
var axisTable = [...]axisSpec{
	{Width, "width", true, []axisToken{word("w"), word("width"), symbol("가로")}},
	{Height, "height", true, []axisToken{word("h"), word("height"), symbol("세로")}},
	{Depth, "depth", true, []axisToken{word("d"), word("depth"), symbol("길이")}},
	{MaxDiameter, "max_diameter", false, []axisToken{word("dia"), word("diameter"), symbol("ø"), symbol("φ")}},
}

// Axes returns every axis in priority order.
func Axes() []Axis {
	return []Axis{Width, Height, Depth, MaxDiameter}
}

// RequiredAxes returns the axes whose absence is reported as a warning.
func RequiredAxes() []Axis {
	var out []Axis
	for _, spec := range axisTable {
		if spec.required {
			out = append(out, spec.axis)
		}
	}
	return out
}

// Valid reports whether a is one of the declared axes.
func (a Axis) Valid() bool {
	return int(a) < len(axisTable)
}

// Required reports whether a is one of width, height and depth.
func (a Axis) Required() bool {
	return a.Valid() && axisTable[a].required
}

func (a Axis) String() string {
	if !a.Valid() {
		return fmt.Sprintf("axis(%d)", uint8(a))
	}
	return axisTable[a].name
}

// MarshalText implements encoding.TextMarshaler so axes serialize by name,
// including as JSON map keys.
func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAxis, uint8(a))
	}
	return []byte(axisTable[a].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Axis) UnmarshalText(text []byte) error {
	parsed, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAxis resolves an axis name such as "width" or "max_diameter".
func ParseAxis(name string) (Axis, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, spec := range axisTable {
		if spec.name == n {
			return spec.axis, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
}

// DetectAxis returns the first axis, in priority order, whose tokens occur in
// text.
func DetectAxis(text string) (Axis, bool) {
	lowered := strings.ToLower(text)
	for _, spec := range axisTable {
		for _, tok := range spec.tokens {
			if tok.matches(lowered) {
				return spec.axis, true
			}
		}
	}
	return 0, false
}
