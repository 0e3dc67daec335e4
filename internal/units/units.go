// Package units converts length values with free-form unit labels to millimeters.
package units

import "strings"

// Canonical unit labels.
const (
	Millimeter = "mm"
	Centimeter = "cm"
	Meter      = "m"
	Inch       = "in"
)

type conversion struct {
	label  string
	factor float64
}

var aliases = map[string]conversion{
	"":            {Millimeter, 1},
	"mm":          {Millimeter, 1},
	"millimeter":  {Millimeter, 1},
	"millimeters": {Millimeter, 1},
	"millimetre":  {Millimeter, 1},
	"millimetres": {Millimeter, 1},
	"cm":          {Centimeter, 10},
	"centimeter":  {Centimeter, 10},
	"centimeters": {Centimeter, 10},
	"centimetre":  {Centimeter, 10},
	"centimetres": {Centimeter, 10},
	"m":           {Meter, 1000},
	"meter":       {Meter, 1000},
	"meters":      {Meter, 1000},
	"metre":       {Meter, 1000},
	"metres":      {Meter, 1000},
	"in":          {Inch, 25.4},
	"inch":        {Inch, 25.4},
	"inches":      {Inch, 25.4},
}

// ToMillimeters converts value in unit to millimeters and returns the
// canonical unit label. An empty unit means millimeters. Unknown units are
// returned unscaled with their trimmed, lowercased label.
func ToMillimeters(value float64, unit string) (float64, string) {
	key := strings.ToLower(strings.TrimSpace(unit))
	if c, ok := aliases[key]; ok {
		return value * c.factor, c.label
	}
	return value, key
}

// Known reports whether unit is a recognized length unit.
func Known(unit string) bool {
	_, ok := aliases[strings.ToLower(strings.TrimSpace(unit))]
	return ok
}
