package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownUnit is returned when a unit label is not in a subtype's scale.
var ErrUnknownUnit = errors.New("unknown unit")

// UnitScale lists the unit prefixes offered for one passive subtype.
// Labels[i] is shown to the user; Values[i] is its factor to base units.
type UnitScale struct {
	Type   string    `json:"type"`
	Labels []string  `json:"multiplier"`
	Values []float64 `json:"values"`
}

// Factor returns the base-unit factor for a label.
func (s UnitScale) Factor(label string) (float64, error) {
	for i, l := range s.Labels {
		if l == label && i < len(s.Values) {
			return s.Values[i], nil
		}
	}
	return 0, fmt.Errorf("%w %q for %s", ErrUnknownUnit, label, s.Type)
}

// UnitTable is the server-supplied multiplier table.
type UnitTable []UnitScale

// Scale finds the scale for a subtype (case-insensitive).
func (t UnitTable) Scale(subtype string) (UnitScale, bool) {
	for _, s := range t {
		if strings.EqualFold(s.Type, subtype) {
			return s, true
		}
	}
	return UnitScale{}, false
}

// ToBaseUnits converts a displayed value to the base-unit wire value.
func ToBaseUnits(value, multiplier float64) float64 {
	return roundSignificant(value * multiplier)
}

// FromBaseUnits converts a base-unit wire value back for display.
func FromBaseUnits(value, multiplier float64) float64 {
	if multiplier == 0 {
		return value
	}
	return roundSignificant(value / multiplier)
}

// roundSignificant trims binary noise such as 4.7e-12*1e12 = 4.699999...
func roundSignificant(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 12, 64), 64)
	if err != nil {
		return v
	}
	return r
}

var prefixes = map[int]string{
	-12: "p",
	-9:  "n",
	-6:  "u",
	-3:  "m",
	-2:  "c",
	-1:  "d",
	3:   "k",
	6:   "M",
	9:   "G",
	12:  "T",
}

// BuildUnitScale derives the prefixes worth offering for a subtype from the
// values currently stocked: the unprefixed unit plus every engineering
// prefix between the smallest and the largest value.
func BuildUnitScale(subtype string, values []float64) (UnitScale, bool) {
	var nonzero []float64
	for _, v := range values {
		if v > 0 {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return UnitScale{}, false
	}
	sort.Float64s(nonzero)

	lo := roundToThousands(math.Floor(math.Log10(nonzero[0])))
	hi := roundToThousands(math.Floor(math.Log10(nonzero[len(nonzero)-1])))

	scale := UnitScale{Type: subtype, Labels: []string{""}, Values: []float64{1}}
	for p := lo; p <= hi; p++ {
		prefix, ok := prefixes[p]
		if !ok {
			continue
		}
		scale.Labels = append(scale.Labels, prefix)
		scale.Values = append(scale.Values, math.Pow10(p))
	}
	return scale, true
}

func roundToThousands(power float64) int {
	return int(3 * math.Round(power/3))
}
