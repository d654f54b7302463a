// Package units converts bodies between length units. Conversion happens
// before normalization so the restoration vector is expressed in the host
// unit.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/directshape/pkg/kernel"
)

// Unit is a length unit.
type Unit string

const (
	Meter      Unit = "m"
	Millimeter Unit = "mm"
	Centimeter Unit = "cm"
	Foot       Unit = "ft"
	Inch       Unit = "in"
)

var metersPer = map[Unit]float64{
	Meter:      1,
	Millimeter: 0.001,
	Centimeter: 0.01,
	Foot:       0.3048,
	Inch:       0.0254,
}

var aliases = map[string]Unit{
	"meter":       Meter,
	"meters":      Meter,
	"millimeter":  Millimeter,
	"millimeters": Millimeter,
	"centimeter":  Centimeter,
	"centimeters": Centimeter,
	"foot":        Foot,
	"feet":        Foot,
	"inch":        Inch,
	"inches":      Inch,
}

var (
	ErrUnknownUnit = errors.New("units: unknown unit")
	ErrNotScalable = errors.New("units: body cannot be scaled")
)

// Parse resolves a unit symbol or name, case-insensitively.
func Parse(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u := Unit(key); metersPer[u] != 0 {
		return u, nil
	}
	if u, ok := aliases[key]; ok {
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool { return metersPer[u] != 0 }

func (u Unit) String() string { return string(u) }

// Factor returns the multiplier that converts lengths in from into to.
func Factor(from, to Unit) (float64, error) {
	f, ok := metersPer[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := metersPer[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	return f / t, nil
}

// Convert scales b from one unit to another about the origin. The body is
// returned unchanged when the units match.
func Convert(b kernel.Body, from, to Unit) (kernel.Body, error) {
	f, err := Factor(from, to)
	if err != nil {
		return nil, err
	}
	if f == 1 {
		return b, nil
	}
	s, ok := b.(kernel.Scaler)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotScalable, b)
	}
	return s.Scale(f), nil
}

// ConvertAll converts every body in bs.
func ConvertAll(bs []kernel.Body, from, to Unit) ([]kernel.Body, error) {
	out := make([]kernel.Body, len(bs))
	for i, b := range bs {
		c, err := Convert(b, from, to)
		if err != nil {
			return nil, fmt.Errorf("body %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}
