// Package conversion evaluates raw bus values into physical values: constant,
// linear and rational functions, interval-scaled tables and bitfields.
package conversion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrDivisionByZero is returned when a rational denominator evaluates to 0.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrOutOfRange is returned when no scale covers a raw value.
	ErrOutOfRange = errors.New("raw value out of range")
	// ErrNoMatch is returned when no bitfield mask yields a label.
	ErrNoMatch = errors.New("no bitfield entry matches")
	// ErrInvalidInterval is returned for empty or NaN-bounded intervals.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrNoScales is returned when a scaled conversion is built without scales.
	ErrNoScales = errors.New("no scales")
)

// Value is a physical value: a number or a text label.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// Number wraps a numeric physical value.
func Number(v float64) Value { return Value{Number: v} }

// Text wraps a textual physical value.
func Text(s string) Value { return Value{Text: s, IsText: true} }

func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'g', -1, 64)
}

// Conversion maps a raw value to a physical value. The set of
// implementations is closed: Constant, Linear, Rational, *Scaled and
// *Bitfield.
type Conversion interface {
	Evaluate(raw float64) (Value, error)
	String() string
	sealed()
}

// Evaluate applies c to raw. A nil conversion passes raw through.
func Evaluate(c Conversion, raw float64) (Value, error) {
	if c == nil {
		return Number(raw), nil
	}
	return c.Evaluate(raw)
}

// Constant always yields the same value.
type Constant struct {
	Value Value
}

func (c Constant) Evaluate(float64) (Value, error) { return c.Value, nil }
func (c Constant) String() string                  { return "const(" + c.Value.String() + ")" }
func (Constant) sealed()                           {}

// Linear computes A*raw + B.
type Linear struct {
	A, B float64
}

func (l Linear) Evaluate(raw float64) (Value, error) { return Number(l.A*raw + l.B), nil }
func (l Linear) String() string                      { return fmt.Sprintf("%g*x%+g", l.A, l.B) }
func (Linear) sealed()                               {}

// Rational computes N(raw)/D(raw). Coefficients are in ascending degree; an
// empty denominator is 1.
type Rational struct {
	Numerator   []float64
	Denominator []float64
}

func (r Rational) Evaluate(raw float64) (Value, error) {
	num := polynomial(r.Numerator, raw)
	den := 1.0
	if len(r.Denominator) > 0 {
		den = polynomial(r.Denominator, raw)
	}
	if den == 0 {
		return Value{}, fmt.Errorf("%w: %s at %g", ErrDivisionByZero, r, raw)
	}
	return Number(num / den), nil
}

func (r Rational) String() string {
	return "(" + polyString(r.Numerator) + ")/(" + polyString(r.Denominator) + ")"
}

func (Rational) sealed() {}

// polynomial evaluates coeffs (ascending degree) at x using Horner's rule.
func polynomial(coeffs []float64, x float64) float64 {
	acc := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc*x + coeffs[i]
	}
	return acc
}

func polyString(coeffs []float64) string {
	if len(coeffs) == 0 {
		return "1"
	}
	terms := make([]string, 0, len(coeffs))
	for i, c := range coeffs {
		switch i {
		case 0:
			terms = append(terms, strconv.FormatFloat(c, 'g', -1, 64))
		case 1:
			terms = append(terms, fmt.Sprintf("%g*x", c))
		default:
			terms = append(terms, fmt.Sprintf("%g*x^%d", c, i))
		}
	}
	return strings.Join(terms, "+")
}

// NewLinearFromRational builds the Linear equivalent of offset + factor*x
// divided by divisor.
func NewLinearFromRational(offset, factor, divisor float64) (Linear, error) {
	if divisor == 0 || math.IsNaN(divisor) {
		return Linear{}, fmt.Errorf("%w: linear divisor", ErrDivisionByZero)
	}
	return Linear{A: factor / divisor, B: offset / divisor}, nil
}
