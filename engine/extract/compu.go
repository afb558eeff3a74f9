package extract

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Sheetlar/arxml/engine/conversion"
	"github.com/Sheetlar/arxml/engine/model"
)

// Compu method categories with a translation.
const (
	CompuIdentical               = "IDENTICAL"
	CompuLinear                  = "LINEAR"
	CompuScaleLinear             = "SCALE_LINEAR"
	CompuRationalFunction        = "RAT_FUNC"
	CompuScaleRationalFunction   = "SCALE_RAT_FUNC"
	CompuTextTable               = "TEXTTABLE"
	CompuScaleLinearAndTextTable = "SCALE_LINEAR_AND_TEXTTABLE"
	CompuBitfieldTextTable       = "BITFIELD_TEXTTABLE"
)

var (
	errNoScale        = errors.New("compu method has no scale")
	errNoCoefficients = errors.New("compu scale has no rational coefficients")
)

// TranslateCompu converts a compu method into a conversion. IDENTICAL yields a
// nil conversion, which passes raw values through.
func TranslateCompu(cm *model.CompuMethod) (conversion.Conversion, error) {
	switch strings.ToUpper(cm.Category) {
	case CompuIdentical:
		return nil, nil
	case CompuLinear:
		sc, err := firstScale(cm)
		if err != nil {
			return nil, err
		}
		if err := requireNumerator(sc); err != nil {
			return nil, err
		}
		return conversion.NewLinearFromRational(sc.Offset(), sc.Factor(), sc.Divisor())
	case CompuRationalFunction:
		sc, err := firstScale(cm)
		if err != nil {
			return nil, err
		}
		return rational(sc)
	case CompuScaleLinear, CompuScaleRationalFunction:
		scales := make([]conversion.Scale[conversion.Conversion], 0, len(cm.IntToPhys))
		for _, sc := range cm.IntToPhys {
			c, err := numeric(sc)
			if err != nil {
				return nil, err
			}
			scales = append(scales, conversion.Scale[conversion.Conversion]{Interval: interval(sc), Value: c})
		}
		return conversion.NewNumeric(scales)
	case CompuTextTable:
		labels := make([]conversion.Scale[string], 0, len(cm.IntToPhys))
		for _, sc := range cm.IntToPhys {
			labels = append(labels, conversion.Scale[string]{Interval: interval(sc), Value: label(sc)})
		}
		return conversion.NewMap(labels)
	case CompuScaleLinearAndTextTable:
		var nums []conversion.Scale[conversion.Conversion]
		var labels []conversion.Scale[string]
		for _, sc := range cm.IntToPhys {
			if sc.Const != nil && sc.Const.Text != nil {
				labels = append(labels, conversion.Scale[string]{Interval: interval(sc), Value: *sc.Const.Text})
				continue
			}
			c, err := numeric(sc)
			if err != nil {
				return nil, err
			}
			nums = append(nums, conversion.Scale[conversion.Conversion]{Interval: interval(sc), Value: c})
		}
		return conversion.NewNumericAndMap(nums, labels)
	case CompuBitfieldTextTable:
		entries := make([]conversion.BitfieldEntry, 0, len(cm.IntToPhys))
		for _, sc := range cm.IntToPhys {
			if sc.Mask == nil {
				return nil, fmt.Errorf("bitfield scale %q has no mask", sc.ShortLabel)
			}
			payload, err := bitfieldPayload(sc)
			if err != nil {
				return nil, err
			}
			entries = append(entries, conversion.BitfieldEntry{
				Mask:  *sc.Mask,
				Scale: conversion.Scale[conversion.Conversion]{Interval: interval(sc), Value: payload},
			})
		}
		return conversion.NewBitfield(entries)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompu, cm.Category)
}

func firstScale(cm *model.CompuMethod) (model.CompuScale, error) {
	if len(cm.IntToPhys) == 0 {
		return model.CompuScale{}, errNoScale
	}
	return cm.IntToPhys[0], nil
}

// requireNumerator rejects scales whose coefficients would evaluate every
// raw value to 0.
func requireNumerator(sc model.CompuScale) error {
	switch {
	case sc.Rational == nil:
		return fmt.Errorf("%w: scale %s", errNoCoefficients, interval(sc))
	case len(sc.Rational.Numerator) == 0:
		return fmt.Errorf("%w: scale %s has an empty numerator", errNoCoefficients, interval(sc))
	}
	return nil
}

func rational(sc model.CompuScale) (conversion.Conversion, error) {
	if err := requireNumerator(sc); err != nil {
		return nil, err
	}
	return conversion.Rational{
		Numerator:   append([]float64(nil), sc.Rational.Numerator...),
		Denominator: append([]float64(nil), sc.Rational.Denominator...),
	}, nil
}

// numeric converts one scale of a scaled numeric method. Linear coefficients
// collapse to Linear; constants become Constant.
func numeric(sc model.CompuScale) (conversion.Conversion, error) {
	switch {
	case sc.Rational != nil && len(sc.Rational.Numerator) == 0:
		return nil, requireNumerator(sc)
	case sc.Rational != nil && len(sc.Rational.Numerator) <= 2 && len(sc.Rational.Denominator) <= 1:
		return conversion.NewLinearFromRational(sc.Offset(), sc.Factor(), sc.Divisor())
	case sc.Rational != nil:
		return rational(sc)
	case sc.Const != nil && sc.Const.Value != nil:
		return conversion.Constant{Value: conversion.Number(*sc.Const.Value)}, nil
	case sc.Const != nil && sc.Const.Text != nil:
		return conversion.Constant{Value: conversion.Text(*sc.Const.Text)}, nil
	}
	return nil, fmt.Errorf("scale %s has neither coefficients nor constant", interval(sc))
}

// bitfieldPayload is the numeric conversion of a scale with coefficients, else
// its label as a text constant.
func bitfieldPayload(sc model.CompuScale) (conversion.Conversion, error) {
	if sc.Rational != nil {
		return numeric(sc)
	}
	return conversion.Constant{Value: conversion.Text(label(sc))}, nil
}

// label is the text of a table entry: its constant text, else its short label.
func label(sc model.CompuScale) string {
	if sc.Const != nil && sc.Const.Text != nil {
		return *sc.Const.Text
	}
	if sc.ShortLabel != "" {
		return sc.ShortLabel
	}
	if sc.Const != nil && sc.Const.Value != nil {
		return conversion.Number(*sc.Const.Value).String()
	}
	return sc.Symbol
}

// interval maps scale limits to a closed interval. A missing upper limit
// equals the lower one; missing or infinite limits are unbounded. Open limits
// are treated as closed.
func interval(sc model.CompuScale) conversion.Interval {
	iv := conversion.Interval{Min: math.Inf(-1), Max: math.Inf(1)}
	if sc.Lower != nil && sc.Lower.Kind != model.LimitInfinite {
		iv.Min = sc.Lower.Value
	}
	switch {
	case sc.Upper != nil && sc.Upper.Kind != model.LimitInfinite:
		iv.Max = sc.Upper.Value
	case sc.Upper == nil && sc.Lower != nil && sc.Lower.Kind != model.LimitInfinite:
		iv.Max = iv.Min
	}
	return iv
}
