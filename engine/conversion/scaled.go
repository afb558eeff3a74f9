package conversion

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mode is the interpretation a Scaled conversion offers.
type Mode uint8

const (
	ModeNumeric Mode = iota + 1
	ModeMap
	ModeNumericAndMap
)

func (m Mode) String() string {
	switch m {
	case ModeNumeric:
		return "numeric"
	case ModeMap:
		return "map"
	case ModeNumericAndMap:
		return "numeric+map"
	}
	return "unknown"
}

// Scaled selects a payload by the interval containing the raw value.
// Numeric scales carry a nested conversion and are gap-filled; map scales
// carry a text label and keep their gaps.
type Scaled struct {
	mode    Mode
	numeric []Scale[Conversion]
	labels  []Scale[string]
}

// NewNumeric builds a numeric scaled conversion. Scales are canonicalized and
// gaps between them closed at their midpoints.
func NewNumeric(scales []Scale[Conversion]) (*Scaled, error) {
	num, err := numericScales(scales)
	if err != nil {
		return nil, err
	}
	return &Scaled{mode: ModeNumeric, numeric: num}, nil
}

// NewMap builds a text table. Scales are canonicalized; gaps are kept.
func NewMap(scales []Scale[string]) (*Scaled, error) {
	if len(scales) == 0 {
		return nil, ErrNoScales
	}
	labels, err := Canonicalize(scales)
	if err != nil {
		return nil, err
	}
	return &Scaled{mode: ModeMap, labels: labels}, nil
}

// NewNumericAndMap builds a conversion with both interpretations.
func NewNumericAndMap(numeric []Scale[Conversion], labels []Scale[string]) (*Scaled, error) {
	if len(numeric) == 0 && len(labels) == 0 {
		return nil, ErrNoScales
	}
	s := &Scaled{mode: ModeNumericAndMap}
	var err error
	if len(numeric) > 0 {
		if s.numeric, err = numericScales(numeric); err != nil {
			return nil, err
		}
	}
	if s.labels, err = Canonicalize(labels); err != nil {
		return nil, err
	}
	return s, nil
}

func numericScales(scales []Scale[Conversion]) ([]Scale[Conversion], error) {
	if len(scales) == 0 {
		return nil, ErrNoScales
	}
	for _, s := range scales {
		if s.Value == nil {
			return nil, fmt.Errorf("numeric scale %s has no conversion", s.Interval)
		}
	}
	canon, err := Canonicalize(scales)
	if err != nil {
		return nil, err
	}
	return FillGaps(canon), nil
}

// Mode returns the interpretation the conversion was built with.
func (s *Scaled) Mode() Mode { return s.mode }

// Intervals returns the canonical numeric intervals.
func (s *Scaled) Intervals() []Interval {
	out := make([]Interval, len(s.numeric))
	for i, sc := range s.numeric {
		out[i] = sc.Interval
	}
	return out
}

// LabelIntervals returns the canonical text intervals.
func (s *Scaled) LabelIntervals() []Interval {
	out := make([]Interval, len(s.labels))
	for i, sc := range s.labels {
		out[i] = sc.Interval
	}
	return out
}

// EvaluateNumeric applies the numeric scale containing raw.
func (s *Scaled) EvaluateNumeric(raw float64) (Value, error) {
	sc, ok := lookup(s.numeric, raw)
	if !ok {
		return Value{}, fmt.Errorf("%w: %g", ErrOutOfRange, raw)
	}
	return sc.Value.Evaluate(raw)
}

// Label returns the text of the map scale containing raw.
func (s *Scaled) Label(raw float64) (string, bool) {
	sc, ok := lookup(s.labels, raw)
	return sc.Value, ok
}

// Evaluate returns the label of a matching text scale, falling back to the
// numeric interpretation.
func (s *Scaled) Evaluate(raw float64) (Value, error) {
	if label, ok := s.Label(raw); ok {
		return Text(label), nil
	}
	if len(s.numeric) == 0 {
		return Value{}, fmt.Errorf("%w: %g", ErrOutOfRange, raw)
	}
	return s.EvaluateNumeric(raw)
}

func (s *Scaled) String() string {
	parts := make([]string, 0, len(s.numeric)+len(s.labels))
	for _, sc := range s.numeric {
		parts = append(parts, sc.Interval.String()+"->"+sc.Value.String())
	}
	for _, sc := range s.labels {
		parts = append(parts, sc.Interval.String()+"->"+sc.Value)
	}
	return s.mode.String() + "{" + strings.Join(parts, ", ") + "}"
}

func (*Scaled) sealed() {}

// BitfieldEntry applies Scale's conversion to the raw values whose masked
// bits fall in its interval.
type BitfieldEntry struct {
	Mask  uint64
	Scale Scale[Conversion]
}

// Bitfield evaluates several flag groups of one raw value. Each mask selects
// bits of the raw value; the masked value is looked up in that mask's scaled
// table and evaluated by the matching scale's conversion.
type Bitfield struct {
	masks  []uint64
	tables map[uint64]*Scaled
}

// NewBitfield groups entries by mask. Unlike NewNumeric, the tables keep
// their gaps: a masked value outside every interval does not match.
func NewBitfield(entries []BitfieldEntry) (*Bitfield, error) {
	if len(entries) == 0 {
		return nil, ErrNoScales
	}
	grouped := make(map[uint64][]Scale[Conversion])
	for _, e := range entries {
		grouped[e.Mask] = append(grouped[e.Mask], e.Scale)
	}
	b := &Bitfield{tables: make(map[uint64]*Scaled, len(grouped))}
	for mask, scales := range grouped {
		table, err := newTable(scales)
		if err != nil {
			return nil, fmt.Errorf("mask %#x: %w", mask, err)
		}
		b.masks = append(b.masks, mask)
		b.tables[mask] = table
	}
	sort.Slice(b.masks, func(i, j int) bool { return b.masks[i] < b.masks[j] })
	return b, nil
}

func newTable(scales []Scale[Conversion]) (*Scaled, error) {
	for _, s := range scales {
		if s.Value == nil {
			return nil, fmt.Errorf("scale %s has no conversion", s.Interval)
		}
	}
	canon, err := Canonicalize(scales)
	if err != nil {
		return nil, err
	}
	return &Scaled{mode: ModeNumeric, numeric: canon}, nil
}

// Values evaluates every mask that matches raw, in ascending mask order.
func (b *Bitfield) Values(raw float64) ([]Value, error) {
	if raw < 0 || raw != math.Trunc(raw) || raw >= 0x1p64 {
		return nil, fmt.Errorf("%w: bitfield raw %g", ErrOutOfRange, raw)
	}
	bits := uint64(raw)
	var out []Value
	for _, mask := range b.masks {
		masked := float64(bits & mask)
		sc, ok := lookup(b.tables[mask].numeric, masked)
		if !ok {
			continue
		}
		v, err := sc.Value.Evaluate(masked)
		if err != nil {
			return nil, fmt.Errorf("mask %#x: %w", mask, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Labels renders the value of every matching mask as text.
func (b *Bitfield) Labels(raw float64) ([]string, error) {
	values, err := b.Values(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out, nil
}

// Evaluate returns the value of the only matching mask, or the rendered
// values of all matching masks joined with "|".
func (b *Bitfield) Evaluate(raw float64) (Value, error) {
	values, err := b.Values(raw)
	if err != nil {
		return Value{}, err
	}
	switch len(values) {
	case 0:
		return Value{}, fmt.Errorf("%w: %g", ErrNoMatch, raw)
	case 1:
		return values[0], nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return Text(strings.Join(parts, "|")), nil
}

func (b *Bitfield) String() string {
	parts := make([]string, len(b.masks))
	for i, mask := range b.masks {
		parts[i] = fmt.Sprintf("%#x:%s", mask, b.tables[mask])
	}
	return "bitfield{" + strings.Join(parts, ", ") + "}"
}

func (*Bitfield) sealed() {}
