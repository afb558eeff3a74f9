package conversion

import (
	"fmt"
	"math"
	"sort"
)

// Interval is a closed range [Min, Max]. Infinite bounds are allowed.
type Interval struct {
	Min float64
	Max float64
}

// Valid reports whether the interval is non-empty and has no NaN bound.
func (i Interval) Valid() bool {
	return !math.IsNaN(i.Min) && !math.IsNaN(i.Max) && i.Min <= i.Max
}

// Contains reports whether x lies in the interval.
func (i Interval) Contains(x float64) bool { return i.Min <= x && x <= i.Max }

// Encloses reports whether o lies entirely within i.
func (i Interval) Encloses(o Interval) bool { return i.Min <= o.Min && o.Max <= i.Max }

// Before reports whether i ends strictly before o starts.
func (i Interval) Before(o Interval) bool { return i.Max < o.Min }

func (i Interval) String() string { return fmt.Sprintf("[%g, %g]", i.Min, i.Max) }

// Scale binds a payload to an interval of raw values.
type Scale[P any] struct {
	Interval
	Value P
}

// Canonicalize orders scales by lower bound and makes them pairwise
// non-overlapping:
//   - a scale ending within the scales kept so far is dropped, so wider and
//     earlier scales win over nested ones;
//   - a scale that starts inside the current one and extends past it is
//     truncated to start at the current upper bound, keeping its payload;
//   - a scale that starts after the current one is appended as is.
//
// Neighbours may share a single boundary value. The input is not modified.
func Canonicalize[P any](scales []Scale[P]) ([]Scale[P], error) {
	sorted := make([]Scale[P], 0, len(scales))
	for _, s := range scales {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, s.Interval)
		}
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Min != sorted[b].Min {
			return sorted[a].Min < sorted[b].Min
		}
		return sorted[a].Max > sorted[b].Max
	})

	var out []Scale[P]
	for _, s := range sorted {
		if len(out) == 0 {
			out = append(out, s)
			continue
		}
		cur := out[len(out)-1]
		switch {
		case s.Max <= cur.Max:
			// sorted by lower bound, so s is already covered
			continue
		case cur.Before(s.Interval):
			out = append(out, s)
		default:
			s.Min = cur.Max
			out = append(out, s)
		}
	}
	return out, nil
}

// FillGaps closes every gap between consecutive canonical scales by moving
// both neighbours to the gap's midpoint. Afterwards neighbours share exactly
// one boundary value.
func FillGaps[P any](scales []Scale[P]) []Scale[P] {
	out := append([]Scale[P](nil), scales...)
	for i := 0; i+1 < len(out); i++ {
		lo, hi := &out[i], &out[i+1]
		if !lo.Before(hi.Interval) {
			continue
		}
		mid := lo.Max + (hi.Min-lo.Max)/2
		if math.IsInf(mid, 0) || math.IsNaN(mid) {
			continue
		}
		lo.Max = mid
		hi.Min = mid
	}
	return out
}

// lookup finds the scale containing raw in canonical scales. A value on a
// shared boundary belongs to the lower scale.
func lookup[P any](scales []Scale[P], raw float64) (Scale[P], bool) {
	i := sort.Search(len(scales), func(i int) bool { return scales[i].Max >= raw })
	if i < len(scales) && scales[i].Contains(raw) {
		return scales[i], true
	}
	var zero Scale[P]
	return zero, false
}
