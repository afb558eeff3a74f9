package model

import "iter"

// Variants holds the conditional alternatives of a variant-capable entity.
// The sequence is materialized once at construction.
type Variants[T any] struct {
	items []T
}

// NewVariants materializes seq.
func NewVariants[T any](seq iter.Seq[T]) Variants[T] {
	var items []T
	for v := range seq {
		items = append(items, v)
	}
	return Variants[T]{items: items}
}

// VariantsOf builds a Variants from explicit alternatives.
func VariantsOf[T any](items ...T) Variants[T] {
	return Variants[T]{items: append([]T(nil), items...)}
}

// Single returns the only alternative. Zero and several alternatives both
// yield false: variant selection by condition is not performed.
func (v Variants[T]) Single() (T, bool) {
	if len(v.items) != 1 {
		var zero T
		return zero, false
	}
	return v.items[0], true
}

// Len returns the number of alternatives.
func (v Variants[T]) Len() int { return len(v.items) }

// All yields every alternative in declaration order.
func (v Variants[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, it := range v.items {
			if !yield(it) {
				return
			}
		}
	}
}
