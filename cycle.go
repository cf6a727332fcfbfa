// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Cycle returns a view that repeats s: Get(i) = s.Get(i mod len(s)).
// When limit is nil the view is infinite (Len reports unknown);
// negative indexing is rejected in that case since there is no
// well-defined length to normalize against. When limit is non-nil the
// view has exactly *limit elements.
func Cycle[T any](s Seq[T], limit *int) (Seq[T], error) {
	n, known := s.Len()
	if !known || n == 0 {
		return nil, &InvalidIndex{Reason: "cycle requires a finite, non-empty source"}
	}
	if limit != nil && *limit < 0 {
		return nil, &ValueOutOfRange{Name: "Cycle(limit)", Value: *limit}
	}
	return &cycleView[T]{src: s, n: n, limit: limit}, nil
}

type cycleView[T any] struct {
	src   Seq[T]
	n     int
	limit *int
}

func (v *cycleView[T]) Len() (int, bool) {
	if v.limit == nil {
		return 0, false
	}
	return *v.limit, true
}

func (v *cycleView[T]) Get(i int) (T, error) {
	var zero T
	if v.limit != nil {
		idx, err := normalizeIndex(i, *v.limit)
		if err != nil {
			return zero, err
		}
		i = idx
	} else if i < 0 {
		return zero, &InvalidIndex{Reason: "negative indexing is not supported on an infinite cycle"}
	}
	return v.src.Get(i % v.n)
}

// Repeat returns a constant view of v. When n is nil the view is
// infinite; otherwise it has exactly *n elements.
func Repeat[T any](v T, n *int) (Seq[T], error) {
	if n != nil && *n < 0 {
		return nil, &ValueOutOfRange{Name: "Repeat(n)", Value: *n}
	}
	return &repeatView[T]{v: v, n: n}, nil
}

type repeatView[T any] struct {
	v T
	n *int
}

func (v *repeatView[T]) Len() (int, bool) {
	if v.n == nil {
		return 0, false
	}
	return *v.n, true
}

func (v *repeatView[T]) Get(i int) (T, error) {
	var zero T
	if v.n != nil {
		if _, err := normalizeIndex(i, *v.n); err != nil {
			return zero, err
		}
	} else if i < 0 {
		return zero, &InvalidIndex{Reason: "negative indexing is not supported on an infinite repeat"}
	}
	return v.v, nil
}
