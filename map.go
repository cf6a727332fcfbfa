// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Map returns a view whose i-th element is f(s.Get(i)). Evaluation is
// strictly on-demand: f runs once per Get call, with no memoization.
func Map[A, B any](s Seq[A], f func(A) (B, error)) Seq[B] {
	return &mapView[A, B]{src: s, f: f}
}

type mapView[A, B any] struct {
	src Seq[A]
	f   func(A) (B, error)
}

func (v *mapView[A, B]) Len() (int, bool) {
	return v.src.Len()
}

func (v *mapView[A, B]) Get(i int) (B, error) {
	var zero B
	a, err := v.src.Get(i)
	if err != nil {
		return zero, err
	}
	return v.f(a)
}

// Map2 is the two-source form of Map: get(i) = f(s0.Get(i), s1.Get(i)).
// Length is the shorter of the two inputs.
func Map2[A, B, C any](s0 Seq[A], s1 Seq[B], f func(A, B) (C, error)) Seq[C] {
	return &map2View[A, B, C]{s0: s0, s1: s1, f: f}
}

type map2View[A, B, C any] struct {
	s0 Seq[A]
	s1 Seq[B]
	f  func(A, B) (C, error)
}

func (v *map2View[A, B, C]) Len() (int, bool) {
	n0, k0 := v.s0.Len()
	n1, k1 := v.s1.Len()
	switch {
	case k0 && k1:
		if n0 < n1 {
			return n0, true
		}
		return n1, true
	case k0:
		return n0, true
	case k1:
		return n1, true
	default:
		return 0, false
	}
}

func (v *map2View[A, B, C]) Get(i int) (C, error) {
	var zero C
	a, err := v.s0.Get(i)
	if err != nil {
		return zero, err
	}
	b, err := v.s1.Get(i)
	if err != nil {
		return zero, err
	}
	return v.f(a, b)
}

// StarMap is the tuple-spreading sibling of Map: given a sequence of
// fixed-size tuples, it applies f to the tuple's elements spread as
// separate arguments rather than as a single value. Because Go has no
// variadic generic unpacking, the tuple shape is fixed at two elements;
// wider tuples compose StarMap with a pre-Map step that regroups them.
func StarMap[A, B, C any](s Seq[Pair[A, B]], f func(A, B) (C, error)) Seq[C] {
	return Map(s, func(p Pair[A, B]) (C, error) {
		return f(p.First, p.Second)
	})
}

// Pair is an ordered pair, used as the tuple shape for StarMap and as
// Collate2's element type.
type Pair[A, B any] struct {
	First  A
	Second B
}
