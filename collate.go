// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Collate2 zips two equal-length sequences: Get(i) = (s0.Get(i),
// s1.Get(i)). Fails with LengthMismatch at construction if the inputs
// disagree on length.
func Collate2[A, B any](s0 Seq[A], s1 Seq[B]) (Seq[Pair[A, B]], error) {
	n0, k0 := s0.Len()
	n1, k1 := s1.Len()
	if !k0 || !k1 || n0 != n1 {
		return nil, &LengthMismatch{Lens: []int{n0, n1}}
	}
	return &collate2View[A, B]{s0: s0, s1: s1, n: n0}, nil
}

type collate2View[A, B any] struct {
	s0 Seq[A]
	s1 Seq[B]
	n  int
}

func (v *collate2View[A, B]) Len() (int, bool) { return v.n, true }

func (v *collate2View[A, B]) Get(i int) (Pair[A, B], error) {
	var zero Pair[A, B]
	idx, err := normalizeIndex(i, v.n)
	if err != nil {
		return zero, err
	}
	a, err := v.s0.Get(idx)
	if err != nil {
		return zero, err
	}
	b, err := v.s1.Get(idx)
	if err != nil {
		return zero, err
	}
	return Pair[A, B]{First: a, Second: b}, nil
}

// Collate zips an arbitrary number of same-typed sequences into rows of
// []T, one element drawn from each source per index. Fails with
// LengthMismatch at construction if the inputs disagree on length.
func Collate[T any](seqs []Seq[T]) (Seq[[]T], error) {
	if len(seqs) == 0 {
		return nil, &LengthMismatch{Lens: nil}
	}
	lens := make([]int, len(seqs))
	n, known := seqs[0].Len()
	lens[0] = n
	for idx := 1; idx < len(seqs); idx++ {
		ni, ki := seqs[idx].Len()
		lens[idx] = ni
		if !ki || !known || ni != n {
			known = false
		}
	}
	if !known {
		return nil, &LengthMismatch{Lens: lens}
	}
	return &collateView[T]{seqs: seqs, n: n}, nil
}

type collateView[T any] struct {
	seqs []Seq[T]
	n    int
}

func (v *collateView[T]) Len() (int, bool) { return v.n, true }

func (v *collateView[T]) Get(i int) ([]T, error) {
	idx, err := normalizeIndex(i, v.n)
	if err != nil {
		return nil, err
	}
	row := make([]T, len(v.seqs))
	for j, s := range v.seqs {
		val, err := s.Get(idx)
		if err != nil {
			return nil, err
		}
		row[j] = val
	}
	return row, nil
}
