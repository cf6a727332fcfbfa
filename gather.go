// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Gather returns a view whose i-th element is s.Get(indices[i]).
// Nested gathers flatten: Gather(Gather(s, a), b) is built as
// Gather(s, a[b]) rather than a chain of wrappers, matching the
// composed-index-array law.
func Gather[T any](s Seq[T], indices []int) Seq[T] {
	if g, ok := s.(*gatherView[T]); ok {
		composed := make([]int, len(indices))
		for i, idx := range indices {
			composed[i] = g.indices[idx]
		}
		return &gatherView[T]{src: g.src, indices: composed}
	}
	return &gatherView[T]{src: s, indices: indices}
}

type gatherView[T any] struct {
	src     Seq[T]
	indices []int
}

func (v *gatherView[T]) Len() (int, bool) {
	return len(v.indices), true
}

func (v *gatherView[T]) Get(i int) (T, error) {
	var zero T
	idx, err := normalizeIndex(i, len(v.indices))
	if err != nil {
		return zero, err
	}
	return v.src.Get(v.indices[idx])
}

// Reindex is an alias constructor for Gather taking only an index list
// against an existing sequence. It exists as a readability convenience:
// Reindex(s, idx) reads more plainly than Gather(s, idx) at call sites
// that are not building a pipeline of index transforms.
func Reindex[T any](s Seq[T], indices []int) Seq[T] {
	return Gather(s, indices)
}

// Take returns a view over the first n elements of s, built on top of
// Gather. Returns ValueOutOfRange if n is negative or exceeds s's
// length, or if s's length is unknown; use Slice for clipped bounds
// instead.
func Take[T any](s Seq[T], n int) (Seq[T], error) {
	length, known := s.Len()
	if !known || n < 0 || n > length {
		return nil, &ValueOutOfRange{Name: "Take(n)", Value: n}
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return Gather(s, indices), nil
}
