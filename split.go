// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// SplitEqual divides s into n equal-sized contiguous views. n must
// evenly divide s's length.
func SplitEqual[T any](s Seq[T], n int) (Seq[Seq[T]], error) {
	length, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "split requires a finite source"}
	}
	if n <= 0 || length%n != 0 {
		return nil, &ValueOutOfRange{Name: "SplitEqual(n)", Value: n}
	}
	partLen := length / n
	ranges := make([][2]int, n)
	for i := range ranges {
		ranges[i] = [2]int{i * partLen, (i + 1) * partLen}
	}
	return splitRanges(s, ranges, length)
}

// SplitAt divides s at the given cut points: cuts = [c0, c1, …] produces
// views [0:c0), [c0:c1), …, [c_last:len). Cut points are clipped into
// [0, len] and implicitly sorted is not performed — out-of-order cuts
// produce empty or reversed-looking (empty) ranges, mirroring the
// "clip, don't validate" policy for out-of-range bounds.
func SplitAt[T any](s Seq[T], cuts []int) (Seq[Seq[T]], error) {
	length, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "split requires a finite source"}
	}
	ranges := make([][2]int, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		clipped := clip(c, 0, length)
		ranges = append(ranges, [2]int{prev, clipped})
		prev = clipped
	}
	ranges = append(ranges, [2]int{prev, length})
	return splitRanges(s, ranges, length)
}

// SplitRanges divides s according to explicit (start, stop) pairs.
// Bounds are clipped into [0, len]; a stop before start yields an empty
// view rather than an error.
func SplitRanges[T any](s Seq[T], ranges [][2]int) (Seq[Seq[T]], error) {
	length, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "split requires a finite source"}
	}
	clipped := make([][2]int, len(ranges))
	for i, r := range ranges {
		clipped[i] = [2]int{clip(r[0], 0, length), clip(r[1], 0, length)}
	}
	return splitRanges(s, clipped, length)
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func splitRanges[T any](s Seq[T], ranges [][2]int, length int) (Seq[Seq[T]], error) {
	parts := make([]Seq[T], len(ranges))
	for i, r := range ranges {
		start, stop := r[0], r[1]
		if stop < start {
			stop = start
		}
		view, err := Slice(s, start, stop, 1)
		if err != nil {
			return nil, err
		}
		parts[i] = view
	}
	return &constSeq[Seq[T]]{items: parts}, nil
}

// constSeq is a simple materialized Seq backing the parts produced by
// the split family; the parts themselves remain lazy views.
type constSeq[T any] struct {
	items []T
}

func (v *constSeq[T]) Len() (int, bool) { return len(v.items), true }

func (v *constSeq[T]) Get(i int) (T, error) {
	var zero T
	idx, err := normalizeIndex(i, len(v.items))
	if err != nil {
		return zero, err
	}
	return v.items[idx], nil
}
