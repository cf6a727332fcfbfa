// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// BatchMode controls how Batch handles a final group shorter than k.
type BatchMode int

const (
	// BatchShort returns the final group at whatever length remains.
	BatchShort BatchMode = iota
	// BatchDropLast omits a final group shorter than k entirely.
	BatchDropLast
	// BatchPad fills a final short group up to k with a pad value.
	BatchPad
)

// Batch groups s into slices of k elements. A final short group is
// handled per mode: returned as-is (BatchShort), omitted (BatchDropLast),
// or padded out to k with padValue (BatchPad). padValue is ignored
// unless mode is BatchPad.
//
// A custom collate function over each group is composed afterward with
// [Map]: Map(Batch(s, k, mode, zero), collateFn).
func Batch[T any](s Seq[T], k int, mode BatchMode, padValue T) (Seq[[]T], error) {
	if k <= 0 {
		return nil, &ValueOutOfRange{Name: "Batch(k)", Value: k}
	}
	n, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "batch requires a finite source"}
	}

	numBatches := n / k
	remainder := n % k
	switch {
	case remainder == 0:
		// nothing to adjust
	case mode == BatchDropLast:
		// remainder group omitted; numBatches already excludes it
	case mode == BatchPad, mode == BatchShort:
		numBatches++
	}

	return &batchView[T]{src: s, k: k, n: n, mode: mode, pad: padValue, numBatches: numBatches}, nil
}

type batchView[T any] struct {
	src        Seq[T]
	k          int
	n          int
	mode       BatchMode
	pad        T
	numBatches int
}

func (v *batchView[T]) Len() (int, bool) { return v.numBatches, true }

func (v *batchView[T]) Get(i int) ([]T, error) {
	idx, err := normalizeIndex(i, v.numBatches)
	if err != nil {
		return nil, err
	}
	start := idx * v.k
	stop := start + v.k
	if stop > v.n {
		stop = v.n
	}

	group := make([]T, 0, v.k)
	for j := start; j < stop; j++ {
		val, err := v.src.Get(j)
		if err != nil {
			return nil, err
		}
		group = append(group, val)
	}
	if v.mode == BatchPad {
		for len(group) < v.k {
			group = append(group, v.pad)
		}
	}
	return group, nil
}

// Unbatch is the inverse view of Batch: Get(i) = s.Get(i/k)[i mod k].
// lastK is the length of the final group, which may be shorter than k
// (pass k itself if the source has no short final group, as when it was
// produced by Batch in BatchPad mode).
func Unbatch[T any](s Seq[[]T], k, lastK int) (Seq[T], error) {
	numGroups, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "unbatch requires a finite source"}
	}
	if k <= 0 || lastK <= 0 || lastK > k {
		return nil, &ValueOutOfRange{Name: "Unbatch(lastK)", Value: lastK}
	}
	total := 0
	if numGroups > 0 {
		total = (numGroups-1)*k + lastK
	}
	return &unbatchView[T]{src: s, k: k, lastK: lastK, numGroups: numGroups, total: total}, nil
}

type unbatchView[T any] struct {
	src       Seq[[]T]
	k         int
	lastK     int
	numGroups int
	total     int
}

func (v *unbatchView[T]) Len() (int, bool) { return v.total, true }

func (v *unbatchView[T]) Get(i int) (T, error) {
	var zero T
	idx, err := normalizeIndex(i, v.total)
	if err != nil {
		return zero, err
	}
	groupIdx := idx / v.k
	within := idx % v.k
	group, err := v.src.Get(groupIdx)
	if err != nil {
		return zero, err
	}
	if within >= len(group) {
		return zero, &IndexOutOfRange{Index: i, Len: v.total}
	}
	return group[within], nil
}
