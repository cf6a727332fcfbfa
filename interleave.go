// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import "sort"

// Interleave round-robins across seqs: it visits source 0, 1, …, m-1 in
// order and repeats, but as each source exhausts it drops out of the
// rotation so later rounds only visit sources that still have elements.
// Its length is the sum of the input lengths. All inputs must be
// finite.
//
// Get(i) is located in O(log n) using a precomputed prefix-sum-of-
// exhaustion table derived from the sorted input lengths, rather than
// by replaying rounds from the start.
func Interleave[T any](seqs []Seq[T]) (Seq[T], error) {
	lens := make([]int, len(seqs))
	for idx, s := range seqs {
		n, known := s.Len()
		if !known {
			return nil, &InvalidIndex{Reason: "interleave requires finite sources"}
		}
		lens[idx] = n
	}
	sortedLens := append([]int(nil), lens...)
	sort.Ints(sortedLens)
	prefix := make([]int, len(sortedLens)+1)
	for i, l := range sortedLens {
		prefix[i+1] = prefix[i] + l
	}
	total := prefix[len(prefix)-1]
	return &interleaveView[T]{
		seqs: seqs, lens: lens,
		sortedLens: sortedLens, prefix: prefix,
		total: total,
	}, nil
}

type interleaveView[T any] struct {
	seqs       []Seq[T]
	lens       []int
	sortedLens []int // ascending
	prefix     []int // prefix[k] = sum of the k smallest lengths
	total      int
}

func (v *interleaveView[T]) Len() (int, bool) {
	return v.total, true
}

// roundsOutput returns the number of elements output after r full
// rounds: sum over sources of min(r, len(source)).
func (v *interleaveView[T]) roundsOutput(r int) int {
	m := len(v.sortedLens)
	// k = count of sources fully exhausted by round r (len <= r).
	k := sort.SearchInts(v.sortedLens, r+1) // first index with len > r
	return v.prefix[k] + r*(m-k)
}

func (v *interleaveView[T]) Get(i int) (T, error) {
	var zero T
	n := v.total
	idx, err := normalizeIndex(i, n)
	if err != nil {
		return zero, err
	}

	maxRound := 0
	if len(v.sortedLens) > 0 {
		maxRound = v.sortedLens[len(v.sortedLens)-1]
	}
	// Smallest r such that roundsOutput(r+1) > idx: idx falls in round r.
	r := sort.Search(maxRound, func(r int) bool {
		return v.roundsOutput(r+1) > idx
	})

	offsetInRound := idx - v.roundsOutput(r)
	count := 0
	for srcIdx, l := range v.lens {
		if l <= r {
			continue // this source already exhausted by round r
		}
		if count == offsetInRound {
			return v.seqs[srcIdx].Get(r)
		}
		count++
	}
	return zero, &IndexOutOfRange{Index: i, Len: n}
}
