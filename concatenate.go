// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import "sort"

// Concatenate joins seqs end to end: Get(i) locates the owning source
// with a prefix-sum binary search. Nested concatenations flatten at
// construction time instead of stacking wrapper views.
func Concatenate[T any](seqs []Seq[T]) (Seq[T], error) {
	flat := make([]Seq[T], 0, len(seqs))
	for _, s := range seqs {
		if c, ok := s.(*concatView[T]); ok {
			flat = append(flat, c.seqs...)
			continue
		}
		flat = append(flat, s)
	}

	prefix := make([]int, len(flat)+1)
	for i, s := range flat {
		n, known := s.Len()
		if !known {
			return nil, &InvalidIndex{Reason: "concatenate requires finite sources"}
		}
		prefix[i+1] = prefix[i] + n
	}
	return &concatView[T]{seqs: flat, prefix: prefix}, nil
}

type concatView[T any] struct {
	seqs   []Seq[T]
	prefix []int // prefix[k] = total length of seqs[:k]
}

func (v *concatView[T]) Len() (int, bool) {
	return v.prefix[len(v.prefix)-1], true
}

func (v *concatView[T]) Get(i int) (T, error) {
	var zero T
	n := v.prefix[len(v.prefix)-1]
	idx, err := normalizeIndex(i, n)
	if err != nil {
		return zero, err
	}
	// Last prefix index p such that prefix[p] <= idx.
	srcIdx := sort.SearchInts(v.prefix, idx+1) - 1
	return v.seqs[srcIdx].Get(idx - v.prefix[srcIdx])
}
