// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import (
	"errors"
	"testing"
)

func must[T any](t *testing.T, v T, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func collect[T any](t *testing.T, s Seq[T]) []T {
	t.Helper()
	n, known := s.Len()
	if !known {
		t.Fatal("collect: sequence has unknown length")
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		v, err := s.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		out[i] = v
	}
	return out
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMap(t *testing.T) {
	s := must(t, Arange(0, 5, 1))
	doubled := Map(s, func(i int) (int, error) { return i * 2, nil })
	if got := collect(t, doubled); !intsEqual(got, []int{0, 2, 4, 6, 8}) {
		t.Fatalf("Map = %v, want [0 2 4 6 8]", got)
	}
}

func TestMapPropagatesSourceError(t *testing.T) {
	s := must(t, Arange(0, 3, 1))
	mapped := Map(s, func(i int) (int, error) { return i, nil })
	if _, err := mapped.Get(99); err == nil {
		t.Fatal("Get(99) on a length-3 source: want an error")
	}
}

func TestMap2ShorterLengthWins(t *testing.T) {
	a := must(t, Arange(0, 5, 1))
	b := must(t, Arange(0, 3, 1))
	sum := Map2(a, b, func(x, y int) (int, error) { return x + y, nil })
	n, known := sum.Len()
	if !known || n != 3 {
		t.Fatalf("Len() = (%d, %v), want (3, true)", n, known)
	}
}

func TestStarMap(t *testing.T) {
	pairs := &constSeq[Pair[int, int]]{items: []Pair[int, int]{{1, 2}, {3, 4}}}
	sums := StarMap[int, int, int](pairs, func(a, b int) (int, error) { return a + b, nil })
	if got := collect(t, sums); !intsEqual(got, []int{3, 7}) {
		t.Fatalf("StarMap = %v, want [3 7]", got)
	}
}

func TestBatchShortDropAndPad(t *testing.T) {
	s := must(t, Arange(0, 7, 1))

	short := must(t, Batch(s, 3, BatchShort, 0))
	n, _ := short.Len()
	if n != 3 {
		t.Fatalf("BatchShort Len = %d, want 3", n)
	}
	last := must(t, short.Get(2))
	if !intsEqual(last, []int{6}) {
		t.Fatalf("BatchShort last group = %v, want [6]", last)
	}

	dropped := must(t, Batch(s, 3, BatchDropLast, 0))
	n, _ = dropped.Len()
	if n != 2 {
		t.Fatalf("BatchDropLast Len = %d, want 2", n)
	}

	padded := must(t, Batch(s, 3, BatchPad, -1))
	lastPadded := must(t, padded.Get(2))
	if !intsEqual(lastPadded, []int{6, -1, -1}) {
		t.Fatalf("BatchPad last group = %v, want [6 -1 -1]", lastPadded)
	}
}

func TestBatchRejectsNonPositiveK(t *testing.T) {
	s := must(t, Arange(0, 4, 1))
	if _, err := Batch(s, 0, BatchShort, 0); err == nil {
		t.Fatal("Batch(k=0): want an error")
	}
}

func TestBatchUnbatchRoundTrip(t *testing.T) {
	s := must(t, Arange(0, 9, 1))
	batched := must(t, Batch(s, 3, BatchShort, 0))
	unbatched := must(t, Unbatch[int](batched, 3, 3))

	got := collect(t, unbatched)
	want := collect(t, s)
	if !intsEqual(got, want) {
		t.Fatalf("unbatch(batch(s, 3), 3) = %v, want %v", got, want)
	}
}

func TestAddCache(t *testing.T) {
	calls := 0
	s := must(t, Arange(0, 10, 1))
	counting := Map(s, func(i int) (int, error) { calls++; return i, nil })
	cached := must(t, AddCache[int](counting, 4))

	for i := 0; i < 3; i++ {
		must(t, cached.Get(5))
	}
	if calls != 1 {
		t.Fatalf("underlying source called %d times for a repeated hit, want 1", calls)
	}
}

func TestAddCacheRejectsNonPositiveSize(t *testing.T) {
	s := must(t, Arange(0, 4, 1))
	if _, err := AddCache[int](s, 0); err == nil {
		t.Fatal("AddCache(0): want an error")
	}
}

func TestCollate2(t *testing.T) {
	a := must(t, Arange(0, 3, 1))
	b := must(t, Arange(10, 13, 1))
	pairs := must(t, Collate2(a, b))
	p := must(t, pairs.Get(1))
	if p.First != 1 || p.Second != 11 {
		t.Fatalf("Collate2.Get(1) = %+v, want {1 11}", p)
	}
}

func TestCollate2LengthMismatch(t *testing.T) {
	a := must(t, Arange(0, 3, 1))
	b := must(t, Arange(0, 4, 1))
	if _, err := Collate2(a, b); err == nil {
		t.Fatal("Collate2 with mismatched lengths: want an error")
	}
	var lm *LengthMismatch
	if _, err := Collate2(a, b); !errors.As(err, &lm) {
		t.Fatal("Collate2 error is not a *LengthMismatch")
	}
}

func TestCollateN(t *testing.T) {
	a := must(t, Arange(0, 3, 1))
	b := must(t, Arange(10, 13, 1))
	c := must(t, Arange(100, 103, 1))
	rows := must(t, Collate([]Seq[int]{a, b, c}))
	row := must(t, rows.Get(2))
	if !intsEqual(row, []int{2, 12, 102}) {
		t.Fatalf("Collate.Get(2) = %v, want [2 12 102]", row)
	}
}

func TestConcatenate(t *testing.T) {
	a := must(t, Arange(0, 3, 1))
	b := must(t, Arange(10, 13, 1))
	joined := must(t, Concatenate([]Seq[int]{a, b}))
	if got := collect(t, joined); !intsEqual(got, []int{0, 1, 2, 10, 11, 12}) {
		t.Fatalf("Concatenate = %v, want [0 1 2 10 11 12]", got)
	}
}

func TestConcatenateFlattensNested(t *testing.T) {
	a := must(t, Arange(0, 2, 1))
	b := must(t, Arange(10, 12, 1))
	c := must(t, Arange(20, 22, 1))
	ab := must(t, Concatenate([]Seq[int]{a, b}))
	nested := must(t, Concatenate([]Seq[int]{ab, c}))

	direct := must(t, Concatenate([]Seq[int]{a, b, c}))
	if got, want := collect(t, nested), collect(t, direct); !intsEqual(got, want) {
		t.Fatalf("concatenate(concatenate(xs)) = %v, want %v (flattening law)", got, want)
	}
	if cv, ok := nested.(*concatView[int]); !ok || len(cv.seqs) != 3 {
		t.Fatal("Concatenate did not flatten a nested concatView into a single 3-source view")
	}
}

func TestCycleFiniteAndInfinite(t *testing.T) {
	s := must(t, Arange(0, 3, 1))

	limit := 7
	finite := must(t, Cycle[int](s, &limit))
	for i := 0; i < 7; i++ {
		got := must(t, finite.Get(i))
		want := must(t, s.Get(i % 3))
		if got != want {
			t.Fatalf("cycle(s,k).Get(%d) = %d, want s.Get(%d mod len(s)) = %d", i, got, i, want)
		}
	}

	infinite := must(t, Cycle[int](s, nil))
	if _, known := infinite.Len(); known {
		t.Fatal("Cycle(s, nil).Len(): known = true, want false")
	}
	got := must(t, infinite.Get(10))
	want := must(t, s.Get(10%3))
	if got != want {
		t.Fatalf("infinite cycle Get(10) = %d, want %d", got, want)
	}
}

func TestCycleRejectsEmptySource(t *testing.T) {
	s := must(t, Arange(0, 0, 1))
	if _, err := Cycle[int](s, nil); err == nil {
		t.Fatal("Cycle over an empty source: want an error")
	}
}

func TestRepeat(t *testing.T) {
	n := 3
	r := must(t, Repeat("x", &n))
	if got := collect(t, r); got[0] != "x" || got[1] != "x" || got[2] != "x" {
		t.Fatalf("Repeat = %v, want [x x x]", got)
	}
}

func TestGatherAndReindex(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	g := Gather[int](s, []int{9, 0, 5})
	if got := collect(t, g); !intsEqual(got, []int{9, 0, 5}) {
		t.Fatalf("Gather = %v, want [9 0 5]", got)
	}
	r := Reindex[int](s, []int{9, 0, 5})
	if got := collect(t, r); !intsEqual(got, []int{9, 0, 5}) {
		t.Fatalf("Reindex = %v, want [9 0 5]", got)
	}
}

func TestGatherComposesInsteadOfNesting(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	a := []int{5, 6, 7, 8, 9}
	b := []int{4, 3, 0}

	composed := Gather[int](Gather[int](s, a), b)
	direct := Gather[int](s, []int{a[4], a[3], a[0]})

	if got, want := collect(t, composed), collect(t, direct); !intsEqual(got, want) {
		t.Fatalf("gather(gather(s,a),b) = %v, want gather(s,a[b]) = %v", got, want)
	}
	if gv, ok := composed.(*gatherView[int]); !ok || gv.src != s {
		t.Fatal("Gather(Gather(s,a),b) did not flatten to a single gatherView over s")
	}
}

func TestTake(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	head := must(t, Take[int](s, 3))
	if got := collect(t, head); !intsEqual(got, []int{0, 1, 2}) {
		t.Fatalf("Take(3) = %v, want [0 1 2]", got)
	}
}

func TestTakeRejectsOutOfRange(t *testing.T) {
	s := must(t, Arange(0, 3, 1))
	if _, err := Take[int](s, 5); err == nil {
		t.Fatal("Take(5) on a length-3 source: want an error")
	}
}

func TestInterleave(t *testing.T) {
	a := must(t, Arange(0, 2, 1))   // 0 1
	b := must(t, Arange(10, 15, 1)) // 10 11 12 13 14
	il := must(t, Interleave([]Seq[int]{a, b}))

	got := collect(t, il)
	want := []int{0, 10, 1, 11, 12, 13, 14}
	if !intsEqual(got, want) {
		t.Fatalf("Interleave = %v, want %v", got, want)
	}
}

func TestInterleaveEqualLengths(t *testing.T) {
	a := must(t, Arange(0, 3, 1))
	b := must(t, Arange(100, 103, 1))
	il := must(t, Interleave([]Seq[int]{a, b}))
	got := collect(t, il)
	want := []int{0, 100, 1, 101, 2, 102}
	if !intsEqual(got, want) {
		t.Fatalf("Interleave(equal lengths) = %v, want %v", got, want)
	}
}

func TestSplitEqual(t *testing.T) {
	s := must(t, Arange(0, 9, 1))
	parts := must(t, SplitEqual[int](s, 3))
	n, _ := parts.Len()
	if n != 3 {
		t.Fatalf("SplitEqual parts count = %d, want 3", n)
	}
	part1 := must(t, parts.Get(1))
	if got := collect(t, part1); !intsEqual(got, []int{3, 4, 5}) {
		t.Fatalf("SplitEqual part 1 = %v, want [3 4 5]", got)
	}
}

func TestSplitEqualRejectsNonDividingN(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	if _, err := SplitEqual[int](s, 3); err == nil {
		t.Fatal("SplitEqual(10, 3): want an error (10 is not divisible by 3)")
	}
}

func TestSplitAt(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	parts := must(t, SplitAt[int](s, []int{3, 7}))
	n, _ := parts.Len()
	if n != 3 {
		t.Fatalf("SplitAt parts count = %d, want 3", n)
	}
	want := [][]int{{0, 1, 2}, {3, 4, 5, 6}, {7, 8, 9}}
	for i, w := range want {
		part := must(t, parts.Get(i))
		if got := collect(t, part); !intsEqual(got, w) {
			t.Fatalf("SplitAt part %d = %v, want %v", i, got, w)
		}
	}
}

func TestSliceComposition(t *testing.T) {
	s := must(t, Arange(0, 20, 1))
	once := must(t, Slice[int](s, 2, 18, 2)) // 2,4,...,16
	twice := must(t, Slice[int](once, 1, 5, 1))

	got := collect(t, twice)
	want := collect(t, once)[1:5]
	if !intsEqual(got, want) {
		t.Fatalf("slice(slice(s,a),b) = %v, want %v", got, want)
	}
}

func TestSliceNegativeAndStep(t *testing.T) {
	s := must(t, Arange(0, 10, 1))
	v := must(t, Slice[int](s, -3, 10, 1))
	if got := collect(t, v); !intsEqual(got, []int{7, 8, 9}) {
		t.Fatalf("Slice(-3, 10, 1) = %v, want [7 8 9]", got)
	}
}

func TestSliceRejectsZeroStep(t *testing.T) {
	s := must(t, Arange(0, 5, 1))
	if _, err := Slice[int](s, 0, 5, 0); err == nil {
		t.Fatal("Slice with step=0: want an error")
	}
}

func TestArange(t *testing.T) {
	s := must(t, Arange(5, 20, 3))
	if got := collect(t, s); !intsEqual(got, []int{5, 8, 11, 14, 17}) {
		t.Fatalf("Arange(5,20,3) = %v, want [5 8 11 14 17]", got)
	}
}

func TestNormalizeIndexNegative(t *testing.T) {
	s := must(t, Arange(0, 5, 1))
	v := must(t, s.Get(-1))
	if v != 4 {
		t.Fatalf("Get(-1) = %d, want 4", v)
	}
}

func TestNormalizeIndexOutOfRange(t *testing.T) {
	s := must(t, Arange(0, 5, 1))
	if _, err := s.Get(5); err == nil {
		t.Fatal("Get(5) on a length-5 source: want an error")
	}
	var ior *IndexOutOfRange
	_, err := s.Get(5)
	if !errors.As(err, &ior) {
		t.Fatal("error is not a *IndexOutOfRange")
	}
}
