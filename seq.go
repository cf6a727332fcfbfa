// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Seq is a lazy, randomly indexable sequence. Implementations must be
// safe to call Get concurrently unless documented otherwise (Uniter and
// the sequences returned by Prefetch and PrefetchProcess are not).
//
// A Seq is immutable in structure: combinators never observe a
// source's length change between calls, except for sources that
// explicitly document mutability as supported (none in this package —
// see the Non-goals on mutable-during-iteration sources).
type Seq[T any] interface {
	// Len reports the sequence's length. known is false for infinite
	// views (repeat/cycle without a limit); in that case n is 0 and
	// must not be used.
	Len() (n int, known bool)

	// Get returns the element at index i, or a structural error.
	// Negative indices in [-len, -1] are accepted by combinators that
	// document Python-style negative indexing and are normalized to
	// len+i before delegation; this method itself receives only
	// already-normalized, non-negative indices from this package's own
	// combinators. Infinite views accept any i >= 0.
	Get(i int) (T, error)
}

// Slicer is implemented by sequences that can produce a flattened slice
// view directly, so that stacking slices composes offsets and strides
// instead of nesting nesting Seq wrappers. Combinators that build slice
// views check for this interface before falling back to a generic
// sliceView.
type Slicer[T any] interface {
	Seq[T]
	// slice returns a view over the half-open, already-normalized range
	// described by (start, stop, step), where stop = start + k*step for
	// some integer k >= 0. Implementations compose this with any slice
	// descriptor they already carry instead of wrapping.
	slice(start, stop, step int) Seq[T]
}

// normalizeIndex maps a possibly-negative index against length n to a
// non-negative index, or returns IndexOutOfRange.
func normalizeIndex(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, &IndexOutOfRange{Index: i, Len: n}
	}
	return i, nil
}

// Slice returns a view over s restricted to the normalized range
// [start:stop:step), with Python slicing semantics: negative start/stop
// are relative to the end, step may be negative, and out-of-range bounds
// are clipped rather than erroring. If s implements Slicer, the result
// composes with s's existing slice descriptor instead of nesting.
func Slice[T any](s Seq[T], start, stop, step int) (Seq[T], error) {
	if step == 0 {
		return nil, &InvalidIndex{Reason: "slice step must not be zero"}
	}
	n, known := s.Len()
	if !known {
		return nil, &InvalidIndex{Reason: "cannot slice a sequence of unknown length"}
	}

	nStart, nStop := normalizeSliceBound(start, n, step), normalizeSliceBound(stop, n, step)
	nStart, nStop = clampSliceBounds(nStart, nStop, n, step)
	nStop = alignStop(nStart, nStop, step)

	if sl, ok := s.(Slicer[T]); ok {
		return sl.slice(nStart, nStop, step), nil
	}
	return &sliceView[T]{src: s, start: nStart, stop: nStop, step: step}, nil
}

func normalizeSliceBound(v, n, step int) int {
	if v < 0 {
		v += n
	}
	return v
}

func clampSliceBounds(start, stop, n, step int) (int, int) {
	if step > 0 {
		if start < 0 {
			start = 0
		}
		if start > n {
			start = n
		}
		if stop < 0 {
			stop = 0
		}
		if stop > n {
			stop = n
		}
		return start, stop
	}
	if start > n-1 {
		start = n - 1
	}
	if start < -1 {
		start = -1
	}
	if stop > n-1 {
		stop = n - 1
	}
	if stop < -1 {
		stop = -1
	}
	return start, stop
}

// alignStop adjusts stop so that stop = start + k*step for an integer
// k >= 0, matching the slicing discipline's normalization rule.
func alignStop(start, stop, step int) int {
	if step > 0 {
		if stop <= start {
			return start
		}
		k := (stop - start + step - 1) / step
		return start + k*step
	}
	if stop >= start {
		return start
	}
	k := (start - stop + (-step) - 1) / (-step)
	return start + k*step
}

// sliceView is the fallback Seq returned by Slice for sources that do
// not implement Slicer themselves.
type sliceView[T any] struct {
	src   Seq[T]
	start int
	stop  int
	step  int
}

func (v *sliceView[T]) len() int {
	if v.step > 0 {
		if v.stop <= v.start {
			return 0
		}
		return (v.stop - v.start + v.step - 1) / v.step
	}
	if v.stop >= v.start {
		return 0
	}
	return (v.start - v.stop + (-v.step) - 1) / (-v.step)
}

func (v *sliceView[T]) Len() (int, bool) {
	return v.len(), true
}

func (v *sliceView[T]) Get(i int) (T, error) {
	var zero T
	n := v.len()
	idx, err := normalizeIndex(i, n)
	if err != nil {
		return zero, err
	}
	return v.src.Get(v.start + idx*v.step)
}

// slice composes a further slice into this one instead of nesting
// sliceView wrappers, satisfying Slicer.
func (v *sliceView[T]) slice(start, stop, step int) Seq[T] {
	return &sliceView[T]{
		src:   v.src,
		start: v.start + start*v.step,
		stop:  v.start + stop*v.step,
		step:  v.step * step,
	}
}
