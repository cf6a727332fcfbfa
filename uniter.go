// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import "iter"

// Uniter makes an indexable [Seq] out of a one-shot iterable by running
// nParallel independent instances of factory concurrently-in-spirit
// (sequentially driven, never actually running at the same time — see
// below) and keeping a small FIFO cache of the last cacheSize elements
// produced by each. A request below the current position of every
// instance restarts whichever instance is furthest behind, since it has
// the least progress to discard.
//
// size, if non-nil, is the known length of the underlying iterable;
// Uniter itself never inspects the iterable to discover a length.
//
// Uniter is accessed only from the consumer goroutine. The underlying
// source's concurrent-access semantics are undocumented upstream
// (mirroring the ambiguity noted for the original combinator), so this
// implementation does not attempt to synchronize it; Get must not be
// called concurrently.
func Uniter[T any](factory func() iter.Seq[T], cacheSize, nParallel int, size *int) (Seq[T], error) {
	if cacheSize <= 0 {
		return nil, &ValueOutOfRange{Name: "Uniter(cacheSize)", Value: cacheSize}
	}
	if nParallel <= 0 {
		return nil, &ValueOutOfRange{Name: "Uniter(nParallel)", Value: nParallel}
	}
	if size != nil && *size < 0 {
		return nil, &ValueOutOfRange{Name: "Uniter(size)", Value: *size}
	}
	v := &uniterView[T]{
		factory:   factory,
		cacheSize: cacheSize,
		size:      size,
		workers:   make([]*uniterWorker[T], nParallel),
	}
	for i := range v.workers {
		v.workers[i] = newUniterWorker(factory)
	}
	return v, nil
}

type uniterWorker[T any] struct {
	pos   int // index of the next element this worker will produce
	next  func() (T, bool)
	stop  func()
	cache map[int]T
	order []int // FIFO of cached keys, oldest first
}

func newUniterWorker[T any](factory func() iter.Seq[T]) *uniterWorker[T] {
	next, stop := iter.Pull(factory())
	return &uniterWorker[T]{next: next, stop: stop, cache: make(map[int]T)}
}

func (w *uniterWorker[T]) remember(cacheSize, key int, val T) {
	if _, exists := w.cache[key]; exists {
		return
	}
	if len(w.order) >= cacheSize {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.cache, oldest)
	}
	w.cache[key] = val
	w.order = append(w.order, key)
}

// advanceTo pulls elements until this worker's position reaches target
// (inclusive), caching each. Returns IndexOutOfRange if the underlying
// iterator is exhausted first.
func (w *uniterWorker[T]) advanceTo(cacheSize, target int) error {
	for w.pos <= target {
		val, ok := w.next()
		if !ok {
			return &IndexOutOfRange{Index: target, Len: w.pos}
		}
		w.remember(cacheSize, w.pos, val)
		w.pos++
	}
	return nil
}

type uniterView[T any] struct {
	factory   func() iter.Seq[T]
	cacheSize int
	size      *int
	workers   []*uniterWorker[T]
}

func (v *uniterView[T]) Len() (int, bool) {
	if v.size == nil {
		return 0, false
	}
	return *v.size, true
}

func (v *uniterView[T]) Get(i int) (T, error) {
	var zero T
	if v.size != nil {
		idx, err := normalizeIndex(i, *v.size)
		if err != nil {
			return zero, err
		}
		i = idx
	} else if i < 0 {
		return zero, &InvalidIndex{Reason: "negative indexing requires a known size"}
	}

	for _, w := range v.workers {
		if val, ok := w.cache[i]; ok {
			return val, nil
		}
	}

	// Candidate: the worker with the greatest position <= i (least
	// catch-up work).
	var best *uniterWorker[T]
	for _, w := range v.workers {
		if w.pos <= i && (best == nil || w.pos > best.pos) {
			best = w
		}
	}
	if best == nil {
		// Every worker has already passed i and it fell out of all
		// caches: restart whichever worker is furthest behind.
		behind := v.workers[0]
		for _, w := range v.workers[1:] {
			if w.pos < behind.pos {
				behind = w
			}
		}
		behind.stop()
		*behind = *newUniterWorker(v.factory)
		best = behind
	}

	if err := best.advanceTo(v.cacheSize, i); err != nil {
		return zero, err
	}
	return best.cache[i], nil
}
