// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package seqflow provides lazy, indexable sequence transformations and an
// asynchronous prefetching engine.
//
// A [Seq] is a lazy, randomly indexable sequence: it reports a length (or
// that its length is unknown, for infinite views) and serves Get(i)
// independent of iteration order. Combinators build new sequences by
// composing existing ones without materializing intermediate results:
//
//	ids, err := seqflow.Arange(0, len(paths), 1)
//	...
//	loaded := seqflow.Map(ids, func(i int) (Image, error) {
//	    return loadImage(paths[i])
//	})
//	batched, err := seqflow.Batch(loaded, 32, seqflow.BatchDropLast, Image{})
//
// Attaching a prefetcher evaluates items ahead of consumption on a fixed
// pool of workers, so that by the time the consumer calls Get(i) the result
// is usually already computed:
//
//	pf, err := seqflow.Prefetch(batched, seqflow.NWorkers(4))
//	...
//	defer pf.(io.Closer).Close()
//	for i := 0; i < n; i++ {
//	    batch, err := pf.Get(i)
//	    ...
//	}
//
// [PrefetchProcess] runs workers as separate OS processes instead of
// goroutines, trading IPC overhead for true parallelism and fault isolation
// (a panic or segfault in one worker does not take down the consumer).
// Because Go cannot serialize closures the way Python's multiprocessing
// pickles callables, process-backed prefetching requires the sequence to be
// built from a factory registered with [github.com/outrigger-data/seqflow/registry];
// see that package's documentation.
package seqflow
