// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import (
	"context"
	goerrors "errors"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/outrigger-data/seqflow/backend"
	"github.com/outrigger-data/seqflow/pack"
)

// itemStatus tracks one ring slot's outstanding job.
type itemStatus uint8

const (
	itemQueued itemStatus = iota
	itemDone
	itemFailed
)

// prefetchSeq implements the prefetch scheduler: a ring of max_buffered
// slots, each tracking the item index it was last assigned (todo),
// that item's outstanding status, and a rotating firstSlot marking the
// next item due to the consumer.
//
// Not safe for concurrent Get calls; the scheduler itself is
// single-threaded (see seq.go's Seq doc).
type prefetchSeq[T any] struct {
	be          backend.Backend[T]
	lenFn       func() (int, bool)
	anticipate  func(int64) int64
	maxBuffered int
	stack       error

	todo      []int64
	status    []itemStatus
	firstSlot int

	closed *atomic.Bool
}

// newPrefetchSeq seeds the ring from item 0 and arms a best-effort
// finalizer backstop: callers should still call Close explicitly (the
// finalizer's timing is not guaranteed, matching arena.Slot's release
// discipline).
func newPrefetchSeq[T any](be backend.Backend[T], lenFn func() (int, bool), cfg config) (*prefetchSeq[T], error) {
	if cfg.maxBuffered < 1 {
		return nil, &ValueOutOfRange{Name: "MaxBuffered", Value: cfg.maxBuffered}
	}
	p := &prefetchSeq[T]{
		be:          be,
		lenFn:       lenFn,
		anticipate:  cfg.anticipate,
		maxBuffered: cfg.maxBuffered,
		stack:       errors.WithStack(goerrors.New("seqflow: prefetcher constructed here")),
		todo:        make([]int64, cfg.maxBuffered),
		status:      make([]itemStatus, cfg.maxBuffered),
		closed:      new(atomic.Bool),
	}

	ctx := context.Background()
	next := int64(0)
	for k := 0; k < cfg.maxBuffered; k++ {
		p.todo[k] = next
		if err := be.Submit(ctx, backend.Job{ItemIndex: next, Slot: int32(k)}); err != nil {
			return nil, err
		}
		p.status[k] = itemQueued
		next = cfg.anticipate(next)
	}

	runtime.AddCleanup(p, closePrefetchBackend[T], prefetchCleanup[T]{be: be, closed: p.closed})
	return p, nil
}

// prefetchCleanup must not reference the prefetchSeq it guards (only
// its backend and an independently heap-allocated close flag), per
// runtime.AddCleanup's no-self-reference requirement.
type prefetchCleanup[T any] struct {
	be     backend.Backend[T]
	closed *atomic.Bool
}

func closePrefetchBackend[T any](c prefetchCleanup[T]) {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.be.Shutdown(context.Background())
	}
}

// Close shuts the prefetcher's backend down: drains the job queue,
// signals every worker to exit, and joins them. Safe to call more than
// once. Callers should call Close explicitly rather than rely on the
// finalizer backstop for cancellation.
func (p *prefetchSeq[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.be.Shutdown(context.Background())
}

func (p *prefetchSeq[T]) Len() (int, bool) { return p.lenFn() }

func (p *prefetchSeq[T]) Get(i int) (T, error) {
	var zero T

	n, known := p.lenFn()
	var item int64
	if known {
		idx, err := normalizeIndex(i, n)
		if err != nil {
			return zero, err
		}
		item = int64(idx)
	} else {
		if i < 0 {
			return zero, &InvalidIndex{Reason: "negative index on a sequence of unknown length"}
		}
		item = int64(i)
	}

	ctx := context.Background()
	hit := item == p.todo[p.firstSlot]

	if !hit {
		// Non-monotonic miss: reassign the entire ring from item.
		p.todo[0] = item
		for k := 1; k < p.maxBuffered; k++ {
			p.todo[k] = p.anticipate(p.todo[k-1])
		}
		for k := 0; k < p.maxBuffered; k++ {
			if p.status[k] != itemQueued {
				if err := p.be.Submit(ctx, backend.Job{ItemIndex: p.todo[k], Slot: int32(k)}); err != nil {
					return zero, err
				}
				p.status[k] = itemQueued
			}
			// Slots already Queued keep their outstanding job under the
			// old target; the drain loop below discards and resubmits
			// them once their stale completion arrives.
		}
		p.firstSlot = 0
	}

	for p.status[p.firstSlot] == itemQueued {
		c, err := p.be.WaitCompletion(ctx)
		if err != nil {
			return zero, workerDiedErr(err)
		}
		if _, asleep := c.Asleep(); asleep {
			// The backend restarts a sleeping worker on the next Submit;
			// nothing for the scheduler to do but keep draining.
			continue
		}
		slot := int(c.Slot)
		if c.ItemIndex != p.todo[slot] {
			// Stale: this slot's target moved on before the job it was
			// still running finished. Discard and resubmit under the
			// current target.
			if err := p.be.Submit(ctx, backend.Job{ItemIndex: p.todo[slot], Slot: int32(slot)}); err != nil {
				return zero, err
			}
			continue
		}
		switch c.Status {
		case backend.StatusDone:
			p.status[slot] = itemDone
		case backend.StatusFailed:
			p.status[slot] = itemFailed
		}
	}

	var result T
	var resultErr error
	switch p.status[p.firstSlot] {
	case itemFailed:
		cause := p.be.Err(int32(p.firstSlot))
		var lost *backend.EvaluationFailure
		if goerrors.As(cause, &lost) {
			// Only the string form crossed the process boundary.
			resultErr = newEvaluationErrorFromText(p.stack, item, lost.Error()).resolve()
		} else {
			resultErr = newEvaluationError(p.stack, item, cause).resolve()
		}
	default: // itemDone
		result = p.be.Value(int32(p.firstSlot))
	}

	if hit {
		// The slot just drawn is now free: extend the anticipation chain
		// by one and refill it.
		prev := p.firstSlot
		tail := (prev - 1 + p.maxBuffered) % p.maxBuffered
		p.todo[prev] = p.anticipate(p.todo[tail])
		if err := p.be.Submit(ctx, backend.Job{ItemIndex: p.todo[prev], Slot: int32(prev)}); err != nil {
			return zero, err
		}
		p.status[prev] = itemQueued
	}
	p.firstSlot = (p.firstSlot + 1) % p.maxBuffered

	return result, resultErr
}

// workerDiedErr normalizes any flavor of worker death a Backend may
// report into the public WorkerDied error, recovering the worker id
// when the backend supplied one.
func workerDiedErr(err error) error {
	var wd *backend.WorkerDiedError
	if goerrors.As(err, &wd) {
		return &WorkerDied{WorkerID: wd.WorkerID}
	}
	if goerrors.Is(err, backend.ErrWorkerDied) {
		return &WorkerDied{WorkerID: -1}
	}
	return err
}

// Prefetch wraps s in an asynchronous prefetching engine, running
// workers as goroutines in the calling process. The returned Seq[T]
// preserves s's Len and the identity s.get(i) == prefetch(s).get(i) for
// every index that does not error structurally.
//
// The returned Seq also implements io.Closer; callers should Close it
// once done to stop its workers promptly rather than rely on the
// finalizer backstop.
func Prefetch[T any](s Seq[T], opts ...Option) (Seq[T], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.method != MethodThread {
		return nil, &ConfigError{Reason: "WithMethod(MethodProcess) requires PrefetchProcess, which can transport a result across a process boundary; Prefetch only ever runs MethodThread"}
	}
	be := backend.NewThreadBackend[T](s, cfg.resolveNWorkers(), cfg.maxBuffered, cfg.timeout, cfg.startHook, cfg.logger)
	p, err := newPrefetchSeq[T](be, s.Len, cfg)
	if err != nil {
		_ = be.Shutdown(context.Background())
		return nil, err
	}
	return p, nil
}

// PrefetchProcess wraps a named, registered sequence factory in an
// asynchronous prefetching engine whose workers are independent OS
// processes: the current binary is re-exec'd with environment
// variables identifying the worker role, the factory name, and the
// base64-encoded args, and a host program's main() must hand control to
// backend.RunWorker when backend.IsWorker() reports true (see that
// function's doc comment for the exact pattern).
//
// name must already be registered with [RegisterFactory] (typically
// from an init function, so the re-exec'd worker's own init sees it
// too); otherwise every worker process fails immediately. Because
// worker processes cannot share this process's memory, the result Seq
// only ever holds [pack.Value]: values cross the process boundary
// through seqflow/pack's probe-driven zero-copy transport (when
// ShmSize > 0) or a portable serialized fallback.
//
// The returned sequence's length is always reported unknown: the
// factory is only ever constructed inside the worker processes, so
// this process has no way to ask it for Len without spawning one.
func PrefetchProcess(name string, args []byte, opts ...Option) (Seq[pack.Value], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shmSize > 0 && cfg.maxBuffered < 4 {
		cfg.logger.Warn().Int("max_buffered", cfg.maxBuffered).
			Msg("MaxBuffered below 4 with shared-memory transport enabled; the allocator may stall recycling slots")
	}
	be, err := backend.NewProcessBackend(name, args, cfg.resolveNWorkers(), cfg.maxBuffered, cfg.shmSize, cfg.timeout, cfg.startHook, cfg.logger)
	if err != nil {
		return nil, err
	}
	unknownLen := func() (int, bool) { return 0, false }
	p, err := newPrefetchSeq[pack.Value](be, unknownLen, cfg)
	if err != nil {
		_ = be.Shutdown(context.Background())
		return nil, err
	}
	return p, nil
}
