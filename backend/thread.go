// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/outrigger-data/seqflow/internal/queue"
)

// ThreadBackend is a fixed pool of goroutines sharing the calling
// process's memory. Values and errors land in process-local slices
// indexed by slot; no packing or shared-memory arena is involved,
// since workers and the scheduler share an address space.
type ThreadBackend[T any] struct {
	eval      Evaluator[T]
	jobs      queue.Queue[Job]
	done      queue.Queue[Completion]
	nworkers  int
	timeout   time.Duration
	startHook func()
	logger    zerolog.Logger

	mu     sync.RWMutex
	values []T
	errs   []error

	g      *errgroup.Group
	gctx   context.Context
	cancel context.CancelFunc
	died   atomic.Bool
	active atomic.Int32 // goroutines currently between dequeues or serving a job
	nextID atomic.Int32
}

// NewThreadBackend starts nworkers goroutines evaluating against eval,
// with an in-flight ring of maxBuffered slots.
func NewThreadBackend[T any](eval Evaluator[T], nworkers, maxBuffered int, timeout time.Duration, startHook func(), logger zerolog.Logger) *ThreadBackend[T] {
	b := &ThreadBackend[T]{
		eval:      eval,
		jobs:      queue.BuildSPMC[Job](queue.New(maxBuffered * 2).SingleProducer()),
		done:      queue.BuildMPSC[Completion](queue.New(maxBuffered * 2).SingleConsumer()),
		nworkers:  nworkers,
		timeout:   timeout,
		startHook: startHook,
		logger:    logger,
		values:    make([]T, maxBuffered),
		errs:      make([]error, maxBuffered),
	}
	b.gctx, b.cancel = context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(b.gctx)
	b.g, b.gctx = g, gctx
	for i := 0; i < nworkers; i++ {
		b.spawnWorker()
	}
	return b
}

// spawnWorker launches one more worker goroutine, up to nworkers
// concurrently alive. Called at construction and again from Submit
// whenever a prior worker has gone to sleep on idle timeout, so the
// scheduler restarts it on demand.
func (b *ThreadBackend[T]) spawnWorker() {
	if b.active.Add(1) > int32(b.nworkers) {
		b.active.Add(-1)
		return
	}
	id := int(b.nextID.Add(1) - 1)
	b.g.Go(func() error {
		defer b.active.Add(-1)
		return b.run(id)
	})
}

func (b *ThreadBackend[T]) run(id int) error {
	if b.startHook != nil {
		b.startHook()
	}
	for {
		job, timedOut, err := dequeueWithTimeout(b.gctx, b.jobs, b.timeout)
		if err != nil {
			return nil
		}
		if timedOut {
			b.logger.Debug().Int("worker", id).Msg("thread worker went to sleep")
			c := Completion{Slot: int32(-id - 1), Status: StatusAsleep}
			for b.done.Enqueue(&c) != nil {
			}
			return nil
		}
		if job.Terminate() {
			return nil
		}
		v, err := b.eval.Get(int(job.ItemIndex))
		c := Completion{ItemIndex: job.ItemIndex, Slot: job.Slot}
		if err != nil {
			b.mu.Lock()
			b.errs[job.Slot] = err
			b.mu.Unlock()
			c.Status = StatusFailed
		} else {
			b.mu.Lock()
			b.values[job.Slot] = v
			b.mu.Unlock()
			c.Status = StatusDone
		}
		for b.done.Enqueue(&c) != nil {
			// completion queue momentarily full; the scheduler drains
			// unconditionally, so this clears quickly.
		}
	}
}

func (b *ThreadBackend[T]) Submit(ctx context.Context, job Job) error {
	if int(b.active.Load()) < b.nworkers {
		b.spawnWorker()
	}
	for {
		if err := b.jobs.Enqueue(&job); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (b *ThreadBackend[T]) WaitCompletion(ctx context.Context) (Completion, error) {
	if b.died.Load() {
		return Completion{}, ErrWorkerDied
	}
	return blockingDequeue(ctx, b.done)
}

func (b *ThreadBackend[T]) Value(slot int32) T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[slot]
}

func (b *ThreadBackend[T]) Err(slot int32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errs[slot]
}

func (b *ThreadBackend[T]) Shutdown(ctx context.Context) error {
	for i := 0; i < b.nworkers; i++ {
		sentinel := Job{Slot: -1}
		for b.jobs.Enqueue(&sentinel) != nil {
			select {
			case <-ctx.Done():
				b.cancel()
				return ctx.Err()
			default:
			}
		}
	}
	err := b.g.Wait()
	b.cancel()
	return err
}
