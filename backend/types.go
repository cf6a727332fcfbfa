// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package backend implements the abstract async worker pool that the
// prefetch scheduler drives: submit an item index, wait for any worker
// to finish, read back the value or error landed in the matching slot.
//
// Two concrete backends are provided: ThreadBackend, a fixed pool of
// goroutines sharing process memory, and ProcessBackend, a fixed pool
// of independently spawned OS processes communicating over pipes with
// optional zero-copy shared-memory transport.
package backend

import (
	"context"
	"errors"
)

// Status tags a Completion's outcome.
type Status uint8

const (
	// StatusDone means the worker computed a value successfully.
	StatusDone Status = iota
	// StatusFailed means seq.Get(idx) returned an error.
	StatusFailed
	// StatusAsleep is only ever observed on the Completion channel: it
	// signals that worker -Slot-1 timed out waiting for work and exited
	// voluntarily. It carries no item.
	StatusAsleep
)

// Job is submitted to a Backend. Slot < 0 is the terminate sentinel.
type Job struct {
	ItemIndex int64
	Slot      int32
}

// Terminate reports whether this Job is the sentinel instructing a
// worker to exit.
func (j Job) Terminate() bool { return j.Slot < 0 }

// Completion is returned by WaitCompletion. A negative Slot encodes
// "worker went to sleep", identifying the worker as -Slot-1.
type Completion struct {
	ItemIndex int64
	Slot      int32
	Status    Status
}

// Asleep reports whether this Completion is a went-to-sleep signal
// rather than a job result, and if so which worker sent it.
func (c Completion) Asleep() (workerID int, ok bool) {
	if c.Slot >= 0 {
		return 0, false
	}
	return int(-c.Slot - 1), true
}

// ErrWorkerDied is a fatal infrastructure error surfaced at the next
// WaitCompletion after a backend detects that a worker is no longer
// alive. The pipeline is unusable once this is observed.
var ErrWorkerDied = errors.New("backend: worker died")

// WorkerDiedError carries the id of the specific worker a backend's
// heartbeat monitor observed dying, when known. errors.Is(err,
// ErrWorkerDied) still matches through Unwrap.
type WorkerDiedError struct {
	WorkerID int
}

func (e *WorkerDiedError) Error() string {
	return ErrWorkerDied.Error()
}

func (e *WorkerDiedError) Unwrap() error {
	return ErrWorkerDied
}

// Evaluator is the structural contract a Backend drives: anything with
// a Get(int) (T, error) method, which is exactly seqflow.Seq[T]'s
// shape minus Len. Kept separate from seqflow.Seq so this package
// never imports the root package (avoiding an import cycle, since the
// root package constructs backends).
type Evaluator[T any] interface {
	Get(i int) (T, error)
}

// Backend is the abstract worker pool the prefetch scheduler drives.
//
// Invariants: at most one completion is produced per submission;
// completions may arrive out of submission order; there is no FIFO
// guarantee across workers; Submit need not be non-blocking but must
// never deadlock so long as completions are being drained.
type Backend[T any] interface {
	// Submit enqueues a job. For backends with a shared-memory arena,
	// Slot also selects the arena slot the result must land in.
	Submit(ctx context.Context, job Job) error

	// WaitCompletion blocks until any worker finishes, or returns
	// ErrWorkerDied if a worker has died since the last call.
	WaitCompletion(ctx context.Context) (Completion, error)

	// Value returns the result landed in slot by a Done completion.
	// Only valid to call after observing that completion.
	Value(slot int32) T

	// Err returns the error landed in slot by a Failed completion.
	// Only valid to call after observing that completion.
	Err(slot int32) error

	// Shutdown drains the job queue, pushes one terminate sentinel per
	// worker, and joins them.
	Shutdown(ctx context.Context) error
}
