// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"time"

	"code.hybscloud.com/spin"

	"github.com/outrigger-data/seqflow/internal/queue"
)

// blockingDequeue spins (with an escalating backoff) on a lock-free
// Consumer until an element is available or ctx is done. It has no idle
// timeout of its own; dequeueWithTimeout adds one.
func blockingDequeue[T any](ctx context.Context, c queue.Consumer[T]) (T, error) {
	sw := spin.Wait{}
	for {
		v, err := c.Dequeue()
		if err == nil {
			return v, nil
		}
		if !queue.IsWouldBlock(err) {
			var zero T
			return zero, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}
		sw.Once()
	}
}

// dequeueWithTimeout is blockingDequeue bounded by an idle timeout: a
// worker uses it to notice it has had nothing to do for timeout and
// should go to sleep. timedOut is true only when the deadline passed
// with nothing dequeued (err is nil in that case too).
func dequeueWithTimeout[T any](ctx context.Context, c queue.Consumer[T], timeout time.Duration) (v T, timedOut bool, err error) {
	deadline := time.Now().Add(timeout)
	sw := spin.Wait{}
	for {
		v, derr := c.Dequeue()
		if derr == nil {
			return v, false, nil
		}
		if !queue.IsWouldBlock(derr) {
			var zero T
			return zero, false, derr
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		default:
		}
		if timeout > 0 && time.Now().After(deadline) {
			var zero T
			return zero, true, nil
		}
		sw.Once()
	}
}

// blockingDequeueIndirect is the QueueIndirect counterpart of
// blockingDequeue. Nothing in this module calls it; arena.Fetch
// dequeues from its free set directly.
func blockingDequeueIndirect(ctx context.Context, c queue.ConsumerIndirect) (uintptr, error) {
	sw := spin.Wait{}
	for {
		v, err := c.Dequeue()
		if err == nil {
			return v, nil
		}
		if !queue.IsWouldBlock(err) {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		sw.Once()
	}
}
