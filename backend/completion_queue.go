// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"syscall"

	"code.hybscloud.com/spin"

	"github.com/outrigger-data/seqflow/internal/queue"
)

// syscallSigZero is signal 0: POSIX guarantees it performs error
// checking (does the process exist, do we have permission to signal
// it) without actually delivering anything, the standard liveness
// probe used by the heartbeat monitor.
const syscallSigZero = syscall.Signal(0)

// completionQueue wraps a lock-free MPSC queue (many worker reader
// goroutines producing, one scheduler consuming) with blocking
// enqueue/dequeue helpers.
type completionQueue struct {
	q queue.Queue[Completion]
}

func newCompletionQueue(capacity int) *completionQueue {
	return &completionQueue{q: queue.BuildMPSC[Completion](queue.New(capacity).SingleConsumer())}
}

func (c *completionQueue) enqueueBlocking(v *Completion) {
	sw := spin.Wait{}
	for c.q.Enqueue(v) != nil {
		sw.Once()
	}
}

func (c *completionQueue) blockingDequeue(ctx context.Context) (Completion, error) {
	return blockingDequeue(ctx, c.q)
}
