// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Method selects the prefetcher's worker backend.
type Method int

const (
	// MethodThread runs workers as goroutines in the calling process.
	MethodThread Method = iota
	// MethodProcess runs workers as independent OS processes. Combine
	// with ShmSize > 0 to enable zero-copy shared-memory transport.
	MethodProcess
)

// config holds every tunable accepted by Prefetch/PrefetchProcess.
// Fields are unexported; callers configure it through [Option] values.
type config struct {
	nworkers    int
	method      Method
	maxBuffered int
	startHook   func()
	shmSize     int
	anticipate  func(int64) int64
	timeout     time.Duration
	logger      zerolog.Logger
}

func defaultConfig() config {
	return config{
		nworkers:    0,
		method:      MethodThread,
		maxBuffered: 4,
		anticipate:  func(i int64) int64 { return i + 1 },
		timeout:     30 * time.Second,
		logger:      zerolog.Nop(),
	}
}

// resolveNWorkers turns the nworkers option into an exact worker count:
// positive values are exact, non-positive values mean
// max(1, cpu_count - |n|).
func (c config) resolveNWorkers() int {
	if c.nworkers > 0 {
		return c.nworkers
	}
	n := runtime.NumCPU() + c.nworkers // nworkers <= 0 here
	if n < 1 {
		n = 1
	}
	return n
}

// Option configures a prefetcher built by [Prefetch] or [PrefetchProcess].
type Option func(*config)

// NWorkers sets the worker count. n > 0 is used exactly; n <= 0 means
// max(1, runtime.NumCPU() + n). The zero value (unset) behaves like
// NWorkers(0): one worker per CPU.
func NWorkers(n int) Option {
	return func(c *config) { c.nworkers = n }
}

// WithMethod selects the worker backend. The default is MethodThread.
// Go's type system ties MethodThread to [Prefetch] (generic over any
// T) and MethodProcess to [PrefetchProcess] (fixed to pack.Value, the
// only type that can cross a process boundary): passing
// WithMethod(MethodProcess) to Prefetch is a configuration error.
// PrefetchProcess always runs MethodProcess regardless of this option.
func WithMethod(m Method) Option {
	return func(c *config) { c.method = m }
}

// MaxBuffered sets the in-flight ring size: the maximum number of jobs
// outstanding at once. Must be >= 1 (>= 4 is recommended for
// MethodProcess with shared memory, to give the allocator room to
// recycle slots without stalling). The default is 4.
func MaxBuffered(n int) Option {
	return func(c *config) { c.maxBuffered = n }
}

// StartHook registers a callback run by every worker immediately after
// it starts, before it services its first job.
func StartHook(hook func()) Option {
	return func(c *config) { c.startHook = hook }
}

// ShmSize sets the total size in bytes of the shared-memory arena used
// for zero-copy result transport under MethodProcess. Zero (the
// default) disables shared-memory transport; results are always
// serialized over the worker's pipe instead.
func ShmSize(bytes int) Option {
	return func(c *config) { c.shmSize = bytes }
}

// Anticipate overrides the predictor used to guess the next index the
// consumer will request. The default is the identity-plus-one predictor
// (func(i) { return i + 1 }), matching a linear scan.
func Anticipate(f func(int64) int64) Option {
	return func(c *config) { c.anticipate = f }
}

// Timeout sets how long a worker may sit idle on an empty job queue
// before it exits voluntarily (signalling "went to sleep"); the
// scheduler restarts it on demand at the next submission. This applies
// to the goroutine workers of Prefetch. Under PrefetchProcess, worker
// processes do not exit when idle: the timeout only sets how often an
// idle worker checks whether its parent process is still alive. The
// default is 30 seconds.
func Timeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLogger attaches a zerolog.Logger used for worker lifecycle events:
// spawn, heartbeat failure, went-to-sleep, and shared-memory packing
// fallback warnings. The default logger is disabled (zerolog.Nop()), so
// the library is silent unless a caller opts in.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
