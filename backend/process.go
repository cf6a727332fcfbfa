// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/outrigger-data/seqflow/arena"
	"github.com/outrigger-data/seqflow/pack"
)

var processJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Environment variables a re-exec'd worker child inspects to find its
// role. A worker is invoked by running the very same binary the parent
// is; the host program's main() must check IsWorker() before doing
// anything else and, if true, hand control to RunWorker.
const (
	envWorker      = "SEQFLOW_WORKER"
	envFactory     = "SEQFLOW_FACTORY"
	envArgs        = "SEQFLOW_ARGS"
	envMaxBuffered = "SEQFLOW_MAX_BUFFERED"
	envShmSize     = "SEQFLOW_SHM_SIZE"
	envTimeout     = "SEQFLOW_TIMEOUT"
)

// IsWorker reports whether this process was re-exec'd by PrefetchProcess
// to serve as a worker, rather than being the original driver program.
func IsWorker() bool { return os.Getenv(envWorker) == "1" }

// ProcessBackend runs workers as independently spawned OS processes.
// Per-worker job delivery uses a dedicated stdin pipe (parent writes,
// round-robin over workers keyed by ring slot), and a dedicated stdout
// pipe carries completions back; a background goroutine per worker
// multiplexes its pipe into a single internal completion queue so
// WaitCompletion presents the same wait-any semantics a single shared
// job queue and per-worker result pipes would.
//
// Because this binding fixes ring slot k to arena slot k one-to-one
// (both sized to MaxBuffered, partitioning the arena into equal
// slots), the hot path never needs the general fetch/release free-list
// allocator in seqflow/arena — the ring's own "at most one outstanding
// job per slot" invariant already guarantees safe reuse timing.
// seqflow/arena's Fetch/Release remains the standalone, independently
// correct implementation of that allocator, exercised directly by its
// own tests.
type ProcessBackend struct {
	factoryName string
	nworkers    int
	maxBuffered int
	timeout     time.Duration
	shmSize     int
	ar          *arena.Arena // nil unless shmSize > 0
	logger      zerolog.Logger

	workers     []*procWorker
	completions *completionQueue

	mu     sync.RWMutex
	values []pack.Value
	errs   []error

	died      atomic.Bool
	diedSlot  atomic.Int32
	wg        sync.WaitGroup
	stop      chan struct{}
	closeOnce sync.Once
}

type procWorker struct {
	id     int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// NewProcessBackend spawns nworkers re-exec'd copies of the current
// binary, each resolving factoryName from seqflow/registry with
// factoryArgs. startHook is accepted for interface symmetry with
// ThreadBackend but cannot run in a child process (it is a Go closure;
// there is no way to serialize it across exec) — if non-nil it is
// logged as ignored, once, at construction.
func NewProcessBackend(factoryName string, factoryArgs []byte, nworkers, maxBuffered, shmSize int, timeout time.Duration, startHook func(), logger zerolog.Logger) (*ProcessBackend, error) {
	if startHook != nil {
		logger.Warn().Msg("StartHook is ignored under MethodProcess: it is a Go closure and cannot cross the process boundary")
	}
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("backend: resolving re-exec target: %w", err)
	}

	b := &ProcessBackend{
		factoryName: factoryName,
		nworkers:    nworkers,
		maxBuffered: maxBuffered,
		timeout:     timeout,
		shmSize:     shmSize,
		logger:      logger,
		completions: newCompletionQueue(maxBuffered * 2),
		values:      make([]pack.Value, maxBuffered),
		errs:        make([]error, maxBuffered),
		stop:        make(chan struct{}),
	}

	if shmSize > 0 {
		ar, err := arena.New(shmSize, maxBuffered)
		if err != nil {
			return nil, fmt.Errorf("backend: allocating shared arena: %w", err)
		}
		b.ar = ar
	}

	env := append(os.Environ(),
		envWorker+"=1",
		envFactory+"="+factoryName,
		envArgs+"="+base64.StdEncoding.EncodeToString(factoryArgs),
		envMaxBuffered+"="+strconv.Itoa(maxBuffered),
		envTimeout+"="+timeout.String(),
	)
	if b.ar != nil {
		env = append(env, envShmSize+"="+strconv.Itoa(shmSize))
	}

	for i := 0; i < nworkers; i++ {
		w, err := b.spawn(binary, env, i)
		if err != nil {
			b.killAll()
			return nil, fmt.Errorf("backend: spawning worker %d: %w", i, err)
		}
		b.workers = append(b.workers, w)
		b.wg.Add(1)
		go b.readLoop(w)
	}
	b.wg.Add(1)
	go b.heartbeat()
	return b, nil
}

func (b *ProcessBackend) spawn(binary string, env []string, id int) (*procWorker, error) {
	cmd := exec.Command(binary)
	cmd.Env = env
	cmd.Stderr = os.Stderr
	if b.ar != nil {
		cmd.ExtraFiles = []*os.File{b.ar.File()}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	// Brief SIGINT-ignore bracket so a Ctrl-C delivered to the process
	// group doesn't race with child creation.
	signal.Ignore(os.Interrupt)
	err = cmd.Start()
	signal.Reset(os.Interrupt)
	if err != nil {
		return nil, err
	}
	b.logger.Debug().Int("worker", id).Int("pid", cmd.Process.Pid).Msg("process worker spawned")
	return &procWorker{id: id, cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (b *ProcessBackend) killAll() {
	for _, w := range b.workers {
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
	}
}

// Submit routes the job to the worker that owns this ring slot
// (slot % nworkers): the parent is the sole producer, so this
// deterministic routing stands in for a shared job queue without
// requiring true cross-process shared memory for job dispatch.
func (b *ProcessBackend) Submit(ctx context.Context, job Job) error {
	w := b.workers[int(job.Slot)%len(b.workers)]
	return writeJob(w.stdin, job)
}

func (b *ProcessBackend) WaitCompletion(ctx context.Context) (Completion, error) {
	if b.died.Load() {
		return Completion{}, &WorkerDiedError{WorkerID: int(b.diedSlot.Load())}
	}
	return b.completions.blockingDequeue(ctx)
}

func (b *ProcessBackend) Value(slot int32) pack.Value {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[slot]
}

func (b *ProcessBackend) Err(slot int32) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errs[slot]
}

func (b *ProcessBackend) Shutdown(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stop)
		for _, w := range b.workers {
			_ = writeJob(w.stdin, Job{Slot: -1})
			_ = w.stdin.Close()
		}
		done := make(chan struct{})
		go func() {
			for _, w := range b.workers {
				_, _ = w.cmd.Process.Wait()
			}
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			if b.ar != nil {
				err = b.ar.Close()
			}
		case <-ctx.Done():
			b.killAll()
			err = ctx.Err()
		}
	})
	return err
}

func (b *ProcessBackend) readLoop(w *procWorker) {
	defer b.wg.Done()
	for {
		h, plen, err := readCompletionHeader(w.stdout)
		if err != nil {
			return // pipe closed: worker exited; heartbeat raises WorkerDied
		}
		payload := make([]byte, plen)
		if _, err := io.ReadFull(w.stdout, payload); err != nil {
			return
		}
		switch h.Status {
		case StatusDone:
			var v pack.Value
			if err := processJSON.Unmarshal(payload, &v); err != nil {
				b.mu.Lock()
				b.errs[h.Slot] = err
				b.mu.Unlock()
				h.Status = StatusFailed
				break
			}
			if h.Transport == transportShared && b.ar != nil {
				v = pack.Inline(v, b.ar.BytesAt(h.Slot))
			} else if b.ar != nil {
				b.logger.Warn().Int("worker", w.id).Int("slot", int(h.Slot)).
					Msg("result could not be packed into its shared-memory slot; it was sent serialized")
			}
			b.mu.Lock()
			b.values[h.Slot] = v
			b.mu.Unlock()
		case StatusFailed:
			var ep errorPayload
			if err := processJSON.Unmarshal(payload, &ep); err != nil {
				ep.Message = string(payload)
			}
			b.mu.Lock()
			b.errs[h.Slot] = ep.asError()
			b.mu.Unlock()
		}
		c := Completion{ItemIndex: h.ItemIndex, Slot: h.Slot, Status: h.Status}
		b.completions.enqueueBlocking(&c)
	}
}

func (b *ProcessBackend) heartbeat() {
	defer b.wg.Done()
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			for _, w := range b.workers {
				if w.cmd.Process == nil {
					continue
				}
				if err := w.cmd.Process.Signal(syscallSigZero); err != nil {
					b.diedSlot.Store(int32(w.id))
					b.died.Store(true)
					b.logger.Error().Int("worker", w.id).Err(err).Msg("process worker died")
				}
			}
		}
	}
}

// errorPayload is the portable wire shape for a failed evaluation: a
// worker always sends a failure in this string form, since the
// original error value does not survive the process boundary.
type errorPayload struct {
	Message string
	Type    string
}

func (e errorPayload) asError() error {
	return &EvaluationFailure{Message: e.Message, Type: e.Type}
}

// EvaluationFailure is the rehydrated form of a worker-side failure
// that could not be transported as its original error value. The
// scheduler turns it into an EvaluationError carrying only its Error()
// text (the EvaluationError's Cause is nil), under either error mode.
type EvaluationFailure struct {
	Message string
	Type    string
}

func (e *EvaluationFailure) Error() string {
	if e.Type != "" {
		return e.Type + ": " + e.Message
	}
	return e.Message
}
